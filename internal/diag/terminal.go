package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Terminal: 终端状态提示（非日志，非进度行）。
// - 输出到提供的 io.Writer（默认 stderr），与 stdout 上的进度行互不干扰；
// - 写失败后进入禁用态为 no-op；
// - nil *Terminal 上的方法均为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool

	tool      string
	filesDone int
	runStart  time.Time
	curFileID string
	batches   int

	mu sync.Mutex
}

// 进程级终端（可选，全局设置后供 pipeline 旁路调用）。
var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal 设置全局终端指针（nil 可清除）。
func SetTerminal(t *Terminal) { termMu.Lock(); term = t; termMu.Unlock() }

// GetTerminal 返回全局终端（可能为 nil）。
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return term }

// NewTerminal 构造终端提示器。enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	return &Terminal{w: w, enabled: enabled}
}

// RunStart 记录运行上下文。
func (t *Terminal) RunStart(tool string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tool = tool
	t.filesDone = 0
	t.runStart = time.Now()
}

// FileStart 标记当前文件与计划批次。
func (t *Terminal) FileStart(fileID string, batches int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.curFileID = shortenBase(fileID, 48)
	t.batches = batches
}

// FileFinish 完成当前文件。
func (t *Terminal) FileFinish(ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filesDone++
	status := "done"
	if !ok {
		status = "fail"
	}
	t.println(fmt.Sprintf("[%s] %s | 批次 %d | 用时 %s", status, t.curFileID, t.batches, formatDur(dur)))
}

// RunFinish 输出总览。
func (t *Terminal) RunFinish(ok bool, batches, rows int, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	tag := "ok"
	if !ok {
		tag = "fail"
	}
	t.println(fmt.Sprintf("[%s] %s 全部完成 | 文件 %d | 批次 %d | 行 %d | 总用时 %s",
		tag, safe(t.tool), t.filesDone, batches, rows, formatDur(dur)))
}

func (t *Terminal) println(s string) {
	if !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		t.enabled = false
	}
}

// shortenBase: 取基名并按可见宽度截断（尾部省略号）。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	rs := []rune(base)
	if len(rs) <= max {
		return base
	}
	return string(rs[:max-1]) + "…"
}

func safe(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms < 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(d.Milliseconds())/1000.0)
}
