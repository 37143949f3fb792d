package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsbatch/pkg/contract"
)

// UT-DIAG-01: 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	_, err := w.Write([]byte("first line that is very long\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(files), 2, "应存在轮转文件")
}

// 当前文件名与时间戳文件同时存在
func TestRotatingFileRotateFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 10)
	for i := 0; i < 5; i++ {
		_, err := w.Write([]byte("xxxxxxxxxxxxxxxxxx\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	hasCurrent, hasRotated := false, false
	for _, e := range ents {
		if e.Name() == "partsbatch-current.txt" {
			hasCurrent = true
		} else if strings.HasPrefix(e.Name(), "partsbatch-") && strings.HasSuffix(e.Name(), ".txt") {
			hasRotated = true
		}
	}
	assert.True(t, hasCurrent, "missing current file")
	assert.True(t, hasRotated, "missing rotated file")
}

// 默认 maxBytes 与 rotate 在 f==nil 分支
func TestRotatingFileDefaultsAndRotateNoOpen(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 0)
	assert.Equal(t, int64(10*1024*1024), w.maxBytes)
	_, err := w.Write([]byte("a\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.rotate())
	require.NoError(t, w.Close())
}

// 错误分类
func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{pkgerrors.Wrap(context.DeadlineExceeded, "x"), CodeCancel},
		{pkgerrors.Wrap(contract.ErrUsage, "two args"), CodeUsage},
		{fmt.Errorf("split: %w", contract.ErrInvalidInput), CodeParse},
		{contract.ErrSeqInvalid, CodeInvariant},
		{contract.ErrPathInvalid, CodeInvariant},
		{pkgerrors.WithStack(&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}), CodeIO},
		{errors.New("other"), CodeUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.err), "classify %v", c.err)
	}
}

// Logger 事件字段与级别过滤
func TestLoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("corr", Options{Level: "info", Output: &buf})
	timer := l.StartWith("writer", "write", "csv/a.csv", "0")
	timer.Finish("write", 3)
	l.Debug("comp", "filtered", "", "", nil)
	start := time.Now().Add(-5 * time.Millisecond)
	l.ErrorWith("splitter", string(CodeParse), "split failed", &start, "csv/a.csv", "")
	l.Info("pipeline", "no rows", "csv/a.csv", map[string]string{"rows": "0"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &ev))
	assert.Equal(t, "corr", ev["corr_id"])
	assert.Equal(t, "finish", ev["stage"])
	assert.Equal(t, "csv/a.csv", ev["file_id"])
	assert.Equal(t, "0", ev["batch_id"])
	assert.EqualValues(t, 3, ev["count"])

	require.NoError(t, json.Unmarshal([]byte(lines[2]), &ev))
	assert.Equal(t, "error", ev["level"])
	assert.Equal(t, "parse", ev["code"])

	require.NoError(t, json.Unmarshal([]byte(lines[3]), &ev))
	assert.Equal(t, map[string]any{"rows": "0"}, ev["kv"])
	assert.NoError(t, l.Close())
}

// 默认落盘路径：目录内生成 partsbatch-current.txt
func TestLoggerWithSink(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger("corr", Options{Level: "debug", Dir: dir})
	l.Start("comp", "msg").Finish("ok", 1)
	l.Debug("comp", "dbg", "f", "b", map[string]string{"k": "v"})
	l.Error("comp", "code", "msg", nil)
	require.NoError(t, l.Close())
	b, err := os.ReadFile(filepath.Join(dir, "partsbatch-current.txt"))
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(b), "\n"))
}

// nil 接收者与 nil Timer 均安全
func TestLoggerNilSafe(t *testing.T) {
	var l *Logger
	assert.Nil(t, l.Start("c", "m"))
	l.Error("c", "x", "m", nil)
	l.Info("c", "m", "", nil)
	l.Debug("c", "m", "", "", nil)
	assert.NoError(t, l.Close())
	var tnil *Timer
	tnil.Finish("x", 0)
	(&Timer{}).Finish("x", 0)
}

func TestLevels(t *testing.T) {
	assert.True(t, ValidLevel(""))
	assert.True(t, ValidLevel("DEBUG"))
	assert.True(t, ValidLevel("warning"))
	assert.False(t, ValidLevel("verbose"))
	assert.Equal(t, "info", parseLevel("verbose").String())
	assert.Equal(t, "warning", parseLevel("warn").String())
}

// 计数器累加与快照
func TestMetrics(t *testing.T) {
	ResetMetrics()
	IncOp("writer", "finish", "success")
	IncOp("writer", "finish", "success")
	IncError("splitter", "parse")
	ObserveDuration("pipeline", "finish", 7)
	s := Snapshot()
	assert.Equal(t, "2", s["op_total{comp=writer,stage=finish,result=success}"])
	assert.Equal(t, "1", s["error_total{comp=splitter,code=parse}"])
	assert.Equal(t, "7", s["op_duration_ms{comp=pipeline,stage=finish}"])
	ResetMetrics()
	assert.Empty(t, Snapshot())
}

// UT-DIAG-03: 终端关键节点输出
func TestTerminalFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.RunStart("sqlgen")
	term.FileStart("csv/parts.csv", 3)
	term.FileFinish(true, 5100*time.Millisecond)
	term.RunFinish(true, 3, 1200, 41300*time.Millisecond)

	out := sb.String()
	assert.Contains(t, out, "[done] parts.csv | 批次 3 | 用时 5.1s")
	assert.Contains(t, out, "[ok] sqlgen 全部完成 | 文件 1 | 批次 3 | 行 1200 | 总用时 41.3s")
}

type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

// UT-DIAG-05: 写失败降级为禁用态
func TestTerminalDisableOnWriteError(t *testing.T) {
	fw := &flakyWriter{fail: true}
	term := NewTerminal(fw, true)
	term.FileFinish(false, 0)
	assert.False(t, term.enabled)
	term.RunFinish(true, 0, 0, 0)
}

func TestTerminalNilAndGlobal(t *testing.T) {
	var tn *Terminal
	tn.RunStart("x")
	tn.FileStart("a", 1)
	tn.FileFinish(true, 0)
	tn.RunFinish(true, 0, 0, 0)

	SetTerminal(nil)
	assert.Nil(t, GetTerminal())
	SetTerminal(NewTerminal(nil, false))
	assert.NotNil(t, GetTerminal())
	SetTerminal(nil)
}

// 工具函数
func TestHelpers(t *testing.T) {
	assert.Equal(t, "这是一个很长的文件名用…", shortenBase("/x/y/这是一个很长的文件名用于截断测试.txt", 12))
	assert.Equal(t, "", shortenBase("x", 0))
	assert.Equal(t, "a b c", safe("a\nb\rc"))
	assert.Equal(t, "0ms", formatDur(0))
	assert.Equal(t, "1.5s", formatDur(1500*time.Millisecond))
}
