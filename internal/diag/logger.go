package diag

import (
	"io"
	"os"
	"strings"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
)

// Options 为日志器配置。
type Options struct {
	// Level: debug|info|warn|error；未知值按 info 处理。
	Level string
	// Dir: 轮转日志目录；空则使用 "logs"。
	Dir string
	// Console: true 时改为输出到 stderr（人类可读格式），不落盘。
	Console bool
	// Output: 显式输出目标（优先级最高，主要用于测试）。
	Output io.Writer
}

// Logger 为结构化事件日志器：每个事件一行，字段固定（comp/stage/code/...）。
// nil *Logger 上的所有方法均为 no-op。
type Logger struct {
	corrID string
	lg     *logrus.Logger
	sink   *RotatingFile
}

// NewLogger 按配置初始化。默认写入 logs/partsbatch-current.txt（JSON 行，10MiB 轮转）。
func NewLogger(corrID string, opts Options) *Logger {
	lg := logrus.New()
	lg.SetLevel(parseLevel(opts.Level))
	l := &Logger{corrID: corrID, lg: lg}
	switch {
	case opts.Output != nil:
		lg.SetOutput(opts.Output)
		lg.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case opts.Console:
		lg.SetOutput(os.Stderr)
		lg.SetFormatter(&nested.Formatter{
			HideKeys:        false,
			FieldsOrder:     []string{"comp", "stage", "file_id", "batch_id"},
			TimestampFormat: time.StampMilli,
		})
	default:
		dir := strings.TrimSpace(opts.Dir)
		if dir == "" {
			dir = "logs"
		}
		l.sink = NewRotatingFile(dir, 10*1024*1024)
		lg.SetOutput(l.sink)
		lg.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}
	return l
}

func parseLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ValidLevel 报告 s 是否为可识别的日志级别（空串视为合法，表示默认）。
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "debug", "trace", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// Event 为标准事件结构。
type Event struct {
	Comp   string
	Stage  string // start|finish|error
	Code   string
	DurMS  int64
	Count  int64
	FileID string
	Batch  string
	Msg    string
	KV     map[string]string
}

func (l *Logger) log(lv logrus.Level, ev Event) {
	if l == nil || l.lg == nil || !l.lg.IsLevelEnabled(lv) {
		return
	}
	f := logrus.Fields{"corr_id": l.corrID, "comp": ev.Comp, "stage": ev.Stage}
	if ev.Code != "" {
		f["code"] = ev.Code
	}
	if ev.DurMS != 0 {
		f["dur_ms"] = ev.DurMS
	}
	if ev.Count != 0 {
		f["count"] = ev.Count
	}
	if ev.FileID != "" {
		f["file_id"] = ev.FileID
	}
	if ev.Batch != "" {
		f["batch_id"] = ev.Batch
	}
	if len(ev.KV) > 0 {
		f["kv"] = ev.KV
	}
	l.lg.WithFields(f).Log(lv, ev.Msg)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "", "")
}

// StartWith 记录带 file_id/batch_id 的 start。
func (l *Logger) StartWith(comp, msg, fileID, batch string) *Timer {
	if l == nil {
		return nil
	}
	l.log(logrus.InfoLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Batch: batch, Msg: msg})
	return &Timer{l: l, comp: comp, fileID: fileID, batch: batch, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWith(comp, code, msg, durSince, "", "")
}

// ErrorWith 支持 file_id/batch_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID, batch string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(logrus.ErrorLevel, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, FileID: fileID, Batch: batch})
}

// Info 记录一般信息事件（例如空表提示）。
func (l *Logger) Info(comp, msg, fileID string, kv map[string]string) {
	l.log(logrus.InfoLevel, Event{Comp: comp, Stage: "info", FileID: fileID, Msg: msg, KV: kv})
}

// Debug 输出调试级别事件（仅在 level=debug 时生效）。
func (l *Logger) Debug(comp, msg, fileID, batch string, kv map[string]string) {
	l.log(logrus.DebugLevel, Event{Comp: comp, Stage: "debug", FileID: fileID, Batch: batch, Msg: msg, KV: kv})
}

// Close 释放底层日志文件。
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	batch  string
	t0     time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(logrus.InfoLevel, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, FileID: t.fileID, Batch: t.batch, Msg: msg})
}
