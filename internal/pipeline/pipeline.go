// Package pipeline 串联 Reader → Splitter → Batcher → Encoder → Writer。
//
// - 串行执行：无内部并发，ctx 在阶段与批次之间检查。
// - 先读后写：全部输入读入并解析成功后才写第一个文件；解析失败不产生任何输出。
// - 输出序号为显式整数，由 Run 持有并通过 Summary 返回。
package pipeline

import (
	"context"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"partsbatch/internal/diag"
	"partsbatch/pkg/contract"
)

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader   contract.Reader
	Splitter contract.Splitter
	Batcher  contract.Batcher
	Encoder  contract.Encoder
	Writer   contract.Writer
}

// Namer 根据文件与序号生成输出工件名。
type Namer func(fileID contract.FileID, seq int64) contract.ArtifactID

// Settings 运行期配置。
type Settings struct {
	Inputs []string
	// BatchSize: 每个输出文件的最大记录数（>0）。
	BatchSize int
	// Start: 首个输出序号（可为任意整数）。
	Start int64
	// PerFile: 每个输入文件的序号都从 Start 重新开始。
	PerFile bool
	// Merge: 将全部输入按读取顺序合并为一张表后再切批（表头须一致）。
	Merge bool
	Name  Namer
}

// Progress 描述一个已写出的输出文件。
type Progress struct {
	FileID contract.FileID
	Source string
	Path   string
	// Part: 表内批序（1 基）。
	Part int64
	Seq  int64
	// From/To: 表内记录范围（1 基闭区间）。
	From int64
	To   int64
	Rows int
}

// Reporter 接收面向用户的进度通知。
type Reporter interface {
	Written(p Progress)
	// Empty: 表无数据行，未写出任何文件。
	Empty(t contract.Table)
}

// Summary 为一次运行的汇总。
type Summary struct {
	Files   int
	Batches int
	Records int
	// NextSeq: 下一个可用序号（最后一个文件序号 + 1；序号用尽时停在 MaxInt64）。
	NextSeq int64
}

// counter 为输出序号，用尽后报错而不回绕。
type counter struct {
	next int64
	done bool
}

// reserve 确认还能连续分配 n 个序号。
func (c *counter) reserve(n int) error {
	if n == 0 {
		return nil
	}
	if c.done || c.next > math.MaxInt64-int64(n-1) {
		return errors.Wrapf(contract.ErrInvariantViolation,
			"output sequence overflow: %d files from %d", n, c.next)
	}
	return nil
}

func (c *counter) take() int64 {
	v := c.next
	if v == math.MaxInt64 {
		c.done = true
	} else {
		c.next++
	}
	return v
}

// Run 执行完整流水线：Reader → Splitter → Batcher → Encoder → Writer。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger, rep Reporter) (Summary, error) {
	sum := Summary{NextSeq: set.Start}
	if err := sanity(comp, set); err != nil {
		return sum, errors.Wrap(err, "sanity")
	}
	if rep == nil {
		rep = nopReporter{}
	}

	tables, err := load(ctx, comp, set.Inputs, logger)
	if err != nil {
		return sum, err
	}
	if set.Merge && len(tables) > 0 {
		merged, err := merge(tables)
		if err != nil {
			return sum, err
		}
		tables = []contract.Table{merged}
	}

	seq := &counter{next: set.Start}
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if set.PerFile {
			seq = &counter{next: set.Start}
		}
		n, err := emit(ctx, comp, set, t, seq, logger, rep)
		sum.Files++
		sum.Batches += n
		if err != nil {
			sum.NextSeq = seq.next
			return sum, err
		}
		sum.Records += len(t.Records)
	}
	sum.NextSeq = seq.next
	logger.Info("pipeline", "run summary", "", map[string]string{
		"files":    strconv.Itoa(sum.Files),
		"batches":  strconv.Itoa(sum.Batches),
		"records":  strconv.Itoa(sum.Records),
		"next_seq": strconv.FormatInt(sum.NextSeq, 10),
	})
	return sum, nil
}

// load 读取并解析全部输入。
func load(ctx context.Context, comp Components, inputs []string, logger *diag.Logger) ([]contract.Table, error) {
	var (
		tables   []contract.Table
		splitErr error
	)
	rtimer := logger.Start("reader", "iterate")
	t0 := time.Now()
	err := comp.Reader.Iterate(ctx, inputs, func(fileID contract.FileID, source string, rc io.ReadCloser) error {
		defer rc.Close()
		stimer := logger.StartWith("splitter", "split", string(fileID), "")
		s0 := time.Now()
		t, err := comp.Splitter.Split(ctx, fileID, rc)
		if err != nil {
			splitErr = fail(logger, "splitter", "split failed", &s0, string(fileID), "", errors.Wrapf(err, "splitter split %s", source))
			return splitErr
		}
		t.FileID = fileID
		t.Source = source
		tables = append(tables, t)
		stimer.Finish("split", int64(len(t.Records)))
		diag.IncOp("splitter", "finish", "success")
		diag.ObserveDuration("splitter", "split", time.Since(s0).Milliseconds())
		return nil
	})
	if err != nil {
		if splitErr != nil {
			return nil, err
		}
		return nil, fail(logger, "reader", "iterate failed", &t0, "", "", errors.Wrap(err, "reader iterate"))
	}
	rtimer.Finish("iterate", int64(len(tables)))
	diag.IncOp("reader", "finish", "success")
	return tables, nil
}

// merge 按读取顺序拼接多张表并重排 Index；结果沿用首表的 FileID/Source。
func merge(tables []contract.Table) (contract.Table, error) {
	if len(tables) == 1 {
		return tables[0], nil
	}
	first := tables[0]
	out := contract.Table{FileID: first.FileID, Source: first.Source, Header: first.Header}
	var idx contract.Index
	for _, t := range tables {
		if !sameHeader(first.Header, t.Header) {
			return contract.Table{}, errors.Wrapf(contract.ErrInvalidInput,
				"merge: header of %s differs from %s", t.FileID, first.FileID)
		}
		for _, r := range t.Records {
			r.Index = idx
			r.FileID = first.FileID
			out.Records = append(out.Records, r)
			idx++
		}
	}
	return out, nil
}

func sameHeader(a, b contract.Header) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// emit 对单表切批、编码并写出；返回成功写出的文件数。
func emit(ctx context.Context, comp Components, set Settings, t contract.Table, seq *counter, logger *diag.Logger, rep Reporter) (int, error) {
	fid := string(t.FileID)
	btimer := logger.StartWith("batcher", "make", fid, "")
	b0 := time.Now()
	batches, err := comp.Batcher.Make(ctx, t.Records, contract.BatchLimit{MaxRecords: set.BatchSize})
	if err != nil {
		return 0, fail(logger, "batcher", "make failed", &b0, fid, "", errors.Wrap(err, "batcher make"))
	}
	btimer.Finish("make", int64(len(batches)))
	diag.IncOp("batcher", "finish", "success")

	if err := seq.reserve(len(batches)); err != nil {
		return 0, fail(logger, "pipeline", "sequence exhausted", &b0, fid, "", err)
	}
	if len(batches) == 0 {
		logger.Info("pipeline", "no rows", fid, map[string]string{"source": t.Source})
		rep.Empty(t)
		return 0, nil
	}

	term := diag.GetTerminal()
	term.FileStart(fid, len(batches))
	fileStart := time.Now()
	ok := false
	defer func() { term.FileFinish(ok, time.Since(fileStart)) }()

	written := 0
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		bid := strconv.FormatInt(b.BatchIndex, 10)

		etimer := logger.StartWith("encoder", "encode", fid, bid)
		e0 := time.Now()
		r, err := comp.Encoder.Encode(ctx, t, b)
		if err != nil {
			return written, fail(logger, "encoder", "encode failed", &e0, fid, bid, errors.Wrap(err, "encoder encode"))
		}
		etimer.Finish("encode", int64(b.Len()))
		diag.IncOp("encoder", "finish", "success")
		diag.ObserveDuration("encoder", "encode", time.Since(e0).Milliseconds())

		n := seq.take()
		id := set.Name(t.FileID, n)
		wtimer := logger.StartWith("writer", "write", fid, bid)
		w0 := time.Now()
		path, err := comp.Writer.Write(ctx, id, r)
		if err != nil {
			return written, fail(logger, "writer", "write failed", &w0, fid, bid, errors.Wrapf(err, "writer write %s", id))
		}
		wtimer.Finish("write", int64(b.Len()))
		diag.IncOp("writer", "finish", "success")
		diag.ObserveDuration("writer", "write", time.Since(w0).Milliseconds())
		logger.Debug("writer", "artifact", fid, bid, map[string]string{"path": path})

		rep.Written(Progress{
			FileID: t.FileID,
			Source: t.Source,
			Path:   path,
			Part:   b.BatchIndex + 1,
			Seq:    n,
			From:   int64(b.From) + 1,
			To:     int64(b.To) + 1,
			Rows:   b.Len(),
		})
		written++
	}
	ok = true
	return written, nil
}

// fail 记录错误事件与计数，原样返回 err。
func fail(logger *diag.Logger, comp, msg string, since *time.Time, fileID, batch string, err error) error {
	code := diag.Classify(err)
	logger.ErrorWith(comp, string(code), msg+": "+err.Error(), since, fileID, batch)
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
	return err
}

// sanity 校验组件与参数。
func sanity(comp Components, set Settings) error {
	switch {
	case comp.Reader == nil, comp.Splitter == nil, comp.Batcher == nil, comp.Encoder == nil, comp.Writer == nil:
		return errors.Wrap(contract.ErrInvariantViolation, "missing component")
	case len(set.Inputs) == 0:
		return errors.Wrap(contract.ErrUsage, "no inputs")
	case set.BatchSize <= 0:
		return errors.Wrapf(contract.ErrInvariantViolation, "batch size must be > 0, got %d", set.BatchSize)
	case set.Name == nil:
		return errors.Wrap(contract.ErrInvariantViolation, "missing namer")
	}
	return nil
}

type nopReporter struct{}

func (nopReporter) Written(Progress) {}
func (nopReporter) Empty(contract.Table) {}
