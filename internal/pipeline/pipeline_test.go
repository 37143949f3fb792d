package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"partsbatch/internal/diag"
	"partsbatch/pkg/contract"
	"partsbatch/plugins/batcher/fixed"
	"partsbatch/plugins/encoder/sqlinsert"
	"partsbatch/plugins/encoder/xlsx"
	"partsbatch/plugins/reader/filesystem"
	"partsbatch/plugins/splitter/csvtable"
	"partsbatch/plugins/splitter/lines"
	fswriter "partsbatch/plugins/writer/filesystem"
)

// 通用桩件 ----------------------------------------------------

type memReader map[string]string

func (m memReader) Iterate(ctx context.Context, roots []string, yield func(contract.FileID, string, io.ReadCloser) error) error {
	for _, r := range roots {
		data, ok := m[r]
		if !ok {
			return &os.PathError{Op: "open", Path: r, Err: os.ErrNotExist}
		}
		if err := yield(contract.NormalizeFileID(r), r, io.NopCloser(strings.NewReader(data))); err != nil {
			return err
		}
	}
	return nil
}

type textEncoder struct{ fail int }

func (e *textEncoder) Encode(ctx context.Context, t contract.Table, b contract.Batch) (io.Reader, error) {
	if e.fail > 0 && int(b.BatchIndex) == e.fail {
		return nil, errors.Wrap(contract.ErrInvariantViolation, "boom")
	}
	var sb strings.Builder
	for _, r := range b.Records {
		sb.WriteString(r.Values[0].Text + "\n")
	}
	return strings.NewReader(sb.String()), nil
}
func (e *textEncoder) Ext() string { return ".txt" }

type memWriter struct {
	files map[string]string
	order []string
}

func (w *memWriter) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if w.files == nil {
		w.files = map[string]string{}
	}
	p := "out/" + string(id)
	w.files[p] = string(b)
	w.order = append(w.order, p)
	return p, nil
}

type recorder struct {
	written []Progress
	empty   []contract.Table
}

func (r *recorder) Written(p Progress) { r.written = append(r.written, p) }
func (r *recorder) Empty(t contract.Table) { r.empty = append(r.empty, t) }

func seqName(_ contract.FileID, seq int64) contract.ArtifactID {
	return contract.ArtifactID(fmt.Sprintf("%d.txt", seq))
}

func stemName(fid contract.FileID, seq int64) contract.ArtifactID {
	return contract.ArtifactID(fmt.Sprintf("%s_%d.txt", fid.Stem(), seq))
}

func numbered(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "P%d\n\n", i)
	}
	return sb.String()
}

func comps(in memReader, w *memWriter, enc contract.Encoder) Components {
	return Components{Reader: in, Splitter: lines.New(nil), Batcher: fixed.New(), Encoder: enc, Writer: w}
}

// TestRunSequenceFromBase 1200 行、起始 5：5/6/7，500/500/200
func TestRunSequenceFromBase(t *testing.T) {
	w := &memWriter{}
	rec := &recorder{}
	sum, err := Run(context.Background(), comps(memReader{"in.txt": numbered(1200)}, w, &textEncoder{}),
		Settings{Inputs: []string{"in.txt"}, BatchSize: 500, Start: 5, Name: seqName}, nil, rec)
	require.NoError(t, err)
	assert.Equal(t, Summary{Files: 1, Batches: 3, Records: 1200, NextSeq: 8}, sum)
	assert.Equal(t, []string{"out/5.txt", "out/6.txt", "out/7.txt"}, w.order)

	require.Len(t, rec.written, 3)
	assert.Equal(t, Progress{FileID: "in.txt", Source: "in.txt", Path: "out/7.txt", Part: 3, Seq: 7, From: 1001, To: 1200, Rows: 200}, rec.written[2])
	assert.Equal(t, int64(1), rec.written[0].Part)

	// 拼接所有输出即原顺序
	var joined strings.Builder
	for _, p := range w.order {
		joined.WriteString(w.files[p])
	}
	assert.Equal(t, strings.ReplaceAll(numbered(1200), "\n\n", "\n"), joined.String())
}

// TestRunSequenceOverflow 序号不足以容纳全部批次时报错且不写出
func TestRunSequenceOverflow(t *testing.T) {
	w := &memWriter{}
	_, err := Run(context.Background(), comps(memReader{"in.txt": numbered(600)}, w, &textEncoder{}),
		Settings{Inputs: []string{"in.txt"}, BatchSize: 500, Start: math.MaxInt64, Name: seqName}, nil, nil)
	require.ErrorIs(t, err, contract.ErrInvariantViolation)
	assert.Empty(t, w.order)

	w = &memWriter{}
	sum, err := Run(context.Background(), comps(memReader{"in.txt": numbered(400)}, w, &textEncoder{}),
		Settings{Inputs: []string{"in.txt"}, BatchSize: 500, Start: math.MaxInt64 - 1, Name: seqName}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{fmt.Sprintf("out/%d.txt", int64(math.MaxInt64-1))}, w.order)
	assert.Equal(t, int64(math.MaxInt64), sum.NextSeq)

	// 末个序号可用，其后的表不得回绕
	w = &memWriter{}
	in := memReader{"a.txt": numbered(3), "b.txt": numbered(3)}
	_, err = Run(context.Background(), comps(in, w, &textEncoder{}),
		Settings{Inputs: []string{"a.txt", "b.txt"}, BatchSize: 500, Start: math.MaxInt64, Name: seqName}, nil, nil)
	require.ErrorIs(t, err, contract.ErrInvariantViolation)
	assert.Equal(t, []string{fmt.Sprintf("out/%d.txt", int64(math.MaxInt64))}, w.order)
}

// TestRunPerFileCounter 每文件独立计数
func TestRunPerFileCounter(t *testing.T) {
	w := &memWriter{}
	in := memReader{"a.txt": numbered(3), "b.txt": numbered(1)}
	sum, err := Run(context.Background(), comps(in, w, &textEncoder{}),
		Settings{Inputs: []string{"a.txt", "b.txt"}, BatchSize: 2, Start: 1, PerFile: true, Name: stemName}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"out/a_1.txt", "out/a_2.txt", "out/b_1.txt"}, w.order)
	assert.Equal(t, 2, sum.Files)
	assert.Equal(t, 3, sum.Batches)
}

// TestRunMerge 合并多文件后连续切批
func TestRunMerge(t *testing.T) {
	w := &memWriter{}
	in := memReader{"a.txt": "1\n2\n3\n", "b.txt": "4\n5\n"}
	sum, err := Run(context.Background(), comps(in, w, &textEncoder{}),
		Settings{Inputs: []string{"a.txt", "b.txt"}, BatchSize: 2, Start: 10, Merge: true, Name: seqName}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"out/10.txt", "out/11.txt", "out/12.txt"}, w.order)
	assert.Equal(t, "3\n4\n", w.files["out/11.txt"])
	assert.Equal(t, 1, sum.Files)
	assert.Equal(t, int64(13), sum.NextSeq)
}

// TestMergeHeaderMismatch 表头不一致不能合并
func TestMergeHeaderMismatch(t *testing.T) {
	_, err := merge([]contract.Table{
		{FileID: "a", Header: contract.Header{"x"}},
		{FileID: "b", Header: contract.Header{"y"}},
	})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}

// TestRunEmpty 零行：不写文件，通知 Empty
func TestRunEmpty(t *testing.T) {
	w := &memWriter{}
	rec := &recorder{}
	sum, err := Run(context.Background(), comps(memReader{"e.txt": "  \n\n"}, w, &textEncoder{}),
		Settings{Inputs: []string{"e.txt"}, BatchSize: 500, Start: 1, Name: seqName}, nil, rec)
	require.NoError(t, err)
	assert.Empty(t, w.order)
	require.Len(t, rec.empty, 1)
	assert.Equal(t, "e.txt", rec.empty[0].Source)
	assert.Equal(t, int64(1), sum.NextSeq)
}

// TestRunParseFailureWritesNothing 任一输入解析失败则不写任何文件
func TestRunParseFailureWritesNothing(t *testing.T) {
	w := &memWriter{}
	in := memReader{"a.csv": "title\nx\n", "b.csv": "title\n1,2\n"}
	comp := Components{Reader: in, Splitter: csvtable.New(nil), Batcher: fixed.New(), Encoder: &textEncoder{}, Writer: w}
	_, err := Run(context.Background(), comp,
		Settings{Inputs: []string{"a.csv", "b.csv"}, BatchSize: 1, Start: 1, PerFile: true, Name: stemName}, nil, nil)
	require.ErrorIs(t, err, contract.ErrInvalidInput)
	assert.Equal(t, diag.CodeParse, diag.Classify(err))
	assert.Empty(t, w.order)
}

// TestRunMissingInput 输入不存在
func TestRunMissingInput(t *testing.T) {
	_, err := Run(context.Background(), comps(memReader{}, &memWriter{}, &textEncoder{}),
		Settings{Inputs: []string{"nope"}, BatchSize: 1, Name: seqName}, nil, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, diag.CodeIO, diag.Classify(err))
}

// TestRunEncodeFailure 编码失败：已写出的文件保留，序号停在失败处
func TestRunEncodeFailure(t *testing.T) {
	w := &memWriter{}
	sum, err := Run(context.Background(), comps(memReader{"in.txt": numbered(5)}, w, &textEncoder{fail: 1}),
		Settings{Inputs: []string{"in.txt"}, BatchSize: 2, Start: 1, Name: seqName}, nil, nil)
	require.ErrorIs(t, err, contract.ErrInvariantViolation)
	assert.Equal(t, []string{"out/1.txt"}, w.order)
	assert.Equal(t, int64(2), sum.NextSeq)
}

// TestRunSanity 组件与参数校验
func TestRunSanity(t *testing.T) {
	good := comps(memReader{}, &memWriter{}, &textEncoder{})
	cases := []struct {
		name string
		comp Components
		set  Settings
	}{
		{"缺组件", Components{}, Settings{Inputs: []string{"x"}, BatchSize: 1, Name: seqName}},
		{"无输入", good, Settings{BatchSize: 1, Name: seqName}},
		{"批大小", good, Settings{Inputs: []string{"x"}, Name: seqName}},
		{"无命名器", good, Settings{Inputs: []string{"x"}, BatchSize: 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Run(context.Background(), c.comp, c.set, nil, nil)
			assert.Error(t, err)
		})
	}
}

// TestRunCtxCancel 上下文取消
func TestRunCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &memWriter{}
	_, err := Run(ctx, comps(memReader{"in.txt": "a\n"}, w, &textEncoder{}),
		Settings{Inputs: []string{"in.txt"}, BatchSize: 1, Name: seqName}, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, w.order)
}

// TestRunLogsAndTerminal 日志事件与终端行
func TestRunLogsAndTerminal(t *testing.T) {
	var logs, term bytes.Buffer
	logger := diag.NewLogger("cid", diag.Options{Level: "debug", Output: &logs})
	diag.SetTerminal(diag.NewTerminal(&term, true))
	t.Cleanup(func() { diag.SetTerminal(nil) })

	_, err := Run(context.Background(), comps(memReader{"in.txt": numbered(3)}, &memWriter{}, &textEncoder{}),
		Settings{Inputs: []string{"in.txt"}, BatchSize: 2, Start: 1, Name: seqName}, logger, nil)
	require.NoError(t, err)
	for _, want := range []string{`"comp":"splitter"`, `"comp":"writer"`, `"corr_id":"cid"`, `"path":"out/2.txt"`} {
		assert.Contains(t, logs.String(), want)
	}
	assert.Contains(t, term.String(), "[done] in.txt | 批次 2")
}

// TestRunRealXLSX 端到端：文本 → 工作簿文件
func TestRunRealXLSX(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "merged.txt")
	require.NoError(t, os.WriteFile(in, []byte("\xef\xbb\xbf"+numbered(1200)), 0o644))
	out := filepath.Join(dir, "xlsx")
	w, err := fswriter.New(&fswriter.Options{OutputDir: out})
	require.NoError(t, err)
	comp := Components{
		Reader: filesystem.New(nil), Splitter: lines.New(nil), Batcher: fixed.New(),
		Encoder: xlsx.New(nil), Writer: w,
	}
	name := func(_ contract.FileID, seq int64) contract.ArtifactID {
		return contract.ArtifactID(fmt.Sprintf("%d.xlsx", seq))
	}
	rec := &recorder{}
	_, err = Run(context.Background(), comp, Settings{Inputs: []string{in}, BatchSize: 500, Start: 5, Name: name}, nil, rec)
	require.NoError(t, err)

	want := map[string]int{"5.xlsx": 500, "6.xlsx": 500, "7.xlsx": 200}
	for file, n := range want {
		f, err := excelize.OpenFile(filepath.Join(out, file))
		require.NoError(t, err)
		rows, err := f.GetRows("Sheet1")
		require.NoError(t, err)
		_ = f.Close()
		assert.Len(t, rows, n+1, file)
		assert.Equal(t, []string{"productId"}, rows[0])
	}
	assert.Equal(t, filepath.Join(out, "5.xlsx"), rec.written[0].Path)
}

// TestRunRealSQL 端到端：CSV → SQL 文件
func TestRunRealSQL(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "parts.csv")
	var sb strings.Builder
	sb.WriteString("product_id,title,price\n")
	for i := 0; i < 501; i++ {
		fmt.Fprintf(&sb, "%d,T%d,\n", i, i)
	}
	require.NoError(t, os.WriteFile(in, []byte(sb.String()), 0o644))
	out := filepath.Join(dir, "sql")
	w, err := fswriter.New(&fswriter.Options{OutputDir: out})
	require.NoError(t, err)
	comp := Components{
		Reader: filesystem.New(nil), Splitter: csvtable.New(nil), Batcher: fixed.New(),
		Encoder: sqlinsert.New(nil), Writer: w,
	}
	name := func(fid contract.FileID, seq int64) contract.ArtifactID {
		return contract.ArtifactID(fmt.Sprintf("%s_%d.sql", fid.Stem(), seq))
	}
	rec := &recorder{}
	_, err = Run(context.Background(), comp, Settings{Inputs: []string{in}, BatchSize: 500, Start: 1, PerFile: true, Name: name}, nil, rec)
	require.NoError(t, err)
	require.Len(t, rec.written, 2)
	assert.Equal(t, int64(501), rec.written[1].From)
	assert.Equal(t, int64(501), rec.written[1].To)

	b, err := os.ReadFile(filepath.Join(out, "parts_2.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "-- Source: "+in+"\n")
	assert.Contains(t, string(b), "INSERT INTO parts_table (ManufacturerProductNumber, UnitPrice) VALUES ('T500', NULL);\n")
	assert.NotContains(t, string(b), "product_id")
}
