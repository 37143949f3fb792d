package xlsx

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"partsbatch/pkg/contract"
)

// DefaultSheet 为输出工作表名。
const DefaultSheet = "Sheet1"

// Options 为电子表格 Encoder 的可选配置。
type Options struct {
	// Sheet: 工作表名。为空时使用 DefaultSheet。
	Sheet string `json:"sheet" toml:"sheet"`
	// PlainHeader: 表头不加粗。
	PlainHeader bool `json:"plain_header" toml:"plain_header"`
}

// Encoder 将一个 Batch 写成单工作表工作簿：首行为表头，其后每条记录一行。
type Encoder struct {
	sheet string
	bold  bool
}

// New 创建电子表格 Encoder。
func New(opts *Options) *Encoder {
	e := &Encoder{sheet: DefaultSheet, bold: true}
	if opts != nil {
		if s := strings.TrimSpace(opts.Sheet); s != "" {
			e.sheet = s
		}
		e.bold = !opts.PlainHeader
	}
	return e
}

var _ contract.Encoder = (*Encoder)(nil)

// Ext 返回 ".xlsx"。
func (e *Encoder) Ext() string { return ".xlsx" }

// Encode 缺失值写为空单元格；所有值按字符串写入，不做数值推断。
func (e *Encoder) Encode(ctx context.Context, t contract.Table, b contract.Batch) (_ io.Reader, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(t.Header) == 0 {
		return nil, errors.Wrap(contract.ErrInvariantViolation, "xlsx: empty header")
	}
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.WithStack(cerr)
		}
	}()
	if e.sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, e.sheet); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	sw, err := f.NewStreamWriter(e.sheet)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	style := 0
	if e.bold {
		if style, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	head := make([]interface{}, len(t.Header))
	for i, name := range t.Header {
		head[i] = excelize.Cell{StyleID: style, Value: name}
	}
	if err := sw.SetRow("A1", head); err != nil {
		return nil, errors.WithStack(err)
	}

	for i, rec := range b.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(rec.Values) > len(t.Header) {
			return nil, errors.Wrapf(contract.ErrInvariantViolation,
				"xlsx: record %d has %d values for %d columns", rec.Index, len(rec.Values), len(t.Header))
		}
		row := make([]interface{}, len(rec.Values))
		for j, v := range rec.Values {
			if v.Valid {
				row[j] = v.Text
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, errors.WithStack(err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return bytes.NewReader(buf.Bytes()), nil
}
