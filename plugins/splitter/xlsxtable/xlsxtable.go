package xlsxtable

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"partsbatch/pkg/contract"
)

// Options 为 XLSX Splitter 的可选配置。
type Options struct {
	// Sheet: 读取的工作表名。为空时读取第一个工作表。
	Sheet string `json:"sheet" toml:"sheet"`
}

// Splitter 读取工作簿中的一个工作表，首个非空行为表头。
type Splitter struct {
	sheet string
}

// New 创建 XLSX Splitter。
func New(opts *Options) *Splitter {
	s := &Splitter{}
	if opts != nil {
		s.sheet = strings.TrimSpace(opts.Sheet)
	}
	return s
}

var _ contract.Splitter = (*Splitter)(nil)

// Split 全表读入后对齐：表头宽度取所有行的最大宽度，不足处按空列名处理；
// 全空行跳过；短行以缺失值补齐。
func (s *Splitter) Split(ctx context.Context, fileID contract.FileID, r io.Reader) (contract.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return contract.Table{}, errors.Wrapf(contract.ErrInvalidInput, "%s: open workbook: %v", fileID, err)
	}
	defer func() { _ = f.Close() }()

	sheet := s.sheet
	if sheet == "" {
		names := f.GetSheetList()
		if len(names) == 0 {
			return contract.Table{}, errors.Wrapf(contract.ErrInvalidInput, "%s: no sheets", fileID)
		}
		sheet = names[0]
	}
	iter, err := f.Rows(sheet)
	if err != nil {
		return contract.Table{}, errors.Wrapf(contract.ErrInvalidInput, "%s: sheet %q: %v", fileID, sheet, err)
	}
	defer func() { _ = iter.Close() }()

	var (
		head  []string
		rows  [][]string
		width int
		first = true
	)
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return contract.Table{}, err
		}
		row, err := iter.Columns()
		if err != nil {
			return contract.Table{}, errors.Wrapf(contract.ErrInvalidInput, "%s: sheet %q: %v", fileID, sheet, err)
		}
		if blank(row) {
			continue
		}
		if len(row) > width {
			width = len(row)
		}
		if first {
			head = row
			first = false
			continue
		}
		rows = append(rows, row)
	}
	if err := iter.Error(); err != nil {
		return contract.Table{}, errors.Wrapf(contract.ErrInvalidInput, "%s: sheet %q: %v", fileID, sheet, err)
	}
	if first {
		return contract.Table{}, errors.Wrapf(contract.ErrInvalidInput, "%s: sheet %q is empty", fileID, sheet)
	}

	raw := make([]string, width)
	copy(raw, head)
	t := contract.Table{FileID: fileID, Header: contract.NormalizeHeader(raw)}
	t.Records = make([]contract.Record, 0, len(rows))
	for i, row := range rows {
		t.Records = append(t.Records, contract.Record{
			Index:  contract.Index(i),
			FileID: fileID,
			Values: contract.Align(row, width),
		})
	}
	return t, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
