package csvtable

import (
	"context"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"

	"partsbatch/pkg/contract"
)

// Options 为 CSV Splitter 的可选配置。
type Options struct {
	// Comma: 字段分隔符（单个字符）。为空时使用 ','。
	Comma string `json:"comma" toml:"comma"`
	// LazyQuotes: 允许字段内出现未转义的引号。
	LazyQuotes bool `json:"lazy_quotes" toml:"lazy_quotes"`
}

// Splitter 将带表头的 CSV 解析为 Table。
type Splitter struct {
	comma rune
	lazy  bool
}

// New 创建 CSV Splitter。
func New(opts *Options) *Splitter {
	s := &Splitter{comma: ','}
	if opts != nil {
		if r, _ := utf8.DecodeRuneInString(opts.Comma); opts.Comma != "" && r != utf8.RuneError {
			s.comma = r
		}
		s.lazy = opts.LazyQuotes
	}
	return s
}

var _ contract.Splitter = (*Splitter)(nil)

// Split 首行为表头（必需）；空行跳过；短行以缺失值补齐；长行报错。
func (s *Splitter) Split(ctx context.Context, fileID contract.FileID, r io.Reader) (contract.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = s.comma
	cr.LazyQuotes = s.lazy
	cr.FieldsPerRecord = -1

	raw, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return contract.Table{}, errors.Wrapf(contract.ErrInvalidInput, "%s: no columns to parse", fileID)
	}
	if err != nil {
		return contract.Table{}, parseErr(fileID, err)
	}
	if err := checkUTF8(fileID, 1, raw); err != nil {
		return contract.Table{}, err
	}
	t := contract.Table{FileID: fileID, Header: contract.NormalizeHeader(raw)}
	width := len(t.Header)

	var idx contract.Index
	for {
		if err := ctx.Err(); err != nil {
			return contract.Table{}, err
		}
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return contract.Table{}, parseErr(fileID, err)
		}
		line, _ := cr.FieldPos(0)
		if len(fields) > width {
			return contract.Table{}, errors.Wrapf(contract.ErrInvalidInput,
				"%s: line %d: expected %d fields, saw %d", fileID, line, width, len(fields))
		}
		if err := checkUTF8(fileID, line, fields); err != nil {
			return contract.Table{}, err
		}
		t.Records = append(t.Records, contract.Record{
			Index:  idx,
			FileID: fileID,
			Values: contract.Align(fields, width),
		})
		idx++
	}
	return t, nil
}

func parseErr(fileID contract.FileID, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return errors.Wrapf(contract.ErrInvalidInput, "%s: %v", fileID, pe)
	}
	return errors.WithStack(err)
}

func checkUTF8(fileID contract.FileID, line int, fields []string) error {
	for _, f := range fields {
		if !utf8.ValidString(f) {
			return errors.Wrapf(contract.ErrInvalidInput, "%s: line %d: invalid UTF-8", fileID, line)
		}
	}
	return nil
}
