package lines

import (
	"bufio"
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"partsbatch/pkg/contract"
)

// DefaultColumn 为文本输入生成的单列表头。
const DefaultColumn = "productId"

// Options 为文本行 Splitter 的可选配置。
type Options struct {
	// Column: 单列表头名。为空时使用 DefaultColumn。
	Column string `json:"column" toml:"column"`
}

// Splitter 将文本按行拆分为单列表。
type Splitter struct {
	column string
}

// New 创建文本行 Splitter。
func New(opts *Options) *Splitter {
	col := DefaultColumn
	if opts != nil && strings.TrimSpace(opts.Column) != "" {
		col = strings.TrimSpace(opts.Column)
	}
	return &Splitter{column: col}
}

var _ contract.Splitter = (*Splitter)(nil)

// Split 读取全部行（\n、\r\n、\r 均视为行结束），去首尾空白，丢弃空行。
// 无法解码的 UTF-8 字节被静默丢弃。
func (s *Splitter) Split(ctx context.Context, fileID contract.FileID, r io.Reader) (contract.Table, error) {
	t := contract.Table{FileID: fileID, Header: contract.Header{s.column}}
	br := bufio.NewReader(r)
	var idx contract.Index
	for {
		if err := ctx.Err(); err != nil {
			return contract.Table{}, err
		}
		chunk, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return contract.Table{}, errors.WithStack(err)
		}
		// 单独的 \r 也是行结束；\r\n 切分后留下的空段随空行一起丢弃
		for _, line := range strings.Split(chunk, "\r") {
			line = clean(line)
			if line == "" {
				continue
			}
			t.Records = append(t.Records, contract.Record{
				Index:  idx,
				FileID: fileID,
				Text:   line,
				Values: []contract.Value{contract.Str(line)},
			})
			idx++
		}
		if err != nil {
			break
		}
	}
	return t, nil
}

// clean 丢弃无法解码的字节（合法编码的 U+FFFD 保留）并去首尾空白。
func clean(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.TrimSpace(s)
}
