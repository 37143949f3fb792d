package sqlinsert

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"partsbatch/pkg/contract"
)

// TimeLayout: UTC、微秒精度的 ISO-8601（不含时区，调用处追加 "Z"）。
const TimeLayout = "2006-01-02T15:04:05.000000"

// DefaultTable 为默认目标表名。
const DefaultTable = "parts_table"

// ColumnRename: 源列名到目标列名的一条映射。
type ColumnRename struct {
	From string `json:"from" toml:"from"`
	To   string `json:"to" toml:"to"`
}

// DefaultRename 为默认列映射（有序）。
func DefaultRename() []ColumnRename {
	return []ColumnRename{
		{"title", "ManufacturerProductNumber"},
		{"category", "Category"},
		{"price", "UnitPrice"},
		{"description", "ProductAttributes"},
		{"short_description", "AdditionalInformation"},
		{"image_url", "PhotoUrl"},
		{"post_extra_manufacturer", "ExtraManufacturerName"},
		{"post_extra_description", "ExtraDescription"},
		{"post_extra_detail_description", "ExtraDetailedDescription"},
		{"post_extra_datasheet_url", "ExtraDatasheetUrl"},
	}
}

// DefaultSkip 为默认始终忽略的源列。
func DefaultSkip() []string {
	return []string{"product_id", "product_url", "post_extra_gpt_data"}
}

// Options 为 SQL Encoder 的可选配置。nil 切片采用默认值，显式空切片表示不映射/不忽略。
type Options struct {
	Table  string         `json:"table" toml:"table"`
	Skip   []string       `json:"skip_columns" toml:"skip_columns"`
	Rename []ColumnRename `json:"rename" toml:"rename"`
	// Now: 生成时间来源；nil 时使用 time.Now。
	Now func() time.Time `json:"-" toml:"-"`
}

// Encoder 将一个 Batch 渲染为带注释头的 INSERT 语句文本。
type Encoder struct {
	table  string
	skip   map[string]struct{}
	rename map[string]string
	now    func() time.Time
}

// New 创建 SQL Encoder。
func New(opts *Options) *Encoder {
	e := &Encoder{table: DefaultTable, now: time.Now}
	skip, rename := DefaultSkip(), DefaultRename()
	if opts != nil {
		if t := strings.TrimSpace(opts.Table); t != "" {
			e.table = t
		}
		if opts.Skip != nil {
			skip = opts.Skip
		}
		if opts.Rename != nil {
			rename = opts.Rename
		}
		if opts.Now != nil {
			e.now = opts.Now
		}
	}
	e.skip = make(map[string]struct{}, len(skip))
	for _, s := range skip {
		e.skip[s] = struct{}{}
	}
	e.rename = make(map[string]string, len(rename))
	for _, m := range rename {
		e.rename[m.From] = m.To
	}
	return e
}

var _ contract.Encoder = (*Encoder)(nil)

// Ext 返回 ".sql"。
func (e *Encoder) Ext() string { return ".sql" }

// Columns 返回去除忽略列、完成重命名后的列名及其在源表头中的位置。
func (e *Encoder) Columns(h contract.Header) (names []string, pos []int) {
	for i, col := range h {
		if _, skip := e.skip[col]; skip {
			continue
		}
		if to, ok := e.rename[col]; ok {
			col = to
		}
		names = append(names, col)
		pos = append(pos, i)
	}
	return names, pos
}

// Encode 输出：三行注释头、空行、每条记录一行 INSERT。
func (e *Encoder) Encode(ctx context.Context, t contract.Table, b contract.Batch) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// 列可能全部被忽略：此时输出 "() VALUES ()"
	names, pos := e.Columns(t.Header)
	source := t.Source
	if source == "" {
		source = string(t.FileID)
	}

	var sb strings.Builder
	sb.WriteString("-- Generated SQL INSERT statements\n")
	fmt.Fprintf(&sb, "-- Source: %s\n", source)
	fmt.Fprintf(&sb, "-- Generated on: %sZ\n\n", e.now().UTC().Format(TimeLayout))

	prefix := "INSERT INTO " + e.table + " (" + strings.Join(names, ", ") + ") VALUES ("
	vals := make([]string, len(pos))
	for _, rec := range b.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(rec.Values) > len(t.Header) {
			return nil, errors.Wrapf(contract.ErrInvariantViolation,
				"sql: record %d has %d values for %d columns", rec.Index, len(rec.Values), len(t.Header))
		}
		for j, p := range pos {
			v := contract.Missing()
			if p < len(rec.Values) {
				v = rec.Values[p]
			}
			vals[j] = Escape(v)
		}
		sb.WriteString(prefix)
		sb.WriteString(strings.Join(vals, ", "))
		sb.WriteString(");\n")
	}
	return strings.NewReader(sb.String()), nil
}

// Escape 渲染单个字段值：缺失或去空白后为空 → NULL；否则单引号加倍并整体加引号。
func Escape(v contract.Value) string {
	if !v.Valid || strings.TrimSpace(v.Text) == "" {
		return "NULL"
	}
	return "'" + strings.ReplaceAll(v.Text, "'", "''") + "'"
}
