package contract

// FileID: 输入文件的逻辑标识（通常为路径，需规范化，跨平台一致）。
type FileID string

// Index: 单表内稳定递增的记录序号（0..n-1）。
type Index int64

// Value: 单个字段值。Valid=false 表示字段缺失（例如 CSV 行短于表头）。
type Value struct {
	Text  string
	Valid bool
}

// Str 构造一个存在的字段值。
func Str(s string) Value { return Value{Text: s, Valid: true} }

// Missing 构造一个缺失的字段值。
func Missing() Value { return Value{} }

// Record: 原子工作单元（不可跨文件）。
// 约束：
//   - 同一 Table 内 FileID 一致；
//   - Index 自 0 严格递增；
//   - 文本输入：Text 为去首尾空白后的非空行，Values 仅一列且等于 Text；
//   - 表格输入：Values 与 Header 等长、按列对齐；Text 为空。
type Record struct {
	Index  Index
	FileID FileID
	Text   string
	Values []Value
}

// Header: 表头（列名，按源顺序）。加载期确定，之后只读。
type Header []string

// Table: 单个输入文件被完整加载后的内存表示。
type Table struct {
	FileID FileID
	// Source: 用户给出的原始路径（用于输出中的来源说明）。
	Source  string
	Header  Header
	Records []Record
}

// Batch: 连续、有序、定长（末批可更短）的记录切片。
// From/To 为闭区间（基于 Record.Index）。
type Batch struct {
	FileID FileID
	// BatchIndex: 同一 FileID 内的批序（0..n-1，严格递增）。
	BatchIndex int64
	Records    []Record
	From       Index
	To         Index
}

// Len 返回批内记录数。
func (b Batch) Len() int { return len(b.Records) }
