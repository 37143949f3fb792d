package config

import "partsbatch/plugins/encoder/sqlinsert"

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/TOML 键均为 snake_case；未知键在解析期失败。
type Config struct {
	Logging Logging `json:"logging" toml:"logging"`
	Reader  Reader  `json:"reader" toml:"reader"`
	Writer  Writer  `json:"writer" toml:"writer"`
	XLSX    XLSX    `json:"xlsx" toml:"xlsx"`
	SQL     SQL     `json:"sql" toml:"sql"`
}

// Logging: 日志级别与输出位置。
type Logging struct {
	Level string `json:"level" toml:"level"`
	// Dir: 轮转日志目录。
	Dir string `json:"dir" toml:"dir"`
	// Console: true 时输出到 stderr，不落盘。
	Console *bool `json:"console,omitempty" toml:"console,omitempty"`
}

// Reader: 目录扫描选项。
type Reader struct {
	BufSize         int      `json:"buf_size" toml:"buf_size"`
	ExcludeDirNames []string `json:"exclude_dir_names" toml:"exclude_dir_names"`
}

// Writer: 输出写入方式（两个工具共用；输出目录在各自小节）。
type Writer struct {
	Atomic *bool `json:"atomic,omitempty" toml:"atomic,omitempty"`
}

// XLSX: 文本 → 工作簿。
type XLSX struct {
	OutputDir string `json:"output_dir" toml:"output_dir"`
	BatchSize int    `json:"batch_size" toml:"batch_size"`
	Sheet     string `json:"sheet" toml:"sheet"`
	Column    string `json:"column" toml:"column"`
	// PlainHeader: 表头不加粗。
	PlainHeader bool `json:"plain_header" toml:"plain_header"`
	// InputExts: 目录输入时合并的文件扩展名。
	InputExts []string `json:"input_exts" toml:"input_exts"`
}

// SQL: 表格 → INSERT 语句。
type SQL struct {
	OutputDir   string                   `json:"output_dir" toml:"output_dir"`
	BatchSize   int                      `json:"batch_size" toml:"batch_size"`
	Table       string                   `json:"table" toml:"table"`
	SkipColumns []string                 `json:"skip_columns" toml:"skip_columns"`
	Rename      []sqlinsert.ColumnRename `json:"rename" toml:"rename"`
	// Comma/LazyQuotes: CSV 解析选项。
	Comma      string `json:"comma" toml:"comma"`
	LazyQuotes bool   `json:"lazy_quotes" toml:"lazy_quotes"`
	// InputSheet: XLSX 输入读取的工作表（空为首个）。
	InputSheet string `json:"input_sheet" toml:"input_sheet"`
}
