package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"partsbatch/internal/diag"
	"partsbatch/internal/pipeline"
	"partsbatch/pkg/contract"
	"partsbatch/pkg/registry"
)

// ErrConfig: 配置非法（退出码 3）。
var ErrConfig = errors.New("config invalid")

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	bad := func(format string, a ...any) error {
		return errors.Wrapf(ErrConfig, format, a...)
	}
	if !diag.ValidLevel(cfg.Logging.Level) {
		return bad("logging.level %q: want debug|info|warn|error", cfg.Logging.Level)
	}
	if cfg.Reader.BufSize < 0 {
		return bad("reader.buf_size must be >= 0")
	}
	if strings.TrimSpace(cfg.XLSX.OutputDir) == "" {
		return bad("xlsx.output_dir is empty")
	}
	if cfg.XLSX.BatchSize <= 0 {
		return bad("xlsx.batch_size must be > 0, got %d", cfg.XLSX.BatchSize)
	}
	for _, e := range cfg.XLSX.InputExts {
		if strings.TrimSpace(e) == "" {
			return bad("xlsx.input_exts contains empty entry")
		}
	}
	if strings.TrimSpace(cfg.SQL.OutputDir) == "" {
		return bad("sql.output_dir is empty")
	}
	if cfg.SQL.BatchSize <= 0 {
		return bad("sql.batch_size must be > 0, got %d", cfg.SQL.BatchSize)
	}
	if !identRe.MatchString(cfg.SQL.Table) {
		return bad("sql.table %q is not a plain identifier", cfg.SQL.Table)
	}
	for i, m := range cfg.SQL.Rename {
		if strings.TrimSpace(m.From) == "" || strings.TrimSpace(m.To) == "" {
			return bad("sql.rename[%d]: from/to must be non-empty", i)
		}
	}
	if c := cfg.SQL.Comma; c != "" {
		r, n := utf8.DecodeRuneInString(c)
		if n != len(c) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
			return bad("sql.comma %q must be a single character other than quote or newline", c)
		}
	}
	return nil
}

// AssembleXLSX 构造文本 → 工作簿流水线。
// 全部输入（目录内按 xlsx.input_exts 过滤）合并为一条记录流，序号自 base 起。
func AssembleXLSX(cfg Config, inputs []string, base int64) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	o := pluginOptions(cfg, cfg.XLSX.OutputDir, cfg.XLSX.InputExts)
	o.Lines.Column = cfg.XLSX.Column
	o.XLSXOut.Sheet = cfg.XLSX.Sheet
	o.XLSXOut.PlainHeader = cfg.XLSX.PlainHeader

	comp, err := build(o, "lines", nil, "xlsx")
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	ext := comp.Encoder.Ext()
	set := pipeline.Settings{
		Inputs:    cloneStrings(inputs),
		BatchSize: cfg.XLSX.BatchSize,
		Start:     base,
		Merge:     true,
		Name: func(_ contract.FileID, seq int64) contract.ArtifactID {
			return contract.ArtifactID(fmt.Sprintf("%d%s", seq, ext))
		},
	}
	return comp, set, nil
}

// sqlInputExts: 目录输入时接受的表格扩展名。
var sqlInputExts = []string{".csv", ".xlsx"}

// AssembleSQL 构造表格 → INSERT 流水线。
// 每个输入文件独立编号（<基名>_<n>.sql，n 自 1 起）；未知扩展名按 CSV 解析。
func AssembleSQL(cfg Config, inputs []string) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	o := pluginOptions(cfg, cfg.SQL.OutputDir, sqlInputExts)
	o.CSV.Comma = cfg.SQL.Comma
	o.CSV.LazyQuotes = cfg.SQL.LazyQuotes
	o.XLSXIn.Sheet = cfg.SQL.InputSheet
	o.SQL.Table = cfg.SQL.Table
	o.SQL.Skip = cloneStrings(cfg.SQL.SkipColumns)
	o.SQL.Rename = cfg.SQL.Rename

	comp, err := build(o, "", sqlInputExts, "sql")
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	ext := comp.Encoder.Ext()
	set := pipeline.Settings{
		Inputs:    cloneStrings(inputs),
		BatchSize: cfg.SQL.BatchSize,
		Start:     1,
		PerFile:   true,
		Name: func(fid contract.FileID, seq int64) contract.ArtifactID {
			return contract.ArtifactID(fmt.Sprintf("%s_%d%s", fid.Stem(), seq, ext))
		},
	}
	return comp, set, nil
}

// pluginOptions 填充两个工具共用的 Reader/Writer 选项。
// 输出目录的基名加入目录扫描排除列表，避免把上次的输出当作输入。
func pluginOptions(cfg Config, outDir string, exts []string) registry.Options {
	var o registry.Options
	o.Reader.BufSize = cfg.Reader.BufSize
	o.Reader.ExcludeDirNames = append(cloneStrings(cfg.Reader.ExcludeDirNames), filepath.Base(filepath.Clean(outDir)))
	if dir := strings.TrimSpace(cfg.Logging.Dir); dir != "" {
		o.Reader.ExcludeDirNames = append(o.Reader.ExcludeDirNames, filepath.Base(filepath.Clean(dir)))
	}
	o.Reader.AllowExts = cloneStrings(exts)
	o.Writer.OutputDir = outDir
	o.Writer.Atomic = cfg.Writer.Atomic
	return o
}

// build 按名称从注册表构造组件。splitter 为空时按 exts 分派（未知扩展名回落到 csv）。
func build(o registry.Options, splitter string, exts []string, encoder string) (pipeline.Components, error) {
	var comp pipeline.Components
	r, err := registry.Reader["fs"](o)
	if err != nil {
		return comp, errors.Wrap(err, "assemble reader")
	}
	var s contract.Splitter
	if splitter != "" {
		s, err = registry.Splitter[splitter](o)
	} else {
		s, err = registry.ByExt(exts, "csv", o)
	}
	if err != nil {
		return comp, errors.Wrap(err, "assemble splitter")
	}
	b, err := registry.Batcher["fixed"](o)
	if err != nil {
		return comp, errors.Wrap(err, "assemble batcher")
	}
	e, err := registry.Encoder[encoder](o)
	if err != nil {
		return comp, errors.Wrap(err, "assemble encoder")
	}
	w, err := registry.Writer["fs"](o)
	if err != nil {
		return comp, errors.Wrap(err, "assemble writer")
	}
	return pipeline.Components{Reader: r, Splitter: s, Batcher: b, Encoder: e, Writer: w}, nil
}
