package registry

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"partsbatch/pkg/contract"
	fixed "partsbatch/plugins/batcher/fixed"
	esql "partsbatch/plugins/encoder/sqlinsert"
	exlsx "partsbatch/plugins/encoder/xlsx"
	rfs "partsbatch/plugins/reader/filesystem"
	byext "partsbatch/plugins/splitter/byext"
	scsv "partsbatch/plugins/splitter/csvtable"
	slines "partsbatch/plugins/splitter/lines"
	sxlsx "partsbatch/plugins/splitter/xlsxtable"
	wfs "partsbatch/plugins/writer/filesystem"
)

// Options 汇总各插件的类型化选项；零值即默认。
type Options struct {
	Reader  rfs.Options
	Lines   slines.Options
	CSV     scsv.Options
	XLSXIn  sxlsx.Options
	XLSXOut exlsx.Options
	SQL     esql.Options
	Writer  wfs.Options
}

// NewReader 工厂签名。
type NewReader func(o Options) (contract.Reader, error)

// NewSplitter 工厂签名。
type NewSplitter func(o Options) (contract.Splitter, error)

// NewBatcher 工厂签名。
type NewBatcher func(o Options) (contract.Batcher, error)

// NewEncoder 工厂签名。
type NewEncoder func(o Options) (contract.Encoder, error)

// NewWriter 工厂签名。
type NewWriter func(o Options) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件/目录 Reader
	"fs": func(o Options) (contract.Reader, error) { return rfs.New(&o.Reader), nil },
}

// Splitter 工厂注册表。
var Splitter = map[string]NewSplitter{
	// lines: 文本逐行 → 单列表
	"lines": func(o Options) (contract.Splitter, error) { return slines.New(&o.Lines), nil },
	// csv: 带表头 CSV
	"csv": func(o Options) (contract.Splitter, error) { return scsv.New(&o.CSV), nil },
	// xlsx: 工作簿首个（或指定）工作表
	"xlsx": func(o Options) (contract.Splitter, error) { return sxlsx.New(&o.XLSXIn), nil },
}

// SplitterByExt: 扩展名 → Splitter 名。
var SplitterByExt = map[string]string{
	".txt":  "lines",
	".csv":  "csv",
	".xlsx": "xlsx",
}

// Batcher 工厂注册表。
var Batcher = map[string]NewBatcher{
	// fixed: 定长切批
	"fixed": func(Options) (contract.Batcher, error) { return fixed.New(), nil },
}

// Encoder 工厂注册表。
var Encoder = map[string]NewEncoder{
	// xlsx: 单工作表工作簿
	"xlsx": func(o Options) (contract.Encoder, error) { return exlsx.New(&o.XLSXOut), nil },
	// sql: INSERT 语句文本
	"sql": func(o Options) (contract.Encoder, error) { return esql.New(&o.SQL), nil },
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(o Options) (contract.Writer, error) { return wfs.New(&o.Writer) },
}

// ByExt 为给定扩展名集合构造按扩展名分派的 Splitter；
// fallback 非空时作为未注册扩展名的 Splitter 名。
func ByExt(exts []string, fallback string, o Options) (*byext.Splitter, error) {
	if len(exts) == 0 {
		return nil, errors.Wrap(contract.ErrInvariantViolation, "registry: no extensions")
	}
	m := make(map[string]contract.Splitter, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		name, ok := SplitterByExt[ext]
		if !ok {
			return nil, errors.Wrapf(contract.ErrInvariantViolation, "registry: no splitter for %q (known: %s)",
				ext, strings.Join(Names(SplitterByExt), ", "))
		}
		s, err := Splitter[name](o)
		if err != nil {
			return nil, errors.Wrapf(err, "registry: splitter %s", name)
		}
		m[ext] = s
	}
	var fb contract.Splitter
	if fallback != "" {
		f, ok := Splitter[fallback]
		if !ok {
			return nil, errors.Wrapf(contract.ErrInvariantViolation, "registry: splitter %q not registered (known: %s)",
				fallback, strings.Join(Names(Splitter), ", "))
		}
		s, err := f(o)
		if err != nil {
			return nil, errors.Wrapf(err, "registry: splitter %s", fallback)
		}
		fb = s
	}
	return byext.New(m, fb), nil
}

// Names 返回注册表键（有序），用于错误提示。
func Names[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
