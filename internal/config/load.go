package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"partsbatch/plugins/encoder/sqlinsert"
)

// EnvPrefix 为环境变量覆盖的前缀。
const EnvPrefix = "PARTSBATCH_"

// Defaults 返回默认配置；无任何覆盖时行为与内置默认一致。
func Defaults() Config {
	return Config{
		Logging: Logging{Level: "info", Dir: "logs"},
		Reader: Reader{
			BufSize:         64 * 1024,
			ExcludeDirNames: []string{".git", "node_modules"},
		},
		XLSX: XLSX{
			OutputDir: "xlsx",
			BatchSize: 500,
			Sheet:     "Sheet1",
			Column:    "productId",
			InputExts: []string{".txt"},
		},
		SQL: SQL{
			OutputDir:   "sql",
			BatchSize:   500,
			Table:       sqlinsert.DefaultTable,
			SkipColumns: sqlinsert.DefaultSkip(),
			Rename:      sqlinsert.DefaultRename(),
			Comma:       ",",
		},
	}
}

// Load 按扩展名解析配置文件：.toml 走 TOML，其余按 JSON；均严格拒绝未知键。
func Load(path string) (Config, error) {
	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, errors.Wrapf(err, "config: decode %s", path)
		}
		if und := md.Undecoded(); len(und) > 0 {
			keys := make([]string, len(und))
			for i, k := range und {
				keys[i] = k.String()
			}
			return Config{}, errors.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WithStack(err)
	}
	return LoadJSON(raw)
}

// LoadJSON 解析原始 JSON（严格拒绝未知字段）。
func LoadJSON(raw []byte) (Config, error) {
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: decode json")
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 零值/nil 视为未设置；切片整体替换，不做深度合并。
func Merge(base, over Config) Config {
	out := base
	// Logging
	if v := strings.TrimSpace(over.Logging.Level); v != "" {
		out.Logging.Level = v
	}
	if v := strings.TrimSpace(over.Logging.Dir); v != "" {
		out.Logging.Dir = v
	}
	if over.Logging.Console != nil {
		out.Logging.Console = boolPtr(*over.Logging.Console)
	}
	// Reader
	if over.Reader.BufSize != 0 {
		out.Reader.BufSize = over.Reader.BufSize
	}
	if over.Reader.ExcludeDirNames != nil {
		out.Reader.ExcludeDirNames = cloneStrings(over.Reader.ExcludeDirNames)
	}
	// Writer
	if over.Writer.Atomic != nil {
		out.Writer.Atomic = boolPtr(*over.Writer.Atomic)
	}
	// XLSX
	if v := strings.TrimSpace(over.XLSX.OutputDir); v != "" {
		out.XLSX.OutputDir = v
	}
	if over.XLSX.BatchSize != 0 {
		out.XLSX.BatchSize = over.XLSX.BatchSize
	}
	if v := strings.TrimSpace(over.XLSX.Sheet); v != "" {
		out.XLSX.Sheet = v
	}
	if v := strings.TrimSpace(over.XLSX.Column); v != "" {
		out.XLSX.Column = v
	}
	if over.XLSX.PlainHeader {
		out.XLSX.PlainHeader = true
	}
	if over.XLSX.InputExts != nil {
		out.XLSX.InputExts = cloneStrings(over.XLSX.InputExts)
	}
	// SQL
	if v := strings.TrimSpace(over.SQL.OutputDir); v != "" {
		out.SQL.OutputDir = v
	}
	if over.SQL.BatchSize != 0 {
		out.SQL.BatchSize = over.SQL.BatchSize
	}
	if v := strings.TrimSpace(over.SQL.Table); v != "" {
		out.SQL.Table = v
	}
	if over.SQL.SkipColumns != nil {
		out.SQL.SkipColumns = cloneStrings(over.SQL.SkipColumns)
	}
	if over.SQL.Rename != nil {
		out.SQL.Rename = append([]sqlinsert.ColumnRename{}, over.SQL.Rename...)
	}
	if over.SQL.Comma != "" {
		out.SQL.Comma = over.SQL.Comma
	}
	if over.SQL.LazyQuotes {
		out.SQL.LazyQuotes = true
	}
	if v := strings.TrimSpace(over.SQL.InputSheet); v != "" {
		out.SQL.InputSheet = v
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 支持：LOG_LEVEL, LOG_DIR, LOG_CONSOLE, XLSX_OUTPUT_DIR, XLSX_BATCH_SIZE,
// SQL_OUTPUT_DIR, SQL_BATCH_SIZE, SQL_TABLE。CONFIG_FILE 由调用方读取。
// 空值视为未设置；数值/布尔解析失败返回错误。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[len(EnvPrefix):eq]
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			continue
		}
		var err error
		switch key {
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_DIR":
			over.Logging.Dir = val
		case "LOG_CONSOLE":
			var b bool
			if b, err = strconv.ParseBool(val); err == nil {
				over.Logging.Console = &b
			}
		case "XLSX_OUTPUT_DIR":
			over.XLSX.OutputDir = val
		case "XLSX_BATCH_SIZE":
			over.XLSX.BatchSize, err = strconv.Atoi(val)
		case "SQL_OUTPUT_DIR":
			over.SQL.OutputDir = val
		case "SQL_BATCH_SIZE":
			over.SQL.BatchSize, err = strconv.Atoi(val)
		case "SQL_TABLE":
			over.SQL.Table = val
		}
		if err != nil {
			return Config{}, errors.Wrapf(err, "env %s%s", EnvPrefix, key)
		}
	}
	return over, nil
}

func boolPtr(b bool) *bool { return &b }

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
