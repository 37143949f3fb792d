package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	cfgpkg "partsbatch/internal/config"
	"partsbatch/internal/diag"
)

// 退出码。
const (
	ExitOK     = 0
	ExitFail   = 1
	ExitConfig = 3
)

// Flags 为两个工具共用的旗标。
type Flags struct {
	Config    string
	LogLevel  string
	Out       string
	BatchSize int
	Status    bool
	InitDir   string
}

// Register 在 fs 上注册共用旗标。
func Register(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "配置文件路径（.json 或 .toml）；缺省读取 ./partsbatch.toml（若存在）")
	fs.StringVar(&f.LogLevel, "log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")
	fs.StringVar(&f.Out, "out", "", "输出目录（覆盖配置）")
	fs.IntVar(&f.BatchSize, "batch-size", 0, "每个输出文件的最大行数（覆盖配置）")
	fs.BoolVar(&f.Status, "status", true, "运行结束时在 stderr 输出汇总")
	fs.StringVar(&f.InitDir, "init-config", "", "在指定目录生成 partsbatch.toml 与 .env 模板（已存在则跳过）；不带值时为当前目录")
	return f
}

// Section 选出工具对应的配置小节，用于应用 -out/-batch-size。
type Section func(c *cfgpkg.Config) (outDir *string, batchSize *int)

// XLSXSection 指向 [xlsx]。
func XLSXSection(c *cfgpkg.Config) (*string, *int) { return &c.XLSX.OutputDir, &c.XLSX.BatchSize }

// SQLSection 指向 [sql]。
func SQLSection(c *cfgpkg.Config) (*string, *int) { return &c.SQL.OutputDir, &c.SQL.BatchSize }

// LoadConfig 按 默认 < 文件 < ENV < CLI 叠加配置；校验由调用方完成。
func LoadConfig(f *Flags, environ []string, sec Section) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()

	path := f.Config
	if path == "" {
		path = lookupEnv(environ, cfgpkg.EnvPrefix+"CONFIG_FILE")
	}
	if path == "" {
		if st, err := os.Stat(cfgpkg.TemplateFile); err == nil && !st.IsDir() {
			path = cfgpkg.TemplateFile
		}
	}
	if path != "" {
		base, err := cfgpkg.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(environ)
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	var overCLI cfgpkg.Config
	overCLI.Logging.Level = f.LogLevel
	out, bs := sec(&overCLI)
	*out = f.Out
	if f.BatchSize != 0 {
		*bs = f.BatchSize
	}
	return cfgpkg.Merge(cfg, overCLI), nil
}

func lookupEnv(environ []string, key string) string {
	for _, kv := range environ {
		if strings.HasPrefix(kv, key+"=") {
			return strings.TrimSpace(kv[len(key)+1:])
		}
	}
	return ""
}

// NewLogger 按最终配置构造日志器。
func NewLogger(cfg cfgpkg.Config, corrID string) *diag.Logger {
	console := cfg.Logging.Console != nil && *cfg.Logging.Console
	return diag.NewLogger(corrID, diag.Options{Level: cfg.Logging.Level, Dir: cfg.Logging.Dir, Console: console})
}

// CorrID 生成本次运行的关联 ID。
func CorrID() string { return uuid.NewString() }

// InitConfig 处理 -init-config：生成模板后返回退出码。
func InitConfig(dir string, stdout, stderr io.Writer) int {
	path, wrote, err := cfgpkg.WriteTemplate(dir)
	if err != nil {
		fmt.Fprintf(stderr, "生成默认配置失败: %v\n", err)
		return ExitConfig
	}
	if wrote {
		fmt.Fprintf(stdout, "已生成 %s\n", path)
	} else {
		fmt.Fprintf(stdout, "已存在，跳过 %s\n", path)
	}
	if err := WriteDotEnv(dir); err != nil {
		fmt.Fprintf(stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return ExitOK
}

// DumpConfig 将有效配置以 JSON 写到 w，便于诊断。
func DumpConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = fmt.Fprintf(w, "有效配置:\n%s\n", b)
	return err
}

// NormalizeInitArg 允许 -init-config 在未提供路径值时采用当前目录 "."。
//
//	-init-config          => -init-config .
//	-init-config=out
//	-init-config out
func NormalizeInitArg(args []string) []string {
	out := make([]string, 0, len(args)+1)
	for i, a := range args {
		out = append(out, a)
		if a == "--init-config" || a == "-init-config" {
			if i == len(args)-1 || strings.HasPrefix(args[i+1], "-") {
				out = append(out, ".")
			}
		}
	}
	return out
}
