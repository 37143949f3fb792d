package cli

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	cfgpkg "partsbatch/internal/config"
)

// DotEnvFile 为默认 .env 文件名。
const DotEnvFile = ".env"

// LoadDotEnv 读取简单的 .env 文件并注入进程环境；已存在的变量不覆盖，文件不存在时忽略。
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithStack(err)
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		key, val, ok := parseDotEnvLine(s.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return errors.WithStack(s.Err())
}

func parseDotEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	eq := strings.IndexByte(line, '=')
	if eq <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(line[:eq])
	val := strings.TrimSpace(line[eq+1:])
	if key == "" {
		return "", "", false
	}
	// 去除成对引号
	if len(val) >= 2 {
		q := val[0]
		if (q == '\'' || q == '"') && val[len(val)-1] == q {
			val = val[1 : len(val)-1]
			if q == '"' {
				val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\"`, `"`, `\\`, `\`).Replace(val)
			}
		}
	}
	return key, val, true
}

// WriteDotEnv 在 dir 下生成 .env 模板；文件已存在则跳过。
func WriteDotEnv(dir string) error {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	var b strings.Builder
	b.WriteString("# partsbatch .env 模板（由 -init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件 > 默认值\n")
	b.WriteString("# 空值表示未设置。\n\n")
	b.WriteString("# 配置文件路径（.toml 或 .json）\n")
	b.WriteString(cfgpkg.EnvPrefix + "CONFIG_FILE=\n\n")
	b.WriteString("# 日志\n")
	for _, k := range []string{"LOG_LEVEL", "LOG_DIR", "LOG_CONSOLE"} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# xlsxsplit\n")
	for _, k := range []string{"XLSX_OUTPUT_DIR", "XLSX_BATCH_SIZE"} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# sqlgen\n")
	for _, k := range []string{"SQL_OUTPUT_DIR", "SQL_BATCH_SIZE", "SQL_TABLE"} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	f, err := os.OpenFile(filepath.Join(dir, DotEnvFile), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return errors.WithStack(err)
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return errors.WithStack(err)
}
