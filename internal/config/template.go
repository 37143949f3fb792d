package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// TemplateFile 为 -init-config 生成的文件名。
const TemplateFile = "partsbatch.toml"

const templateHeader = `# partsbatch 配置模板（由 -init-config 生成）
# 优先级：CLI > ENV(PARTSBATCH_*) > 本文件 > 内置默认
# 删除任意键即回落到内置默认值。

`

// DefaultTemplateConfig 返回包含全部键的默认配置。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Logging.Console = boolPtr(false)
	cfg.Writer.Atomic = boolPtr(true)
	return cfg
}

// TemplateTOML 渲染默认配置模板。
func TemplateTOML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(DefaultTemplateConfig()); err != nil {
		return nil, errors.Wrap(err, "config: encode template")
	}
	return buf.Bytes(), nil
}

// WriteTemplate 在 dir 下生成模板（目录不存在则创建；文件已存在则跳过，不覆盖）。
// 返回目标路径与是否实际写入。
func WriteTemplate(dir string) (string, bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, errors.WithStack(err)
	}
	path := filepath.Join(dir, TemplateFile)
	b, err := TemplateTOML()
	if err != nil {
		return path, false, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return path, false, nil
		}
		return path, false, errors.WithStack(err)
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return path, false, errors.WithStack(err)
	}
	return path, true, nil
}
