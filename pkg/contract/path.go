package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}

// Stem 返回 FileID 的基名（去掉扩展名），例如 "csv/parts.csv" → "parts"。
func (id FileID) Stem() string {
	base := path.Base(string(id))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Ext 返回小写扩展名（含点）。
func (id FileID) Ext() string {
	return strings.ToLower(path.Ext(string(id)))
}
