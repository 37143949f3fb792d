package contract

import "strconv"

// NormalizeHeader 规范化原始表头，列名其余部分（含首尾空白）原样保留：
//   - 空列名改为 "Unnamed: <i>"（i 为 0 基列号）；
//   - 重名列依次追加 ".1"、".2"…，跳过已被占用的名字。
func NormalizeHeader(raw []string) Header {
	out := make(Header, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, name := range raw {
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if _, dup := seen[name]; dup {
			base := name
			for n := 1; ; n++ {
				cand := base + "." + strconv.Itoa(n)
				if _, taken := seen[cand]; !taken {
					name = cand
					break
				}
			}
		}
		seen[name] = struct{}{}
		out[i] = name
	}
	return out
}

// Align 将一行原始字段对齐到 width 列：短行以缺失值补齐。
// 超出 width 的部分由调用方判定（此处截断不做）。
func Align(fields []string, width int) []Value {
	vals := make([]Value, width)
	for i := 0; i < width && i < len(fields); i++ {
		vals[i] = Str(fields[i])
	}
	return vals
}
