package contract

import (
	"context"
	"io"
)

// Reader: 输入源抽象（文件/目录）。
// 约束：
// 1) 按文件维度回调，顺序稳定；
// 2) FileID 稳定且去平台差异化；
// 3) 不做业务解析，仅提供字节流（允许剥离编码 BOM）；
// 4) 不在内部起并发；
// 5) yield 负责关闭传入的 ReadCloser。
type Reader interface {
	Iterate(ctx context.Context, roots []string, yield func(fileID FileID, source string, r io.ReadCloser) error) error
}
