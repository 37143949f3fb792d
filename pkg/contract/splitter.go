package contract

import (
	"context"
	"io"
)

// Splitter: 将单文件字节流完整解析为 Table，并为记录分配 Index（0..n-1）。
// 约束：
// 1) 不跨文件合并；
// 2) Index 严格递增且稳定，保持源顺序；
// 3) 解析失败返回包装了 ErrInvalidInput 的错误；
// 4) 无内部并发、幂等。
type Splitter interface {
	Split(ctx context.Context, fileID FileID, r io.Reader) (Table, error)
}
