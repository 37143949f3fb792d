package contract

import (
	"context"
	"io"
)

// Encoder: 将单个 Batch 序列化为输出文件内容（电子表格或 SQL 文本）。
// 约束：
//  1. 纯计算，不做文件 I/O；
//  2. 行顺序与 Batch 内记录顺序一致；
//  3. Ext 返回输出文件扩展名（含点）。
type Encoder interface {
	Encode(ctx context.Context, t Table, b Batch) (io.Reader, error)
	Ext() string
}
