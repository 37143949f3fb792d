package contract

import (
	"context"
	"io"
)

// ArtifactID: 输出工件标识（相对 Writer 根目录的文件名）。
type ArtifactID string

// Writer: 将编码结果持久化到目标介质。
// 约束：
//  1. 同一 ArtifactID 单写者，已存在则整体替换（不追加）；
//  2. 写完即关闭，之后不再打开；
//  3. ctx 取消需尽快返回；
//  4. 错误直接上抛（不做重试/回滚）；
//  5. 成功时返回最终落盘路径。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) (string, error)
}
