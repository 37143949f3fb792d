package contract

import "context"

// BatchLimit: 成批上限。
type BatchLimit struct {
	// MaxRecords: 每批最大记录数，必须为正数。
	MaxRecords int
}

// Batcher: 将同一 FileID 的有序 Record 切分为若干 Batch。
// 约束：
//  1. 仅在同一 FileID 内成批；
//  2. 不重排、不丢失、不重复；
//  3. 除末批外每批恰好 MaxRecords 条；
//  4. BatchIndex 自 0 单调递增，From/To 为闭区间。
type Batcher interface {
	Make(ctx context.Context, records []Record, limit BatchLimit) ([]Batch, error)
}
