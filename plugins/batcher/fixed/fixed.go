package fixed

import (
	"context"

	"github.com/pkg/errors"

	"partsbatch/pkg/contract"
)

// Batcher 按固定条数切分记录：除末批外每批恰好 MaxRecords 条。
type Batcher struct{}

// New 创建定长 Batcher。
func New() *Batcher { return &Batcher{} }

var _ contract.Batcher = (*Batcher)(nil)

// Make 校验 FileID 一致与 Index 连续（0..n-1）后按定长切分。
// 批内 Records 与入参共享底层数组。
func (b *Batcher) Make(ctx context.Context, records []contract.Record, limit contract.BatchLimit) ([]contract.Batch, error) {
	if limit.MaxRecords <= 0 {
		return nil, errors.Wrapf(contract.ErrInvariantViolation, "batcher: max records must be > 0, got %d", limit.MaxRecords)
	}
	n := len(records)
	if n == 0 {
		return nil, nil
	}
	fid := records[0].FileID
	if records[0].Index != 0 {
		return nil, errors.Wrapf(contract.ErrSeqInvalid, "batcher: first index must be 0, got %d", records[0].Index)
	}
	for i := 1; i < n; i++ {
		if records[i].FileID != fid {
			return nil, errors.Wrapf(contract.ErrSeqInvalid, "batcher: mixed FileID %q and %q", fid, records[i].FileID)
		}
		if records[i].Index != records[i-1].Index+1 {
			return nil, errors.Wrapf(contract.ErrSeqInvalid, "batcher: index %d follows %d", records[i].Index, records[i-1].Index)
		}
	}

	size := limit.MaxRecords
	batches := make([]contract.Batch, 0, (n+size-1)/size)
	var batchIdx int64
	for l := 0; l < n; l += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := l + size
		if r > n {
			r = n
		}
		batches = append(batches, contract.Batch{
			FileID:     fid,
			BatchIndex: batchIdx,
			Records:    records[l:r:r],
			From:       records[l].Index,
			To:         records[r-1].Index,
		})
		batchIdx++
	}
	return batches, nil
}
