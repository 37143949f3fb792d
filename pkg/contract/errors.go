package contract

import "errors"

// 最小错误分类（用于上层策略判定与日志归类）。
var (
	// ErrUsage: 命令行参数个数或取值不合法。
	ErrUsage = errors.New("usage")
	// ErrInvalidInput: 输入无法解析为行/表。
	ErrInvalidInput = errors.New("invalid input")
	// ErrSeqInvalid: 记录序号不连续或批次序列违规。
	ErrSeqInvalid = errors.New("sequence invalid")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)
