package byext

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"partsbatch/pkg/contract"
)

// Splitter 按 FileID 扩展名分派到具体 Splitter。
type Splitter struct {
	byExt    map[string]contract.Splitter
	fallback contract.Splitter
}

// New 以扩展名（含点，大小写不敏感）到 Splitter 的映射创建分派器。
// fallback 处理未注册的扩展名；为 nil 时未注册扩展名报错。
func New(m map[string]contract.Splitter, fallback contract.Splitter) *Splitter {
	byExt := make(map[string]contract.Splitter, len(m))
	for ext, s := range m {
		if s == nil || ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		byExt[strings.ToLower(ext)] = s
	}
	return &Splitter{byExt: byExt, fallback: fallback}
}

var _ contract.Splitter = (*Splitter)(nil)

// Exts 返回已注册扩展名（有序）。
func (s *Splitter) Exts() []string {
	out := make([]string, 0, len(s.byExt))
	for ext := range s.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Split 按扩展名分派；无匹配且无 fallback 时返回 ErrInvalidInput。
func (s *Splitter) Split(ctx context.Context, fileID contract.FileID, r io.Reader) (contract.Table, error) {
	ext := fileID.Ext()
	sp, ok := s.byExt[ext]
	if !ok && s.fallback != nil {
		sp, ok = s.fallback, true
	}
	if !ok {
		return contract.Table{}, errors.Wrapf(contract.ErrInvalidInput,
			"%s: unsupported extension %q (want one of %s)", fileID, ext, strings.Join(s.Exts(), ", "))
	}
	return sp.Split(ctx, fileID, r)
}
