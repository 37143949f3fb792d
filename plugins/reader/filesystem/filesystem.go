package filesystem

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"partsbatch/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size" toml:"buf_size"`
	// ExcludeDirNames: 扫描目录时跳过这些目录名（基名，大小写不敏感）。
	ExcludeDirNames []string `json:"exclude_dir_names" toml:"exclude_dir_names"`
	// AllowExts: 扫描目录时仅接受这些扩展名（含点，大小写不敏感）。
	// 为空表示不限制。显式给出的文件 root 不受此限制。
	AllowExts []string `json:"allow_exts" toml:"allow_exts"`
}

// FileSystem 实现基于文件系统的 Reader。
type FileSystem struct {
	bufSize    int
	excludeDir map[string]struct{}
	allow      map[string]struct{}
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	b := defaultBuf
	if opts != nil && opts.BufSize > 0 {
		b = opts.BufSize
	}
	ex := make(map[string]struct{})
	var allow map[string]struct{}
	if opts != nil {
		for _, name := range opts.ExcludeDirNames {
			if name != "" {
				ex[strings.ToLower(name)] = struct{}{}
			}
		}
		if len(opts.AllowExts) > 0 {
			allow = make(map[string]struct{}, len(opts.AllowExts))
			for _, e := range opts.AllowExts {
				if e == "" {
					continue
				}
				if !strings.HasPrefix(e, ".") {
					e = "." + e
				}
				allow[strings.ToLower(e)] = struct{}{}
			}
		}
	}
	return &FileSystem{bufSize: b, excludeDir: ex, allow: allow}
}

var _ contract.Reader = (*FileSystem)(nil)

// Iterate 遍历 roots，按稳定顺序对每个常规文件调用 yield。
// 目录按字典序递归（先子目录，后文件）。
func (r *FileSystem) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, source string, rc io.ReadCloser) error) error {
	if len(roots) == 0 {
		return errors.Wrap(contract.ErrUsage, "no input path")
	}
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			return errors.Wrap(contract.ErrUsage, "empty input path")
		}
		if err := r.iterateOne(ctx, root, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) iterateOne(ctx context.Context, root string, yield func(contract.FileID, string, io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Stat 跟随符号链接：指向目录的链接按目录处理
	info, err := os.Stat(root)
	if err != nil {
		return errors.WithStack(err)
	}
	if info.IsDir() {
		return r.walkDir(ctx, root, yield)
	}
	if !info.Mode().IsRegular() {
		return errors.Wrapf(contract.ErrInvalidInput, "%s is not a regular file", root)
	}
	return r.open(root, yield)
}

func (r *FileSystem) walkDir(ctx context.Context, dir string, yield func(contract.FileID, string, io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.WithStack(err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		if err := r.walkDir(ctx, filepath.Join(dir, e.Name()), yield); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !r.accept(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		// 符号链接仅接受指向常规文件者；设备、FIFO 等非常规文件跳过
		t, err := os.Stat(p)
		if err != nil {
			return errors.WithStack(err)
		}
		if !t.Mode().IsRegular() {
			continue
		}
		if err := r.open(p, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) accept(name string) bool {
	if r.allow == nil {
		return true
	}
	_, ok := r.allow[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (r *FileSystem) open(p string, yield func(contract.FileID, string, io.ReadCloser) error) error {
	f, err := os.Open(p)
	if err != nil {
		return errors.WithStack(err)
	}
	rc := newBOMStripper(f, r.bufSize)
	if err := yield(contract.NormalizeFileID(p), p, rc); err != nil {
		_ = rc.Close()
		return err
	}
	return nil
}

// bomStripper 去掉开头的 UTF-8/UTF-16 BOM；无 BOM 时字节原样透传。
type bomStripper struct {
	io.Reader
	c io.Closer
}

func newBOMStripper(c io.ReadCloser, bufSize int) *bomStripper {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	tr := transform.NewReader(bufio.NewReaderSize(c, bufSize), unicode.BOMOverride(transform.Nop))
	return &bomStripper{Reader: tr, c: c}
}

func (b *bomStripper) Close() error { return b.c.Close() }
