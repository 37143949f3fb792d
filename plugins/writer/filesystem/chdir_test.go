package filesystem

import (
	"context"
	"os"
	"testing"
)

// testChdir 切换工作目录并在测试结束时恢复（等价于 Go 1.24 的 t.Chdir）
func testChdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

// testContext 返回测试结束时取消的 context（等价于 Go 1.24 的 t.Context）
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
