package cli

import (
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
