//go:build windows

package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"partsbatch/pkg/contract"
)

// TestMapPathInvalidWindows 路径校验
func TestMapPathInvalidWindows(t *testing.T) {
	w, _ := New(&Options{OutputDir: t.TempDir()})
	for _, id := range []string{"C:\\abs", "..", "."} {
		_, err := w.mapPath(contract.ArtifactID(id))
		assert.ErrorIs(t, err, contract.ErrPathInvalid, "id %s", id)
	}
}
