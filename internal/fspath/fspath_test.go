package fspath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_CleansAndSlashes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "/ws/src/a.ts", Normalize("/ws/src/./a.ts"))
	assert.Equal(t, "/ws/a.ts", Normalize("/ws/src/../a.ts"))
	assert.Equal(t, "/ws/a.ts", Normalize("/ws//a.ts"))
	assert.Empty(t, Normalize(""))
}

func TestNormalize_RelativePathsBecomeAbsolute(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	want := Normalize(filepath.Join(cwd, "x.ts"))
	assert.Equal(t, want, Normalize("x.ts"))
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()
	p := Normalize("/ws/src/a.ts")
	assert.Equal(t, p, Normalize(p))
}

func TestJoin(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "/ws/src/a.ts", Join("/ws", "src", "a.ts"))
	assert.Equal(t, "/ws/a.ts", Join("/ws/src", "..", "a.ts"))
}

func TestDir(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "/ws/src", Dir("/ws/src/a.ts"))
	assert.Equal(t, "/", Dir("/a.ts"))
}
