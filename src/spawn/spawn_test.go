package spawn

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelperProcess(t *testing.T) {
	if os.Getenv("SPAWN_WANT_HELPER") != "1" {
		return
	}
	time.Sleep(100 * time.Millisecond)
	os.Exit(0)
}

func TestDetachedSpawn(t *testing.T) {
	pid, err := Detached{}.Spawn(context.Background(), Command{
		Path: os.Args[0],
		Args: []string{"-test.run=TestHelperProcess"},
		Env:  []string{"SPAWN_WANT_HELPER=1"},
	})
	require.NoError(t, err)
	assert.Greater(t, pid, 0)
}

func TestDetachedSpawnMissingExecutable(t *testing.T) {
	_, err := Detached{}.Spawn(context.Background(), Command{
		Path: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	assert.Error(t, err)
}

func TestDetachedSpawnEmptyPath(t *testing.T) {
	_, err := Detached{}.Spawn(context.Background(), Command{})
	assert.Error(t, err)
}

func TestDetachedSpawnCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Detached{}.Spawn(ctx, Command{Path: os.Args[0]})
	assert.ErrorIs(t, err, context.Canceled)
}
