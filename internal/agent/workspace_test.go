package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/EternisAI/orca/internal/protocol"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspace_Lifecycle(t *testing.T) {
	root := t.TempDir()

	a, err := NewWorkspace(root)
	require.NoError(t, err)
	b, err := NewWorkspace(root)
	require.NoError(t, err)
	assert.NotEqual(t, a.Dir, b.Dir)

	_, err = uuid.Parse(filepath.Base(a.Dir))
	assert.NoError(t, err)

	written := a.Materialize([]protocol.File{
		{Name: "nested/dir/file.txt", Content: protocol.Bytes("data")},
		{Name: "/etc/absolute", Content: protocol.Bytes("no")},
		{Name: "../../escape", Content: protocol.Bytes("no")},
	})
	assert.Equal(t, 1, written)

	data, err := os.ReadFile(filepath.Join(a.Dir, "nested", "dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	a.Remove()
	b.Remove()
	assert.NoDirExists(t, a.Dir)
	assert.NoDirExists(t, b.Dir)
}

func TestStateFile(t *testing.T) {
	state := NewStateFile(filepath.Join(t.TempDir(), "state", "client.uuid"))

	id, err := state.Load()
	require.NoError(t, err)
	assert.Equal(t, protocol.PlaceholderUnregistered, id)

	require.NoError(t, state.Save("1b4e28ba-2fa1-11d2-883f-0016d3cca427"))
	id, err = state.Load()
	require.NoError(t, err)
	assert.Equal(t, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", id)

	require.NoError(t, state.Clear())
	require.NoError(t, state.Clear())
	id, err = state.Load()
	require.NoError(t, err)
	assert.Equal(t, protocol.PlaceholderUnregistered, id)
}
