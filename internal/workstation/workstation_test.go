package workstation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"A1B2C3D4-E5F6-7890-ABCD-EF1234567890": "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
		"a1b2c3d4e5f67890abcdef1234567890":     "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
		"a1b2c3d4e5f67890abcd ef1234567890":    "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalize(in), in)
	}
}

func TestNormalizeHashesFreeForm(t *testing.T) {
	a := normalize("forensics-lab-01\x00analyst")
	b := normalize("forensics-lab-01\x00analyst")
	c := normalize("forensics-lab-02\x00analyst")

	assert.Len(t, a, 36)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGenerateAndStore(t *testing.T) {
	dir := t.TempDir()
	saved := idPath
	idPath = func() (string, error) { return filepath.Join(dir, "workstation_id"), nil }
	defer func() { idPath = saved }()

	assert.Empty(t, storedID().ID)

	info, err := generateAndStore("lab-host")
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, info.Source)

	data, err := os.ReadFile(filepath.Join(dir, "workstation_id"))
	require.NoError(t, err)
	assert.Equal(t, info.ID+"\n", string(data))

	again := storedID()
	assert.Equal(t, info.ID, again.ID)
	assert.Equal(t, info.Path, again.Path)
}

func TestGetIsStable(t *testing.T) {
	t.Setenv("CDRINTEL_HOME", t.TempDir())

	first, err := Get()
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, first.ID, ID())
}
