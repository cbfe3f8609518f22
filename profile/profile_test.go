package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fragsplit/common"
	"fragsplit/report"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), common.ProfileFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeProfile(t, `fragsplit-version = "0.3.0"

[split]
fragment-count = 6
min-fragment-size = 2048
log-fragment-map = true
dependency-graph = "graphs/deps.yaml"
output = "dist"

[[split.initial-sequence]]
ref = "@Main::main()"

[[split.initial-sequence]]
ref = "editor"
`)

	prof, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, path, prof.Path)
	assert.Equal(t, 6, prof.ExpectedFragmentCount)
	assert.Equal(t, 2048, prof.MinFragmentSize)
	assert.True(t, prof.LogFragmentMap)
	assert.Equal(t, filepath.Join(dir, "graphs", "deps.yaml"), prof.DependencyGraphPath)
	assert.Equal(t, filepath.Join(dir, "dist"), prof.OutputPath)

	require.Len(t, prof.InitialSequence, 2)
	assert.Equal(t, "@Main::main()", prof.InitialSequence[0].Ref)
	assert.Equal(t, path, prof.InitialSequence[0].Path)
	assert.Equal(t, 11, prof.InitialSequence[0].Line)
	assert.Equal(t, "editor", prof.InitialSequence[1].Ref)
	assert.Equal(t, 14, prof.InitialSequence[1].Line)
}

func TestLoadMinimal(t *testing.T) {
	path := writeProfile(t, "[split]\noutput = \"/tmp/out\"\n")

	prof, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0, prof.ExpectedFragmentCount)
	assert.Equal(t, 0, prof.MinFragmentSize)
	assert.Empty(t, prof.InitialSequence)
	assert.Empty(t, prof.DependencyGraphPath)
	assert.Equal(t, "/tmp/out", prof.OutputPath)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
		line     int
	}{
		{"missing split table", "fragsplit-version = \"0.3.0\"\n", "missing `[split]` table", 0},
		{"negative fragment count", "[split]\noutput = \"out\"\nfragment-count = -1\n", "fragment count must not be negative", 3},
		{"negative min size", "[split]\noutput = \"out\"\nmin-fragment-size = -5\n", "minimum fragment size must not be negative", 3},
		{"missing output", "[split]\nfragment-count = 3\n", "missing output path", 0},
		{"entry without ref", "[split]\noutput = \"out\"\n\n[[split.initial-sequence]]\n", "entry 1 has no `ref`", 0},
		{"malformed", "[split\n", "", 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := writeProfile(t, test.content)

			_, err := Load(path)
			require.Error(t, err)

			cerr, ok := err.(*report.ConfigError)
			require.True(t, ok)
			assert.Equal(t, path, cerr.Path)
			assert.Contains(t, cerr.Message, test.expected)

			if test.line > 0 {
				assert.Equal(t, test.line, cerr.Line)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), common.ProfileFileName))
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir))

	prof, err := Load(filepath.Join(dir, common.ProfileFileName))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, Default().OutputPath), prof.OutputPath)
	assert.Empty(t, prof.InitialSequence)

	assert.EqualError(t, Init(dir), "split profile already exists")
}
