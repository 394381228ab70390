package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
blueme: |
  You are Blueme, a friendly assistant.
terse: "Answer in one sentence."
empty: "   "
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system_prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"blueme", "empty", "terse"}, set.Names())

	prompt, err := set.Prompt("blueme")
	require.NoError(t, err)
	assert.Equal(t, "You are Blueme, a friendly assistant.\n", prompt)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	set, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, set.Names())
}

func TestSet_Prompt(t *testing.T) {
	set, err := Parse([]byte(sample))
	require.NoError(t, err)

	tests := []struct {
		name    string
		persona string
		wantErr error
	}{
		{"known", "terse", nil},
		{"unknown", "nobody", ErrUnknown},
		{"blank", "empty", ErrBlankPrompt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := set.Prompt(tt.persona)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSet_Require(t *testing.T) {
	set, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.NoError(t, set.Require("blueme"))

	for _, name := range []string{"", "nobody", "empty"} {
		err := set.Require(name)
		var cf *core.ConfigurationFailure
		require.ErrorAs(t, err, &cf, "persona %q", name)
		assert.Equal(t, core.ModuleID("persona"), cf.Module)
	}
}
