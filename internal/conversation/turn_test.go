package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnValidate(t *testing.T) {
	valid := Turn{Key: Key{ChatID: 7, Persona: "blueme"}, Role: RoleUser, Provider: "openai"}

	tests := []struct {
		name    string
		mutate  func(*Turn)
		wantErr error
	}{
		{name: "valid", mutate: func(*Turn) {}},
		{name: "system role", mutate: func(t *Turn) { t.Role = "system" }, wantErr: ErrInvalidRole},
		{name: "empty role", mutate: func(t *Turn) { t.Role = "" }, wantErr: ErrInvalidRole},
		{name: "no chat", mutate: func(t *Turn) { t.Key.ChatID = 0 }, wantErr: ErrMissingChat},
		{name: "no persona", mutate: func(t *Turn) { t.Key.Persona = "" }, wantErr: ErrMissingAuthor},
		{name: "no provider", mutate: func(t *Turn) { t.Provider = "" }, wantErr: ErrMissingAuthor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn := valid
			tt.mutate(&turn)
			err := turn.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSplit(t *testing.T) {
	_, _, ok := Split(nil)
	assert.False(t, ok)

	window := []Turn{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	history, last, ok := Split(window)
	require.True(t, ok)
	assert.Len(t, history, 2)
	assert.Equal(t, "c", last.Content)

	history, last, ok = Split(window[:1])
	require.True(t, ok)
	assert.Empty(t, history)
	assert.Equal(t, "a", last.Content)
}

func TestKeyStrings(t *testing.T) {
	p := Partition{Key: Key{ChatID: -100123, Persona: "blueme"}, Provider: "gemini"}
	assert.Equal(t, "-100123/blueme", p.Key.String())
	assert.Equal(t, "-100123/blueme/gemini", p.String())
}
