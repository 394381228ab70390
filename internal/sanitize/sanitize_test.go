package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegram_Sanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello there", "hello there"},
		{"parens and bang", "Hello (world)!", `Hello \(world\)\!`},
		{"backslash", `a\b`, `a\\b`},
		{"every char", `\)[](>#+-={}.!`, `\\\)\[\]\(\>\#\+\-\=\{\}\.\!`},
		{"untouched markup", "*bold* _it_ `code` ~s~ |x|", "*bold* _it_ `code` ~s~ |x|"},
		{"double underscore", "__init__", `\_\_init\_\_`},
		{"triple underscore", "a___b", `a\_\__b`},
		{"unicode", "héllo 👋 (ok)", `héllo 👋 \(ok\)`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Telegram.Sanitize(tt.in))
		})
	}
}

func TestTelegramStrict_Sanitize(t *testing.T) {
	assert.Equal(t, `Hello \(world\)\!`, TelegramStrict.Sanitize("Hello (world)!"))
	assert.Equal(t, `\_\_init\_\_`, TelegramStrict.Sanitize("__init__"))
	assert.Equal(t, "\\*a\\* \\`b\\` \\|c\\|", TelegramStrict.Sanitize("*a* `b` |c|"))
}

func TestSanitize_EveryEscapedCharIsPrefixed(t *testing.T) {
	for _, table := range []Table{Telegram, TelegramStrict} {
		t.Run(table.Name, func(t *testing.T) {
			for _, r := range table.Chars {
				out := table.Sanitize("x" + string(r) + "y")
				assert.Equal(t, "x"+string(table.Escape)+string(r)+"y", out, "rune %q", r)
			}
		})
	}
}

func TestSanitize_Pure(t *testing.T) {
	in := strings.Repeat("a(b)_c__d!", 50)
	assert.Equal(t, Telegram.Sanitize(in), Telegram.Sanitize(in))
}

func TestDisambiguate_IsSeparatePass(t *testing.T) {
	assert.Equal(t, "a__b", TelegramStrict.disambiguate("a__b"))
	assert.Equal(t, `a\_\_b`, Telegram.disambiguate("a__b"))

	custom := Table{Escape: '%', Chars: "!", CollapseDoubleUnderscore: true}
	assert.Equal(t, "%!%_%_", custom.Sanitize("!__"))
}

func TestLookup(t *testing.T) {
	table, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "telegram", table.Name)

	table, err = Lookup("telegram_strict")
	require.NoError(t, err)
	assert.False(t, table.CollapseDoubleUnderscore)

	_, err = Lookup("html")
	assert.Error(t, err)
}
