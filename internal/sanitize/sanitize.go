// Package sanitize makes arbitrary model text safe for an escape-sensitive
// markup dialect such as Telegram MarkdownV2.
package sanitize

import (
	"fmt"
	"strings"
)

// Table is the escape configuration for one markup surface. Every rune of
// Chars is prefixed with Escape; all other runes pass through.
type Table struct {
	Name   string
	Escape rune
	Chars  string

	// CollapseDoubleUnderscore rewrites every "__" left after escaping to
	// the literal `\_\_`. MarkdownV2 reads a bare "__" as underline.
	CollapseDoubleUnderscore bool
}

// Telegram is the default table: the escape set the bot has always sent to
// MarkdownV2, with the double-underscore post-pass.
var Telegram = Table{
	Name:                     "telegram",
	Escape:                   '\\',
	Chars:                    `\)[](>#+-={}.!`,
	CollapseDoubleUnderscore: true,
}

// TelegramStrict escapes every MarkdownV2 reserved character. Formatting
// produced by the model is shown literally.
var TelegramStrict = Table{
	Name:   "telegram_strict",
	Escape: '\\',
	Chars:  "_*[]()~`>#+-=|{}.!\\",
}

// Tables lists the built-in tables by name.
var Tables = map[string]Table{
	Telegram.Name:       Telegram,
	TelegramStrict.Name: TelegramStrict,
}

// Lookup returns the built-in table called name. An empty name selects
// Telegram.
func Lookup(name string) (Table, error) {
	if name == "" {
		return Telegram, nil
	}
	t, ok := Tables[name]
	if !ok {
		return Table{}, fmt.Errorf("sanitize: unknown table %q", name)
	}
	return t, nil
}

// Sanitize escapes text. It is pure but not idempotent: callers sanitize
// exactly once, when rendering.
func (t Table) Sanitize(text string) string {
	return t.disambiguate(t.replacer().Replace(text))
}

func (t Table) replacer() *strings.Replacer {
	esc := string(t.Escape)
	pairs := make([]string, 0, 2*len(t.Chars))
	seen := make(map[rune]bool, len(t.Chars))
	for _, r := range t.Chars {
		if seen[r] {
			continue
		}
		seen[r] = true
		pairs = append(pairs, string(r), esc+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// disambiguate is the post-pass applied after per-rune escaping.
func (t Table) disambiguate(text string) string {
	if !t.CollapseDoubleUnderscore {
		return text
	}
	esc := string(t.Escape)
	return strings.ReplaceAll(text, "__", esc+"_"+esc+"_")
}
