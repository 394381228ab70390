package telegram

import "unicode/utf16"

// SplitReply breaks text into chunks of at most maxUnits UTF-16 code units,
// the unit Telegram measures message length in. It cuts after the last
// newline of a chunk when there is one in its second half, else after the
// last space there, else hard at the limit. A chunk never ends in an
// unpaired MarkdownV2 escape: the backslash moves to the next chunk with the
// character it escapes. maxUnits <= 0 disables splitting.
func SplitReply(text string, maxUnits int) []string {
	rest := []rune(text)
	if maxUnits <= 0 || utf16Len(rest) <= maxUnits {
		return []string{text}
	}

	var chunks []string
	for utf16Len(rest) > maxUnits {
		cut, skip := boundary(rest[:fit(rest, maxUnits)])
		if danglingEscape(rest[:cut]) && cut > 1 {
			cut, skip = cut-1, 0
		}
		chunks = append(chunks, string(rest[:cut]))
		rest = rest[cut+skip:]
	}
	if len(rest) > 0 {
		chunks = append(chunks, string(rest))
	}
	return chunks
}

// runeUnits is the UTF-16 length of r; invalid runes are sent as U+FFFD.
func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

func utf16Len(runes []rune) int {
	n := 0
	for _, r := range runes {
		n += runeUnits(r)
	}
	return n
}

// fit returns how many leading runes fit in maxUnits, at least one.
func fit(runes []rune, maxUnits int) int {
	units := 0
	for i, r := range runes {
		units += runeUnits(r)
		if units > maxUnits {
			return max(i, 1)
		}
	}
	return len(runes)
}

// boundary picks where to end a chunk within window. It returns the chunk
// length and how many separator runes to drop after it.
func boundary(window []rune) (cut, skip int) {
	half := len(window) / 2
	for _, sep := range []rune{'\n', ' '} {
		for i := len(window) - 1; i >= half && i > 0; i-- {
			if window[i] == sep {
				return i, 1
			}
		}
	}
	return len(window), 0
}

// danglingEscape reports whether chunk ends in an odd run of backslashes.
func danglingEscape(chunk []rune) bool {
	n := 0
	for i := len(chunk) - 1; i >= 0 && chunk[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}
