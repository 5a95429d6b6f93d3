package usecase

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/satriahrh/cocoa-relay/domain"
)

// Formatter applies the persona's reply style. It only lowers case and
// deletes runes, so output is never longer (in runes) than input.
type Formatter struct {
	style domain.StyleFlags
}

func NewFormatter(style domain.StyleFlags) *Formatter {
	return &Formatter{style: style}
}

func (f *Formatter) Format(text string) string {
	if f.style.Lowercase {
		text = strings.ToLower(text)
	}
	if !f.style.AllowPunctuation {
		text = stripPunctuation(text)
	}
	return text
}

// stripPunctuation keeps word runes (letters, marks, decimal digits,
// connector punctuation such as '_') and whitespace. Everything else,
// emoji included, is dropped without a replacement space.
func stripPunctuation(text string) string {
	strip := runes.Remove(runes.Predicate(func(r rune) bool {
		return !isWordRune(r) && !unicode.IsSpace(r)
	}))
	out, _, err := transform.String(strip, text)
	if err != nil {
		return text
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) ||
		unicode.IsMark(r) ||
		unicode.IsDigit(r) ||
		unicode.Is(unicode.Pc, r)
}
