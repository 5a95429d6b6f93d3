package usecase

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/satriahrh/cocoa-relay/domain"
)

var formatterInputs = []string{
	"",
	"Hey!! How ARE you??",
	"snake_case stays, dots... go.",
	"Çà va? Ünïcödé ÀÉÎ",
	"emoji 😏✨ and symbols $%^&*()[]{}",
	"tabs\tand\nnewlines  kept",
	"مرحبا! كيف حالك؟",
	"日本語、テスト。",
	"İstanbul ΣΊΣΥΦΟΣ",
	"12,345.67 & 89%",
}

func TestFormatter_LowercaseAndStrip(t *testing.T) {
	f := NewFormatter(domain.StyleFlags{Lowercase: true, AllowPunctuation: false})
	assert.Equal(t, "hey how are you", f.Format("Hey!! How ARE you??"))
}

func TestFormatter_Cases(t *testing.T) {
	cases := []struct {
		name  string
		style domain.StyleFlags
		in    string
		want  string
	}{
		{name: "untouched", style: domain.StyleFlags{AllowPunctuation: true}, in: "Hey!! You?", want: "Hey!! You?"},
		{name: "lowercase only", style: domain.StyleFlags{Lowercase: true, AllowPunctuation: true}, in: "Hey!! You?", want: "hey!! you?"},
		{name: "strip only", style: domain.StyleFlags{}, in: "Hey!! You?", want: "Hey You"},
		{name: "words concatenate", style: domain.StyleFlags{}, in: "well...ok", want: "wellok"},
		{name: "underscore is a word rune", style: domain.StyleFlags{}, in: "snake_case!", want: "snake_case"},
		{name: "accents survive", style: domain.StyleFlags{Lowercase: true}, in: "Çà va?", want: "çà va"},
		{name: "emoji dropped", style: domain.StyleFlags{}, in: "lol 😏", want: "lol "},
		{name: "whitespace kept", style: domain.StyleFlags{}, in: "a,\tb.\nc", want: "a\tb\nc"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NewFormatter(tc.style).Format(tc.in))
		})
	}
}

func TestFormatter_Idempotent(t *testing.T) {
	f := NewFormatter(domain.StyleFlags{Lowercase: true, AllowPunctuation: false})
	for _, in := range formatterInputs {
		once := f.Format(in)
		assert.Equal(t, once, f.Format(once), "input %q", in)
	}
}

func TestFormatter_NeverGrows(t *testing.T) {
	styles := []domain.StyleFlags{
		{},
		{Lowercase: true},
		{AllowPunctuation: true},
		{Lowercase: true, AllowPunctuation: true},
	}
	for _, style := range styles {
		f := NewFormatter(style)
		for _, in := range formatterInputs {
			out := f.Format(in)
			assert.LessOrEqual(t, utf8.RuneCountInString(out), utf8.RuneCountInString(in), "style %+v input %q", style, in)
		}
	}
}
