package usecase

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/cocoa-relay/domain"
)

func testPersona(t *testing.T, window int) *domain.Persona {
	t.Helper()
	p, err := domain.NewPersona(domain.Persona{
		Name:            "Cocoa",
		Tone:            "cheerful",
		ShortTermWindow: window,
		Referral:        "Call them {user}.",
		Acknowledgement: "ok",
		Style:           domain.StyleFlags{Lowercase: true},
		Examples: []domain.FewShotExample{
			{User: "ex-u1", Bot: "ex-b1"},
			{User: "ex-u2", Bot: "ex-b2"},
		},
	})
	require.NoError(t, err)
	return p
}

func TestBuildPrompt_Order(t *testing.T) {
	persona := testPersona(t, 3)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	history := []domain.Exchange{
		domain.NewExchange("h-u1", "h-b1"),
		domain.NewExchange("h-u2", "h-b2"),
	}

	got := BuildPrompt(persona, history, "new message", "budi", now)

	want := domain.PromptDocument{Turns: []domain.Turn{
		{Role: domain.UserRole, Text: persona.RenderSystemInstructions("budi", now)},
		{Role: domain.ModelRole, Text: "ok"},
		{Role: domain.UserRole, Text: "ex-u1"},
		{Role: domain.ModelRole, Text: "ex-b1"},
		{Role: domain.UserRole, Text: "ex-u2"},
		{Role: domain.ModelRole, Text: "ex-b2"},
		{Role: domain.UserRole, Text: "h-u1"},
		{Role: domain.ModelRole, Text: "h-b1"},
		{Role: domain.UserRole, Text: "h-u2"},
		{Role: domain.ModelRole, Text: "h-b2"},
		{Role: domain.UserRole, Text: "new message"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("prompt mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPrompt_EmptyHistory(t *testing.T) {
	persona := testPersona(t, 3)
	got := BuildPrompt(persona, nil, "hello", "budi", time.Now())

	require.Len(t, got.Turns, 2+4+1)
	require.Equal(t, domain.Turn{Role: domain.UserRole, Text: "hello"}, got.Last())
	require.Contains(t, got.Turns[0].Text, "Call them budi.")
}

func TestPromptAssembler_DoesNotChangeExchanges(t *testing.T) {
	persona := testPersona(t, 3)
	store := NewHistoryStore(persona)
	store.Append("c1", "u", "b")

	a := NewPromptAssembler(persona, store)
	a.now = func() time.Time { return time.Unix(0, 0) }

	doc := a.Build("c1", "next", "budi")
	require.Len(t, doc.Turns, 2+4+2+1)
	require.Equal(t, 1, store.Len("c1"))

	a.Build("fresh", "hi", "budi")
	require.Equal(t, 2, store.Channels())
	require.Equal(t, 0, store.Len("fresh"))
	require.Equal(t, 1, store.Len("c1"))
}
