package usecase

import (
	"time"

	"github.com/satriahrh/cocoa-relay/domain"
)

// PromptAssembler composes the ordered prompt for a conversation. It never
// changes stored exchanges; Build registers unseen conversations.
type PromptAssembler struct {
	persona *domain.Persona
	history *HistoryStore
	now     func() time.Time
}

func NewPromptAssembler(persona *domain.Persona, history *HistoryStore) *PromptAssembler {
	return &PromptAssembler{persona: persona, history: history, now: time.Now}
}

func (a *PromptAssembler) Build(key, userText, username string) domain.PromptDocument {
	return BuildPrompt(a.persona, a.history.Get(key), userText, username, a.now())
}

// BuildPrompt lays out, in order: the instruction turn and its model
// acknowledgement, the few-shot pairs, the channel history, the new message.
func BuildPrompt(
	persona *domain.Persona,
	history []domain.Exchange,
	userText string,
	username string,
	now time.Time,
) domain.PromptDocument {
	turns := make([]domain.Turn, 0, 2+2*len(persona.Examples)+2*len(history)+1)

	turns = append(turns,
		domain.Turn{Role: domain.UserRole, Text: persona.RenderSystemInstructions(username, now)},
		domain.Turn{Role: domain.ModelRole, Text: persona.Acknowledgement},
	)
	for _, ex := range persona.Examples {
		turns = append(turns,
			domain.Turn{Role: domain.UserRole, Text: ex.User},
			domain.Turn{Role: domain.ModelRole, Text: ex.Bot},
		)
	}
	for _, ex := range history {
		turns = append(turns, ex.User, ex.Model)
	}
	turns = append(turns, domain.Turn{Role: domain.UserRole, Text: userText})

	return domain.PromptDocument{Turns: turns}
}
