package domain

import "context"

// CompletionProvider abstracts any text-generation backend. It is stateless:
// everything the model should know arrives in the prompt.
type CompletionProvider interface {
	// Generate returns the model's raw reply for the ordered turn list.
	// Every failure, including an empty reply, is reported as an error.
	Generate(ctx context.Context, prompt PromptDocument) (string, error)
}

type Role string

const (
	UserRole  Role = "user"
	ModelRole Role = "model"
)

type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Exchange is one completed round-trip. Model holds the unformatted reply.
type Exchange struct {
	User  Turn `json:"user"`
	Model Turn `json:"model"`
}

func NewExchange(userText, botText string) Exchange {
	return Exchange{
		User:  Turn{Role: UserRole, Text: userText},
		Model: Turn{Role: ModelRole, Text: botText},
	}
}

// PromptDocument is the ordered turn list sent to a CompletionProvider.
type PromptDocument struct {
	Turns []Turn `json:"turns"`
}

// Last returns the final turn, which is always the new user message.
func (d PromptDocument) Last() Turn {
	if len(d.Turns) == 0 {
		return Turn{}
	}
	return d.Turns[len(d.Turns)-1]
}
