package domain

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// UserPlaceholder is replaced by the speaker's display name in Goals and Referral.
const UserPlaceholder = "{user}"

const defaultAcknowledgement = "Understood. I will stay in character."

// Persona is the bot's identity. Build it with NewPersona; it is read-only
// afterwards and shared by every channel.
type Persona struct {
	Name        string   `yaml:"name"`
	Age         int      `yaml:"age"`
	Birthday    string   `yaml:"birthday"`
	Tone        string   `yaml:"tone"`
	Personality string   `yaml:"personality"`
	Likes       string   `yaml:"likes"`
	Dislikes    string   `yaml:"dislikes"`
	Languages   []string `yaml:"languages"`
	Timezone    string   `yaml:"timezone"`

	Behavior BehaviorFlags `yaml:"behavior"`
	Style    StyleFlags    `yaml:"style"`

	// ShortTermWindow counts exchanges, not turns.
	ShortTermWindow int `yaml:"short_term_window"`

	Goals           string           `yaml:"goals"`
	Referral        string           `yaml:"referral"`
	Acknowledgement string           `yaml:"acknowledgement"`
	Examples        []FewShotExample `yaml:"examples"`

	location *time.Location
}

type BehaviorFlags struct {
	AllowRoleplayActions bool `yaml:"allow_roleplay_actions"`
	AllowSelfReference   bool `yaml:"allow_self_reference"`
	AllowPronouns        bool `yaml:"allow_pronouns"`
	UseLocalTime         bool `yaml:"use_local_time"`
}

// StyleFlags drive the response formatter. AllowPunctuation=false means
// punctuation is stripped from every reply.
type StyleFlags struct {
	Lowercase        bool `yaml:"lowercase"`
	AllowPunctuation bool `yaml:"allow_punctuation"`
}

type FewShotExample struct {
	User string `yaml:"user"`
	Bot  string `yaml:"bot"`
}

// NewPersona validates p and returns an immutable copy.
func NewPersona(p Persona) (*Persona, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, &ConfigurationError{Key: "persona.name", Reason: "must not be empty"}
	}
	if p.ShortTermWindow <= 0 {
		return nil, &ConfigurationError{
			Key:    "persona.short_term_window",
			Reason: fmt.Sprintf("must be positive, got %d", p.ShortTermWindow),
		}
	}
	for i, ex := range p.Examples {
		if strings.TrimSpace(ex.User) == "" {
			return nil, &ConfigurationError{Key: fmt.Sprintf("persona.examples[%d].user", i), Reason: "missing"}
		}
		if strings.TrimSpace(ex.Bot) == "" {
			return nil, &ConfigurationError{Key: fmt.Sprintf("persona.examples[%d].bot", i), Reason: "missing reply for " + p.Name}
		}
	}

	out := p
	out.Languages = append([]string(nil), p.Languages...)
	out.Examples = append([]FewShotExample(nil), p.Examples...)
	if out.Acknowledgement == "" {
		out.Acknowledgement = defaultAcknowledgement
	}

	out.location = time.UTC
	if p.Timezone != "" {
		loc, err := time.LoadLocation(p.Timezone)
		if err != nil {
			return nil, &ConfigurationError{Key: "persona.timezone", Reason: err.Error()}
		}
		out.location = loc
	} else if p.Behavior.UseLocalTime {
		return nil, &ConfigurationError{Key: "persona.timezone", Reason: "required when use_local_time is set"}
	}
	return &out, nil
}

// Location is the persona's timezone, UTC when none is configured.
func (p *Persona) Location() *time.Location {
	if p.location == nil {
		return time.UTC
	}
	return p.location
}

// PrimaryLanguage is the first allowed locale tag, used for voice.
func (p *Persona) PrimaryLanguage() string {
	if len(p.Languages) == 0 {
		return "id-ID"
	}
	return p.Languages[0]
}

// RenderSystemInstructions builds the instruction preamble for one speaker.
func (p *Persona) RenderSystemInstructions(username string, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s.", p.Name)
	if p.Age > 0 {
		fmt.Fprintf(&b, " You are %d years old.", p.Age)
	}
	if p.Birthday != "" {
		fmt.Fprintf(&b, " Your birthday is %s.", p.Birthday)
	}
	b.WriteString("\n")

	writeField(&b, "Tone", p.Tone)
	writeField(&b, "Personality", p.Personality)
	writeField(&b, "Likes", p.Likes)
	writeField(&b, "Dislikes", p.Dislikes)
	if len(p.Languages) > 0 {
		writeField(&b, "Only reply in these languages", strings.Join(p.Languages, ", "))
	}

	b.WriteString("\nRules:\n")
	if !p.Behavior.AllowRoleplayActions {
		b.WriteString("- Never write roleplay actions such as *smiles* or *waves*.\n")
	}
	if !p.Behavior.AllowSelfReference {
		b.WriteString("- Never mention that you are an AI, a bot or a language model.\n")
	}
	if !p.Behavior.AllowPronouns {
		b.WriteString("- Do not describe yourself with pronouns; just talk.\n")
	}
	if p.Style.Lowercase {
		b.WriteString("- Write everything in lowercase.\n")
	}
	if !p.Style.AllowPunctuation {
		b.WriteString("- Do not use punctuation or emoji.\n")
	}
	fmt.Fprintf(&b, "- You only remember the last %d exchanges of this conversation.\n", p.ShortTermWindow)

	if p.Behavior.UseLocalTime {
		local := now.In(p.Location())
		fmt.Fprintf(&b, "\nThe current local time is %s (%s).\n", local.Format("Monday, 2 January 2006 15:04"), p.Location())
	}

	if p.Goals != "" {
		b.WriteString("\nConversational goals:\n")
		b.WriteString(fillUser(p.Goals, username))
		b.WriteString("\n")
	}
	if p.Referral != "" {
		b.WriteString("\n")
		b.WriteString(fillUser(p.Referral, username))
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func fillUser(template, username string) string {
	return strings.ReplaceAll(template, UserPlaceholder, username)
}
