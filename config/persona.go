package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/satriahrh/cocoa-relay/domain"
)

//go:embed persona.yaml
var defaultPersona []byte

// LoadPersona reads a persona from path, or the built-in persona when path is
// empty. Unknown keys are rejected.
func LoadPersona(path string) (*domain.Persona, error) {
	raw := defaultPersona
	if path != "" {
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return nil, &domain.ConfigurationError{Key: "PERSONA_FILE", Reason: err.Error()}
		}
	}
	return ParsePersona(raw)
}

// ParsePersona decodes and validates a YAML persona document.
func ParsePersona(raw []byte) (*domain.Persona, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var p domain.Persona
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.ConfigurationError{Key: "persona", Reason: "document is empty"}
		}
		return nil, &domain.ConfigurationError{Key: "persona", Reason: fmt.Sprintf("invalid yaml: %v", err)}
	}
	return domain.NewPersona(p)
}
