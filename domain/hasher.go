package domain

import "encoding/json"

// Hasher is the core port for any hashing strategy.
type Hasher interface {
	Hash(data []byte) string
}

// Fingerprint identifies a prompt in logs without printing all of it.
func Fingerprint(h Hasher, prompt PromptDocument) string {
	b, err := json.Marshal(prompt)
	if err != nil {
		return ""
	}
	sum := h.Hash(b)
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
