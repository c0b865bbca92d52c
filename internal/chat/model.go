package chat

import (
	"strings"
	"unicode"
)

// DefaultModel is used when the user leaves the model prompt blank
const DefaultModel = "llama3.2:latest"

// ResolveModel validates an Ollama model identifier, e.g. "qwen2.5-coder:latest". Empty input resolves to
// DefaultModel.
func ResolveModel(input string) (string, error) {
	if input == "" {
		return DefaultModel, nil
	}
	if strings.IndexFunc(input, unicode.IsSpace) >= 0 {
		return "", &ValidationError{Field: "model", Value: input, Reason: "model name cannot contain white space"}
	}
	if !strings.Contains(input, ":") {
		return "", &ValidationError{Field: "model", Value: input, Reason: "model name must have a tag, for example llama2:latest"}
	}
	return input, nil
}
