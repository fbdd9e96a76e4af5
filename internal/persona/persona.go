// Package persona loads the assistant persona used as the system prompt.
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed default.md
var defaultPrompt string

// Default returns the embedded DogNerd persona.
func Default() string {
	return defaultPrompt
}

// Load reads the persona from path, or returns the embedded default when
// path is empty.
func Load(path string) (string, error) {
	if path == "" {
		return defaultPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading persona prompt: %w", err)
	}
	prompt := string(data)
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("persona prompt %s is empty", path)
	}
	return prompt, nil
}
