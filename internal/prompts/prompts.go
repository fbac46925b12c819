// Package prompts renders the instruction text sent to the generation model.
package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultYAML []byte

type file struct {
	Enhance  string `yaml:"enhance"`
	Generate string `yaml:"generate"`
}

// Templates holds the parsed enhance and generate instructions.
type Templates struct {
	enhance  *template.Template
	generate *template.Template
}

// Default parses the embedded templates.
func Default() (*Templates, error) {
	return Parse(defaultYAML)
}

// Parse reads a YAML document with enhance and generate keys.
func Parse(data []byte) (*Templates, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	if f.Enhance == "" || f.Generate == "" {
		return nil, errors.New("prompts: enhance and generate are required")
	}
	enhance, err := template.New("enhance").Option("missingkey=error").Parse(f.Enhance)
	if err != nil {
		return nil, fmt.Errorf("parse enhance prompt: %w", err)
	}
	generate, err := template.New("generate").Option("missingkey=error").Parse(f.Generate)
	if err != nil {
		return nil, fmt.Errorf("parse generate prompt: %w", err)
	}
	return &Templates{enhance: enhance, generate: generate}, nil
}

// Enhance asks the model to turn a terse change request into a precise one.
func (t *Templates) Enhance(message string) (string, error) {
	return render(t.enhance, struct{ Message string }{message})
}

// Generate asks the model for the full updated document.
func (t *Templates) Generate(code, request string) (string, error) {
	return render(t.generate, struct{ Code, Request string }{code, request})
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
