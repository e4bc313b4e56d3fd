package refine

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptTemplate is the YAML shape of a custom prompt file.
type PromptTemplate struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	System      string `yaml:"system"`
	Template    string `yaml:"template"`
}

// TemplateData is what prompt templates can reference.
type TemplateData struct {
	Scope    string
	Label    string
	Subject  string
	Body     string
	Stats    string
	Files    string
	Headings string
}

const defaultSystemPrompt = "You write concise, accurate git commit messages for documentation and content repositories."

var builtinTemplates = map[string]string{
	"default": `Improve the following commit message. Keep every fact, drop nothing important, and invent nothing.

Scope: {{.Scope}}
{{- if .Label}}
Label: {{.Label}}
{{- end}}
Stats: {{.Stats}}

Current message:
{{.Subject}}

{{.Body}}

Reply with a subject line of at most 72 characters in the imperative mood, then one blank line, then a short body.
Do not wrap the reply in code fences.`,

	"detailed": `You are reviewing an automated commit for a content repository.

Scope: {{.Scope}}
{{- if .Label}}
Label: {{.Label}}
{{- end}}
Stats: {{.Stats}}

Changed files:
{{.Files}}
{{- if .Headings}}

Heading changes:
{{.Headings}}
{{- end}}

Draft message:
{{.Subject}}

{{.Body}}

Rewrite the draft so a reader understands what changed and why it matters:
1. Subject: imperative mood, at most 72 characters, no trailing period.
2. One blank line.
3. Body: a few short lines or bullets naming the sections or documents touched.
Reply with the message only.`,
}

// GetPromptTemplate returns a builtin template by name, or loads a YAML (or
// plain text) template file from the given path.
func GetPromptTemplate(name string) (PromptTemplate, error) {
	if name == "" {
		name = "default"
	}
	if tpl, ok := builtinTemplates[name]; ok {
		return PromptTemplate{Name: name, System: defaultSystemPrompt, Template: tpl}, nil
	}

	content, err := os.ReadFile(name)
	if err != nil {
		return PromptTemplate{}, fmt.Errorf("could not find prompt template %s: %w", name, err)
	}

	var tpl PromptTemplate
	if err := yaml.Unmarshal(content, &tpl); err != nil || tpl.Template == "" {
		return PromptTemplate{Name: name, System: defaultSystemPrompt, Template: string(content)}, nil
	}
	if tpl.System == "" {
		tpl.System = defaultSystemPrompt
	}
	return tpl, nil
}

// RenderTemplate executes templateContent against data.
func RenderTemplate(templateContent string, data TemplateData) (string, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(templateContent)
	if err != nil {
		return "", fmt.Errorf("template parsing error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template rendering error: %w", err)
	}
	return buf.String(), nil
}

// GetBuiltinTemplates lists the names of builtin templates.
func GetBuiltinTemplates() map[string]string {
	return builtinTemplates
}
