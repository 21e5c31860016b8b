// Package prompts loads the instruction specs sent to the model at each
// generation stage. Specs are embedded and may be overridden from a
// directory of YAML files with the same names.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed *.yaml
var embedded embed.FS

// Spec is one stage's instruction set.
type Spec struct {
	System string   `yaml:"system"`
	Rules  []string `yaml:"rules"`
	Footer string   `yaml:"footer"`
}

// RulesBlock renders Rules as a "Rules:" bullet list, or "" when empty.
func (s Spec) RulesBlock() string {
	if len(s.Rules) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Rules:\n")
	for _, r := range s.Rules {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(r))
		b.WriteString("\n")
	}
	return b.String()
}

type Set struct {
	Analyzer   Spec
	Content    Spec
	ContentRaw Spec
	Slide      Spec
}

// Load reads the spec set from dir, or from the embedded defaults when dir
// is empty. Files missing from dir fall back to the embedded copy.
func Load(dir string) (*Set, error) {
	var override fs.FS
	if dir != "" {
		override = os.DirFS(dir)
	}
	set := &Set{}
	for name, dst := range map[string]*Spec{
		"analyzer.yaml":    &set.Analyzer,
		"content.yaml":     &set.Content,
		"content_raw.yaml": &set.ContentRaw,
		"slide.yaml":       &set.Slide,
	} {
		spec, err := loadSpec(override, name)
		if err != nil {
			return nil, err
		}
		*dst = spec
	}
	return set, nil
}

// Default returns the embedded spec set.
func Default() *Set {
	set, err := Load("")
	if err != nil {
		panic(err)
	}
	return set
}

func loadSpec(override fs.FS, name string) (Spec, error) {
	var b []byte
	var err error
	if override != nil {
		b, err = fs.ReadFile(override, name)
	}
	if override == nil || errors.Is(err, fs.ErrNotExist) {
		b, err = fs.ReadFile(embedded, name)
	}
	if err != nil {
		return Spec{}, fmt.Errorf("read prompt %s: %w", name, err)
	}
	var spec Spec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return Spec{}, fmt.Errorf("parse prompt %s: %w", name, err)
	}
	if strings.TrimSpace(spec.System) == "" {
		return Spec{}, fmt.Errorf("prompt %s: system instruction is empty", name)
	}
	return spec, nil
}
