// Package stages holds the built-in function-calling steps of the
// CloudFormation workflow: generate (entry), improve and quality control.
package stages

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Yates-Labs/stepcall/internal/config"
)

const (
	Entry   = "entry"
	Improve = "improve"
	QC      = "qc"
)

var ErrUnknownStage = errors.New("unknown stage")

//go:embed stages.yaml
var stagesYAML []byte

// Stage is one function-calling step definition.
type Stage struct {
	Name              string            `yaml:"-"`
	LambdaKey         string            `yaml:"lambda_key"`
	SuppressPrefixing bool              `yaml:"suppress_prefixing"`
	FunctionCall      string            `yaml:"function_call"`
	Tools             []config.ToolSpec `yaml:"tools"`
	Prompt            string            `yaml:"prompt"`
}

type stageFile struct {
	Stages map[string]Stage `yaml:"stages"`
}

var loadStages = sync.OnceValues(func() (map[string]Stage, error) {
	return parse(stagesYAML)
})

func parse(data []byte) (map[string]Stage, error) {
	var f stageFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse stages: %w", err)
	}
	for name, s := range f.Stages {
		s.Name = name
		f.Stages[name] = s
	}
	return f.Stages, nil
}

// Lookup returns the built-in stage with the given name.
func Lookup(name string) (Stage, error) {
	all, err := loadStages()
	if err != nil {
		return Stage{}, err
	}
	s, ok := all[name]
	if !ok {
		return Stage{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownStage, name, Names())
	}
	return s, nil
}

// Names lists the built-in stages in sorted order.
func Names() []string {
	all, err := loadStages()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply returns a copy of base with the stage's prompt, tools, forced
// function and result keying. Model, credentials and retry settings come
// from base.
func (s Stage) Apply(base *config.FunctionCallConfig) *config.FunctionCallConfig {
	cfg := *base
	cfg.Prompt = s.Prompt
	cfg.Tools = s.Tools
	cfg.FunctionCall = s.FunctionCall
	cfg.LambdaKey = s.LambdaKey
	cfg.SuppressPrefixing = s.SuppressPrefixing
	return &cfg
}
