// Package modelprofiles carries per-model generation defaults (token
// budgets and sampling temperature) loaded from embedded YAML files, so
// tuning a model does not require a rebuild of the orchestration code.
package modelprofiles

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Profile holds generation defaults for one model.
type Profile struct {
	DisplayName string  `yaml:"display_name" json:"display_name"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	// SelectorMaxTokens bounds the non-streaming analysis calls (persona
	// selection, sentiment), which only need a short structured answer.
	SelectorMaxTokens int `yaml:"selector_max_tokens" json:"selector_max_tokens"`
}

// providerProfiles is the shape of one embedded YAML file.
type providerProfiles struct {
	Provider string             `yaml:"provider"`
	Default  Profile            `yaml:"default"`
	Models   map[string]Profile `yaml:"models"`
}

// Registry resolves a model identifier to its generation profile.
type Registry struct {
	defaults Profile
	models   map[string]Profile
	mu       sync.RWMutex
}

// NewRegistry loads every embedded profile file.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		models: make(map[string]Profile),
		defaults: Profile{
			MaxTokens:         500,
			Temperature:       0.7,
			SelectorMaxTokens: 300,
		},
	}

	entries, err := configFiles.ReadDir("config")
	if err != nil {
		return nil, fmt.Errorf("read embedded profiles: %w", err)
	}
	for _, entry := range entries {
		if err := r.loadFile("config/" + entry.Name()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) loadFile(name string) error {
	data, err := configFiles.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	var pp providerProfiles
	if err := yaml.Unmarshal(data, &pp); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, profile := range pp.Models {
		r.models[id] = withFallback(profile, pp.Default)
	}
	return nil
}

// Lookup returns the profile for a model, falling back to built-in
// defaults for unknown models.
func (r *Registry) Lookup(model string) Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.models[model]; ok {
		return p
	}
	return r.defaults
}

func withFallback(p, def Profile) Profile {
	if p.MaxTokens == 0 {
		p.MaxTokens = def.MaxTokens
	}
	if p.Temperature == 0 {
		p.Temperature = def.Temperature
	}
	if p.SelectorMaxTokens == 0 {
		p.SelectorMaxTokens = def.SelectorMaxTokens
	}
	return p
}
