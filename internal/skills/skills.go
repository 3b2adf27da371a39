// Package skills reads the on-disk skill tree and per-language data files.
//
// Layout consumed:
//
//	{skills}/{domain}/{skill}/config/{lang}.json   skill config
//	{data}/{lang}/global-resolvers/{name}.json     shared resolver definitions
//	{data}/{lang}/fallbacks.json                   keyword fallback table
//
// Skill configs declare the actions of a skill: their slots, their action
// loop (if any), skill-local resolvers, and skill-specific entity
// definitions fed to the NER gateway. The files are authored by skill
// developers; this package validates only what the core needs to dispatch.
package skills

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sennet-ai/sennet/internal/fallback"
	"github.com/sennet-ai/sennet/pkg/provider/classifier"
)

// ExpectedItem names what an action loop waits for on each turn.
type ExpectedItem struct {
	// Name is the entity or resolver name.
	Name string `json:"name"`

	// Type is "entity", "global_resolver", or "skill_resolver".
	Type string `json:"type"`
}

// Loop declares an action loop on an action.
type Loop struct {
	ExpectedItem ExpectedItem `json:"expected_item"`
}

// Slot is a slot declaration inside a skill config.
type Slot struct {
	Name           string   `json:"name"`
	ExpectedEntity string   `json:"expected_entity"`
	Questions      []string `json:"questions"`
	Suggestions    []string `json:"suggestions,omitempty"`
}

// Action is one action of a skill.
type Action struct {
	// Type is "dialog" or "logic".
	Type string `json:"type"`

	Slots []Slot `json:"slots,omitempty"`
	Loop  *Loop  `json:"loop,omitempty"`

	// NextAction chains a follow-up action of the same skill.
	NextAction string `json:"next_action,omitempty"`
}

// ResolverIntent maps a resolver intent leaf to its value.
type ResolverIntent struct {
	Value string `json:"value"`
}

// Resolver is a named set of intent→value mappings. Skill-local resolvers
// live in the skill config; global resolvers live under the data root.
type Resolver struct {
	Intents map[string]ResolverIntent `json:"intents"`
}

// EntityDef is a skill-specific entity definition.
type EntityDef struct {
	// Type is "enum", "regex", or "trim".
	Type string `json:"type"`

	// Options maps canonical values to accepted surface forms.
	Options map[string][]string `json:"options,omitempty"`
}

// Config is a skill's per-language configuration file.
type Config struct {
	Actions   map[string]Action    `json:"actions"`
	Resolvers map[string]Resolver  `json:"resolvers,omitempty"`
	Entities  map[string]EntityDef `json:"entities,omitempty"`
}

// SkillEntities converts the config's entity definitions to the classifier's
// extraction specs.
func (c *Config) SkillEntities() []classifier.EntitySpec {
	if len(c.Entities) == 0 {
		return nil
	}
	specs := make([]classifier.EntitySpec, 0, len(c.Entities))
	for name, def := range c.Entities {
		specs = append(specs, classifier.EntitySpec{
			Name:    name,
			Type:    def.Type,
			Options: def.Options,
		})
	}
	return specs
}

// ConfigPath returns the skill config path for one domain/skill/lang.
func ConfigPath(skillsRoot, domain, skill, lang string) string {
	return filepath.Join(skillsRoot, domain, skill, "config", lang+".json")
}

// LoadConfig reads and parses a skill config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("skills: read config %q: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("skills: parse config %q: %w", path, err)
	}
	return &cfg, nil
}

// LoadGlobalResolver reads a shared resolver definition from the data root.
func LoadGlobalResolver(dataRoot, lang, name string) (*Resolver, error) {
	path := filepath.Join(dataRoot, lang, "global-resolvers", name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("skills: read global resolver %q: %w", path, err)
	}
	var res Resolver
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("skills: parse global resolver %q: %w", path, err)
	}
	return &res, nil
}

// fallbacksFile is the on-disk shape of {data}/{lang}/fallbacks.json.
type fallbacksFile struct {
	Fallbacks []fallback.Fallback `json:"fallbacks"`
}

// LoadFallbacks reads the language's keyword fallback table. A missing file
// is not an error — it yields an empty table.
func LoadFallbacks(dataRoot, lang string) ([]fallback.Fallback, error) {
	path := filepath.Join(dataRoot, lang, "fallbacks.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("skills: read fallbacks %q: %w", path, err)
	}
	var f fallbacksFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("skills: parse fallbacks %q: %w", path, err)
	}
	return f.Fallbacks, nil
}
