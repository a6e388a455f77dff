package fsm

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the declarative skeleton of a Definition: names, shape, and
// cadence. Actions and conditions are Go functions and cannot be expressed
// in yaml; attach them through the Builder after loading.
type Config struct {
	Name         string             `json:"name"         yaml:"name"`
	Group        string             `json:"group"        yaml:"group"`
	InitialState string             `json:"initialState" yaml:"initialState"`
	ProcessRate  int                `json:"processRate"  yaml:"processRate"`
	States       []StateConfig      `json:"states"       yaml:"states"`
	Transitions  []TransitionConfig `json:"transitions"  yaml:"transitions"`
}

// StateConfig declares one state by name.
type StateConfig struct {
	Name string `json:"name" yaml:"name"`
}

// TransitionConfig declares one transition. From may be "*" for an
// any-state transition.
type TransitionConfig struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to"   yaml:"to"`
}

// LoadConfig loads a Definition configuration from a yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes loads a Definition configuration from yaml bytes.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var config Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// Validate checks the configuration for the errors of §7: blank names,
// missing or unknown initial state, unknown transition endpoints. All
// problems are collected and returned joined, not just the first. An
// out-of-range process rate is not an error here; it is coerced with a
// warning when the Definition is built.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, ErrNameRequired)
	}

	if strings.TrimSpace(c.Group) == "" {
		errs = append(errs, ErrGroupRequired)
	}

	if len(c.States) == 0 {
		errs = append(errs, ErrNoStates)
	}

	names := make(map[string]bool, len(c.States))

	for _, state := range c.States {
		if strings.TrimSpace(state.Name) == "" {
			errs = append(errs, fmt.Errorf("state: %w", ErrNameRequired))

			continue
		}

		if names[state.Name] {
			errs = append(errs, WrapStateError(state.Name, ErrStateExists))
		}

		names[state.Name] = true
	}

	if strings.TrimSpace(c.InitialState) == "" {
		errs = append(errs, ErrInitialStateRequired)
	} else if !names[c.InitialState] {
		errs = append(errs, WrapStateError(c.InitialState, ErrInitialStateNotFound))
	}

	for _, t := range c.Transitions {
		if t.From != AnyState && !names[t.From] {
			errs = append(errs, WrapTransitionError(t.From, t.To, ErrTransitionSourceNotFound))
		}

		if !names[t.To] {
			errs = append(errs, WrapTransitionError(t.From, t.To, ErrTransitionTargetNotFound))
		}
	}

	return errors.Join(errs...)
}
