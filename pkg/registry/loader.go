package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"digital.vasic.automation/pkg/challenge"
)

// catalogFile is the on-disk structure for a declarative
// challenge catalog.
type catalogFile struct {
	Version    string       `yaml:"version"`
	Challenges []Definition `yaml:"challenges"`
}

// Definition describes a challenge declaratively so custom
// catalogs can be loaded without Go code. Steps shell out to
// local commands; built-in challenges are registered in code
// instead.
type Definition struct {
	Level         int       `yaml:"level"`
	Name          string    `yaml:"name"`
	Description   string    `yaml:"description"`
	Prerequisites []int     `yaml:"prerequisites"`
	Steps         []StepDef `yaml:"steps"`
}

// StepDef describes one declarative step. Exactly one of
// Command or Wait should be set.
type StepDef struct {
	// Label describes the step.
	Label string `yaml:"label"`

	// Command is a local command to run; its exit code
	// decides the step outcome.
	Command string `yaml:"command,omitempty"`

	// Args are passed to Command.
	Args []string `yaml:"args,omitempty"`

	// Wait pauses for the given duration and succeeds.
	Wait time.Duration `yaml:"wait,omitempty"`
}

// LoadCatalogFile reads a YAML catalog file and registers its
// challenges.
func LoadCatalogFile(r *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf(
			"failed to read catalog file %s: %w", path, err,
		)
	}
	return loadCatalogBytes(r, data, path)
}

// LoadCatalogDir loads all .yaml/.yml catalog files from a
// directory. It does not recurse into subdirectories.
func LoadCatalogDir(r *Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf(
			"failed to read directory %s: %w", dir, err,
		)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		if err := LoadCatalogFile(r, p); err != nil {
			return fmt.Errorf(
				"failed to load %s: %w", p, err,
			)
		}
	}
	return nil
}

func loadCatalogBytes(
	r *Registry,
	data []byte,
	source string,
) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf(
			"failed to parse catalog from %s: %w",
			source, err,
		)
	}

	for i := range file.Challenges {
		def := &file.Challenges[i]
		c, err := def.Build()
		if err != nil {
			return fmt.Errorf(
				"definition at index %d in %s: %w",
				i, source, err,
			)
		}
		if err := r.Register(c); err != nil {
			return fmt.Errorf(
				"definition %d from %s: %w",
				def.Level, source, err,
			)
		}
	}
	return nil
}

// Build constructs a Challenge from the definition.
func (d *Definition) Build() (*challenge.Challenge, error) {
	steps := make([]challenge.Step, 0, len(d.Steps))
	for i, sd := range d.Steps {
		step, err := sd.build()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}

	return challenge.New(
		d.Level, d.Name, d.Description, steps,
		challenge.WithPrerequisites(d.Prerequisites...),
	)
}

func (sd *StepDef) build() (challenge.Step, error) {
	switch {
	case sd.Command != "" && sd.Wait != 0:
		return challenge.Step{}, fmt.Errorf(
			"step %q sets both command and wait", sd.Label,
		)
	case sd.Command != "":
		return challenge.ScriptStep(
			sd.Label, sd.Command, sd.Args...,
		), nil
	case sd.Wait != 0:
		wait := sd.Wait
		return challenge.Step{
			Label: sd.Label,
			Run: func(ctx context.Context) error {
				select {
				case <-time.After(wait):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		}, nil
	default:
		return challenge.Step{}, fmt.Errorf(
			"step %q needs a command or a wait", sd.Label,
		)
	}
}
