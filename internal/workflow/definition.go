package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

// Definition is a workflow as authored in YAML.
type Definition struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description,omitempty"`
	Tags        []string             `yaml:"tags,omitempty"`
	Parameters  map[string]any       `yaml:"parameters,omitempty"`
	Tasks       []model.TaskTemplate `yaml:"tasks"`
}

// ParseDefinitionYAML decodes a single workflow definition. Unknown fields
// are rejected.
func ParseDefinitionYAML(data []byte) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return Definition{}, fmt.Errorf("workflow: decode definition: empty document")
		}
		return Definition{}, fmt.Errorf("workflow: decode definition: %w", err)
	}
	return def.Normalized(), nil
}

// LoadDefinitionFile reads and validates the definition at path.
func LoadDefinitionFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	def, err := ParseDefinitionYAML(data)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// LoadDefinitionDir loads every *.yaml and *.yml file in dir, in file name
// order. Workflow names must be unique across the directory.
func LoadDefinitionDir(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("workflow: read dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)

	defs := make([]Definition, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, f := range files {
		def, err := LoadDefinitionFile(f)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[def.Name]; ok {
			return nil, fmt.Errorf("workflow: %q defined in both %s and %s", def.Name, prev, f)
		}
		seen[def.Name] = f
		defs = append(defs, def)
	}
	return defs, nil
}

// Normalized returns a copy with names trimmed and NFC-normalized, so
// visually identical names compare equal.
func (d Definition) Normalized() Definition {
	out := d
	out.Name = normName(d.Name)
	out.Tasks = make([]model.TaskTemplate, len(d.Tasks))
	for i, t := range d.Tasks {
		t.Name = normName(t.Name)
		t.Operator = model.OperatorType(strings.TrimSpace(string(t.Operator)))
		t.DependsOn = mapStrings(t.DependsOn, normName)
		t.CallbackFns = mapStrings(t.CallbackFns, strings.TrimSpace)
		out.Tasks[i] = t
	}
	return out
}

func normName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func mapStrings(in []string, f func(string) string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = f(s)
	}
	return out
}

// Validate checks the definition is runnable: unique task names, known
// operators and callbacks, and dependencies on earlier tasks only.
func (d Definition) Validate() error {
	if d.Name == "" {
		return apperr.BadRequest("workflow name is required")
	}
	if len(d.Tasks) == 0 {
		return apperr.BadRequest("workflow %s has no tasks", d.Name)
	}

	seen := make(map[string]bool, len(d.Tasks))
	for i, t := range d.Tasks {
		if t.Name == "" {
			return apperr.BadRequest("workflow %s: task %d has no name", d.Name, i)
		}
		if seen[t.Name] {
			return apperr.BadRequest("workflow %s: duplicate task %s", d.Name, t.Name)
		}
		if _, err := OperatorFor(t.Operator); err != nil {
			return fmt.Errorf("workflow %s: task %s: %w", d.Name, t.Name, err)
		}
		for _, cb := range t.CallbackFns {
			if _, err := CallbackFor(cb); err != nil {
				return fmt.Errorf("workflow %s: task %s: %w", d.Name, t.Name, err)
			}
		}
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				return apperr.BadRequest("workflow %s: task %s depends on %s, which is not an earlier task", d.Name, t.Name, dep)
			}
		}
		seen[t.Name] = true
	}
	return nil
}

// Workflow converts the definition into a stored workflow.
func (d Definition) Workflow(uuid string, now time.Time) model.Workflow {
	return model.Workflow{
		UUID:        uuid,
		Name:        d.Name,
		Description: d.Description,
		Tags:        d.Tags,
		Parameters:  d.Parameters,
		Tasks:       d.Tasks,
		CreatedAt:   now,
	}
}

// SyncDefinitions validates defs and upserts them by name. Existing
// workflows keep their UUID.
func (e *Engine) SyncDefinitions(ctx context.Context, repo Repository, defs []Definition) ([]model.Workflow, error) {
	out := make([]model.Workflow, 0, len(defs))
	for _, def := range defs {
		def = def.Normalized()
		if err := def.Validate(); err != nil {
			return nil, err
		}
		wf := def.Workflow(e.ids.New(), e.clock.Now())
		if err := repo.UpsertWorkflow(ctx, &wf); err != nil {
			return nil, err
		}
		slog.Debug("workflow synced", "workflow", wf.Name, "uuid", wf.UUID, "tasks", len(wf.Tasks))
		out = append(out, wf)
	}
	return out, nil
}
