package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tmorrow/vigil/internal/collab"
)

// Duration wraps time.Duration for YAML scalars like "1s" or "50ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"1s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must not be negative", s)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Scenario defines one verification scenario.
// Immutable once loaded; consumed by the Runner.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario verifies.
	Description string `yaml:"description"`

	// Resource identifies the resource to acquire for the scenario.
	Resource ResourceClause `yaml:"resource"`

	// Sweep optionally expands this scenario once per resource ID.
	Sweep *SweepClause `yaml:"sweep,omitempty"`

	// Timeout is the default wait budget for await clauses that carry
	// none of their own. Zero selects the package default.
	Timeout Duration `yaml:"timeout,omitempty"`

	// Steps is the ordered sequence of commands, waits, and
	// expectations.
	Steps []Step `yaml:"steps"`
}

// ResourceClause names the resource a scenario acquires.
type ResourceClause struct {
	Kind   string         `yaml:"kind"`
	ID     string         `yaml:"id,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`
}

// Spec converts the clause to the collaborator's resource spec.
func (rc ResourceClause) Spec() collab.ResourceSpec {
	return collab.ResourceSpec{Kind: rc.Kind, ID: rc.ID, Params: rc.Params}
}

// SweepClause expands a scenario across resource instances.
// Each expanded scenario acquires and releases its resource
// independently; one iteration's failure does not abort the sweep.
type SweepClause struct {
	Values []string `yaml:"values"`
}

// Step is one scenario step. Exactly one of Command, Await, or Expect
// drives the step:
//   - Command issues an asynchronous command, optionally awaiting its
//     effect (Await attached to the same step).
//   - A standalone Await waits without issuing anything.
//   - Expect asserts on observed state.
type Step struct {
	Command string         `yaml:"command,omitempty"`
	Args    map[string]any `yaml:"args,omitempty"`
	Await   *AwaitClause   `yaml:"await,omitempty"`
	Expect  *ExpectClause  `yaml:"expect,omitempty"`
}

// AwaitClause bounds a wait for an observed transition.
type AwaitClause struct {
	Subject string `yaml:"subject"`
	Kind    string `yaml:"kind"`

	// Value, when set, waits for the latest recorded value to equal it
	// instead of waiting for a generation advance.
	Value any `yaml:"value,omitempty"`

	Timeout  Duration `yaml:"timeout,omitempty"`
	Interval Duration `yaml:"interval,omitempty"`
}

// ExpectClause asserts on the final observed state of one
// (subject, kind) pair.
type ExpectClause struct {
	Subject string `yaml:"subject"`
	Kind    string `yaml:"kind"`

	// Equals asserts exact equality of the latest recorded value.
	Equals any `yaml:"equals,omitempty"`

	// Near asserts numeric proximity of the latest recorded value.
	// Epsilon bounds the difference; Relative scales it by the
	// expected magnitude.
	Near     *float64 `yaml:"near,omitempty"`
	Epsilon  float64  `yaml:"epsilon,omitempty"`
	Relative bool     `yaml:"relative,omitempty"`

	// MinGeneration asserts at least this many transitions were
	// observed for the pair.
	MinGeneration int64 `yaml:"min_generation,omitempty"`
}

// LoadScenario reads, validates, and parses a scenario YAML file.
// Validation happens in three layers: CUE schema (shape and types),
// strict YAML decode (unknown-field typos), and semantic checks
// (exactly-one-of step rules, non-empty names).
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario validates and parses scenario YAML bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields (catches typos)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarioDir loads every scenario file in dir (non-recursive,
// *.yaml and *.yml), sorted by filename for stable sweep order.
// An optional glob filter matches against scenario names.
func LoadScenarioDir(dir, filter string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var scenarios []*Scenario
	for _, f := range files {
		sc, err := LoadScenario(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		if filter != "" {
			matched, err := filepath.Match(filter, sc.Name)
			if err != nil {
				return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
			}
			if !matched {
				continue
			}
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// resourcePlaceholder in await/expect subjects is replaced with the
// concrete resource ID during sweep expansion.
const resourcePlaceholder = "$resource"

// Expand returns the concrete scenarios this definition describes: the
// scenario itself when no sweep is present, otherwise one copy per
// sweep value with the resource ID substituted, the name suffixed, and
// "$resource" subjects rewritten to the concrete ID.
func (s *Scenario) Expand() []*Scenario {
	if s.Sweep == nil || len(s.Sweep.Values) == 0 {
		return []*Scenario{s}
	}

	out := make([]*Scenario, 0, len(s.Sweep.Values))
	for _, id := range s.Sweep.Values {
		c := *s
		c.Sweep = nil
		c.Name = s.Name + "/" + id
		c.Resource.ID = id
		c.Steps = make([]Step, len(s.Steps))
		for i, step := range s.Steps {
			if step.Await != nil {
				a := *step.Await
				a.Subject = strings.ReplaceAll(a.Subject, resourcePlaceholder, id)
				step.Await = &a
			}
			if step.Expect != nil {
				e := *step.Expect
				e.Subject = strings.ReplaceAll(e.Subject, resourcePlaceholder, id)
				step.Expect = &e
			}
			c.Steps[i] = step
		}
		out = append(out, &c)
	}
	return out
}

// validateScenario checks required fields and step shape.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.Contains(s.Name, "/") {
		return fmt.Errorf("name must not contain %q (reserved for sweep expansion)", "/")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Resource.Kind == "" {
		return fmt.Errorf("resource.kind is required")
	}
	if s.Sweep == nil && s.Resource.ID == "" {
		return fmt.Errorf("resource.id is required unless a sweep provides it")
	}
	if s.Sweep != nil && len(s.Sweep.Values) == 0 {
		return fmt.Errorf("sweep.values must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	hasCommand := st.Command != ""
	hasAwait := st.Await != nil
	hasExpect := st.Expect != nil

	switch {
	case hasExpect && (hasCommand || hasAwait):
		return fmt.Errorf("steps[%d]: expect must be its own step", index)
	case !hasCommand && !hasAwait && !hasExpect:
		return fmt.Errorf("steps[%d]: one of command, await, expect is required", index)
	case st.Args != nil && !hasCommand:
		return fmt.Errorf("steps[%d]: args requires command", index)
	}

	if hasAwait {
		if st.Await.Subject == "" {
			return fmt.Errorf("steps[%d].await: subject is required", index)
		}
		if st.Await.Kind == "" {
			return fmt.Errorf("steps[%d].await: kind is required", index)
		}
	}

	if hasExpect {
		e := st.Expect
		if e.Subject == "" {
			return fmt.Errorf("steps[%d].expect: subject is required", index)
		}
		if e.Kind == "" {
			return fmt.Errorf("steps[%d].expect: kind is required", index)
		}
		checks := 0
		if e.Equals != nil {
			checks++
		}
		if e.Near != nil {
			checks++
		}
		if e.MinGeneration > 0 {
			checks++
		}
		if checks == 0 {
			return fmt.Errorf("steps[%d].expect: one of equals, near, min_generation is required", index)
		}
		if e.Near != nil && e.Epsilon <= 0 {
			return fmt.Errorf("steps[%d].expect: near requires a positive epsilon", index)
		}
		if e.Near == nil && (e.Epsilon != 0 || e.Relative) {
			return fmt.Errorf("steps[%d].expect: epsilon and relative require near", index)
		}
	}

	return nil
}
