// Package redact implements ordered, pattern-based PHI redaction with an
// independent completeness audit. A Registry holds named rules, a Redactor
// applies an ordered snapshot of them to free text, and an Auditor verifies
// that nothing a rule matched in the original survives in the output.
package redact

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Registry holds the named redaction rules for a process. It is an explicit
// object passed to the Redactor and Auditor, never a package-level singleton.
// Registration may happen at any time; redaction passes operate on a snapshot
// taken via AllOrdered, so concurrent passes never observe a mid-pass change.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
	seq   int
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[string]Rule),
	}
}

// NewRegistryFromSpecs creates a registry seeded with the given rule specs.
// The first invalid spec aborts with a CompileError.
func NewRegistryFromSpecs(specs []RuleSpec) (*Registry, error) {
	r := NewRegistry()
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register compiles spec and inserts it into the registry. Registering a name
// that already exists replaces the prior rule; this is the documented
// extension mechanism (last write wins), and the replacement is ordered by
// its own priority and registration position, not the old rule's. A pattern
// that does not compile fails here with a CompileError, never later.
func (r *Registry) Register(spec RuleSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("rule name must not be empty")
	}

	expr := spec.Pattern
	if flags := compileFlags(spec); flags != "" {
		expr = flags + expr
	}

	pattern, err := regexp.Compile(expr)
	if err != nil {
		return &CompileError{Name: spec.Name, Expr: spec.Pattern, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.rules[spec.Name] = Rule{
		Name:        spec.Name,
		Pattern:     pattern,
		Replacement: spec.Replacement,
		Priority:    spec.Priority,
		seq:         r.seq,
	}
	return nil
}

// Get returns the rule registered under name, or ErrNotFound.
func (r *Registry) Get(name string) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[name]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return rule, nil
}

// AllOrdered returns a snapshot of the registered rules sorted by
// (priority, registration order) ascending. The returned slice is a copy;
// later Register calls do not affect it, which makes it safe to share one
// snapshot across concurrent redaction passes.
func (r *Registry) AllOrdered() []Rule {
	r.mu.RLock()
	rules := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}
	r.mu.RUnlock()

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].seq < rules[j].seq
	})
	return rules
}

// Names returns the registered rule names in application order.
func (r *Registry) Names() []string {
	rules := r.AllOrdered()
	names := make([]string, len(rules))
	for i, rule := range rules {
		names[i] = rule.Name
	}
	return names
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// compileFlags translates per-rule matching options into a regexp flag group.
// Options are per rule, not global, so a name rule can fold case while an
// identifier rule stays exact.
func compileFlags(spec RuleSpec) string {
	var flags string
	if spec.CaseInsensitive {
		flags += "i"
	}
	if spec.Multiline {
		flags += "m"
	}
	if spec.DotAll {
		flags += "s"
	}
	if flags == "" {
		return ""
	}
	return "(?" + flags + ")"
}
