package testutil

import (
	"context"
	"sync"

	"github.com/pergolabs/pergola"
)

// FakeEnforcer is an in-memory pergola.Enforcer with casbin-like matching:
// allow wins only when no deny rule matches, role edges ("g") extend the
// subject, and admin containment edges ("g2") let a rule on a parent
// resource cover its descendants.
//
// Write calls are counted so reconciliation tests can assert that an empty
// delta issues no store writes.
type FakeEnforcer struct {
	mu       sync.Mutex
	policies [][]string
	grouping map[string][][]string

	// Writes counts mutating calls (adds, removes, deletes).
	Writes int
}

// NewFakeEnforcer creates an empty fake store.
func NewFakeEnforcer() *FakeEnforcer {
	return &FakeEnforcer{
		grouping: map[string][][]string{},
	}
}

var _ pergola.Enforcer = (*FakeEnforcer)(nil)

// Policies returns a copy of the stored p rules.
func (f *FakeEnforcer) Policies() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyRules(f.policies)
}

// GroupingPolicies returns a copy of the stored rules in a grouping
// namespace ("g" or "g2").
func (f *FakeEnforcer) GroupingPolicies(ptype string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyRules(f.grouping[ptype])
}

// Enforce evaluates subject against the stored rules. The subject is
// extended by its transitive roles, the rule's first field may be an
// ancestor of the requested resource, and any matching deny rule defeats
// every allow.
func (f *FakeEnforcer) Enforce(ctx context.Context, subject string, fields ...string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	subjects := f.closure(subject, "g")
	allowed := false
	for _, rule := range f.policies {
		if len(rule) < 2 || !subjects[rule[0]] {
			continue
		}
		if !f.fieldsMatch(rule[1:len(rule)-1], fields) {
			continue
		}
		if rule[len(rule)-1] == "deny" {
			return false, nil
		}
		allowed = true
	}
	return allowed, nil
}

// fieldsMatch reports whether a rule's value fields cover the request
// fields. The first field may match through g2 ancestry.
func (f *FakeEnforcer) fieldsMatch(ruleFields, reqFields []string) bool {
	if len(ruleFields) != len(reqFields) {
		return false
	}
	for i := range ruleFields {
		if ruleFields[i] == reqFields[i] {
			continue
		}
		if i == 0 && f.closure(reqFields[0], "g2")[ruleFields[0]] {
			continue
		}
		return false
	}
	return true
}

// closure returns start plus everything reachable by walking ptype edges
// child-to-parent.
func (f *FakeEnforcer) closure(start, ptype string) map[string]bool {
	seen := map[string]bool{start: true}
	frontier := []string{start}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, edge := range f.grouping[ptype] {
			var from, to string
			if ptype == "g" {
				from, to = edge[0], edge[1]
			} else {
				from, to = edge[1], edge[0]
			}
			if from == next && !seen[to] {
				seen[to] = true
				frontier = append(frontier, to)
			}
		}
	}
	return seen
}

// GetFilteredPolicy returns stored p rules matching the filter; empty
// filter values match any field.
func (f *FakeEnforcer) GetFilteredPolicy(ctx context.Context, fieldIndex int, fieldValues ...string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filterRules(f.policies, fieldIndex, fieldValues), nil
}

// GetImplicitPermissionsForUser returns rules stored for the subject or any
// role in its transitive closure.
func (f *FakeEnforcer) GetImplicitPermissionsForUser(ctx context.Context, subject string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subjects := f.closure(subject, "g")
	var rules [][]string
	for _, rule := range f.policies {
		if len(rule) > 0 && subjects[rule[0]] {
			rules = append(rules, append([]string(nil), rule...))
		}
	}
	return rules, nil
}

// AddPolicies appends rules, skipping exact duplicates.
func (f *FakeEnforcer) AddPolicies(ctx context.Context, rules [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes++
	f.policies = addRules(f.policies, rules)
	return nil
}

// RemovePolicies removes the given rules. Rules not present are ignored;
// removal is idempotent per the Enforcer contract.
func (f *FakeEnforcer) RemovePolicies(ctx context.Context, rules [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes++
	f.policies = removeRules(f.policies, rules)
	return nil
}

// RemoveFilteredPolicy removes stored p rules matching the filter.
func (f *FakeEnforcer) RemoveFilteredPolicy(ctx context.Context, fieldIndex int, fieldValues ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes++
	matched := filterRules(f.policies, fieldIndex, fieldValues)
	f.policies = removeRules(f.policies, matched)
	return nil
}

// AddGroupingPolicies appends role edges to the "g" namespace.
func (f *FakeEnforcer) AddGroupingPolicies(ctx context.Context, rules [][]string) error {
	return f.AddNamedGroupingPolicies(ctx, "g", rules)
}

// GetFilteredNamedGroupingPolicy returns edges of a grouping namespace
// matching the filter.
func (f *FakeEnforcer) GetFilteredNamedGroupingPolicy(ctx context.Context, ptype string, fieldIndex int, fieldValues ...string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filterRules(f.grouping[ptype], fieldIndex, fieldValues), nil
}

// AddNamedGroupingPolicies appends edges to a grouping namespace.
func (f *FakeEnforcer) AddNamedGroupingPolicies(ctx context.Context, ptype string, rules [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes++
	f.grouping[ptype] = addRules(f.grouping[ptype], rules)
	return nil
}

// RemoveNamedGroupingPolicies removes edges from a grouping namespace,
// ignoring edges already absent.
func (f *FakeEnforcer) RemoveNamedGroupingPolicies(ctx context.Context, ptype string, rules [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes++
	f.grouping[ptype] = removeRules(f.grouping[ptype], rules)
	return nil
}

// DeleteRolesForUser clears every "g" edge whose first field is subject.
func (f *FakeEnforcer) DeleteRolesForUser(ctx context.Context, subject string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes++
	var kept [][]string
	for _, edge := range f.grouping["g"] {
		if len(edge) > 0 && edge[0] == subject {
			continue
		}
		kept = append(kept, edge)
	}
	f.grouping["g"] = kept
	return nil
}

func filterRules(rules [][]string, fieldIndex int, fieldValues []string) [][]string {
	var matched [][]string
	for _, rule := range rules {
		if ruleMatches(rule, fieldIndex, fieldValues) {
			matched = append(matched, append([]string(nil), rule...))
		}
	}
	return matched
}

func ruleMatches(rule []string, fieldIndex int, fieldValues []string) bool {
	for i, v := range fieldValues {
		if v == "" {
			continue
		}
		if fieldIndex+i >= len(rule) || rule[fieldIndex+i] != v {
			return false
		}
	}
	return true
}

func addRules(rules, toAdd [][]string) [][]string {
	for _, rule := range toAdd {
		if !containsRule(rules, rule) {
			rules = append(rules, append([]string(nil), rule...))
		}
	}
	return rules
}

func removeRules(rules, toRemove [][]string) [][]string {
	var kept [][]string
	for _, rule := range rules {
		if !containsRule(toRemove, rule) {
			kept = append(kept, rule)
		}
	}
	return kept
}

func containsRule(rules [][]string, rule []string) bool {
	for _, r := range rules {
		if equalRule(r, rule) {
			return true
		}
	}
	return false
}

func equalRule(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func copyRules(rules [][]string) [][]string {
	out := make([][]string, 0, len(rules))
	for _, rule := range rules {
		out = append(out, append([]string(nil), rule...))
	}
	return out
}
