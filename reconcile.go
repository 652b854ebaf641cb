package pergola

import (
	"context"
	"fmt"
	"strings"
)

// ruleKey keys a stored rule tuple for diffing. The full tuple participates,
// effect included; page-domain rules all carry "allow", so in page
// reconciliation the effect never differentiates two keys in practice.
func ruleKey(rule []string) string {
	return strings.Join(rule, "\x1f")
}

func ruleSet(rules [][]string) map[string][]string {
	set := make(map[string][]string, len(rules))
	for _, rule := range rules {
		set[ruleKey(rule)] = rule
	}
	return set
}

// Diff computes the minimal reconciliation between two keyed sets:
// remove = old − new, add = new − old. The results are disjoint, and
// applying them transforms old into new exactly. Empty deltas mean the
// caller issues no store calls at all.
func Diff[K comparable, V any](old, new map[K]V) (remove, add []V) {
	for k, v := range old {
		if _, ok := new[k]; !ok {
			remove = append(remove, v)
		}
	}
	for k, v := range new {
		if _, ok := old[k]; !ok {
			add = append(add, v)
		}
	}
	return remove, add
}

// UpdateSubjectRoles replaces a subject's role assignments wholesale with
// the roles named in roleKeys, a comma-separated list of unprefixed role
// keys. Every existing role edge for the subject is cleared first, then the
// desired edges are added in one batch; this is a full replace, not a diff.
//
// A role equal to the subject itself is excluded, preventing a direct
// self-loop in the role graph. Multi-hop cycles through intermediate roles
// are not detected.
//
// Callers must not reconcile roles for the same subject concurrently: the
// clear and the re-add are two store calls with no transaction around them.
func UpdateSubjectRoles(ctx context.Context, e Enforcer, subject, roleKeys string) error {
	var edges [][]string
	for _, key := range strings.Split(roleKeys, ",") {
		if key == "" {
			continue
		}
		role := RoleSubject(key)
		if role == subject {
			continue
		}
		edges = append(edges, []string{subject, role})
	}

	if err := e.DeleteRolesForUser(ctx, subject); err != nil {
		return fmt.Errorf("update subject roles: %w", err)
	}
	if len(edges) == 0 {
		return nil
	}
	if err := e.AddGroupingPolicies(ctx, edges); err != nil {
		return fmt.Errorf("update subject roles: %w", err)
	}
	return nil
}

// SubjectPagePermissions returns the subject's page-domain permissions as
// encoded tokens. With implicit set, permissions inherited through role
// edges are included and non-page rules (field-level permissions) are
// filtered out; otherwise only rules stored directly under the subject with
// the "page" domain tag are returned.
func SubjectPagePermissions(ctx context.Context, e Enforcer, subject string, implicit bool) ([]string, error) {
	var rules [][]string
	var err error
	if implicit {
		all, ierr := e.GetImplicitPermissionsForUser(ctx, subject)
		err = ierr
		for _, rule := range all {
			if len(rule) >= 2 && rule[len(rule)-2] == DomainPage {
				rules = append(rules, rule)
			}
		}
	} else {
		rules, err = e.GetFilteredPolicy(ctx, 0, subject, "", "", DomainPage)
	}
	if err != nil {
		return nil, fmt.Errorf("subject page permissions: %w", err)
	}

	// Rules arrive as (subject, v1, v2, v3, effect); the token re-encodes
	// just the permission fields, so it matches option values verbatim.
	perms := make([]string, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		perms = append(perms, EncodePermission(rule[1:len(rule)-1]...))
	}
	return perms, nil
}

// UpdateSubjectPagePermissions reconciles the subject's stored page-domain
// rules against the desired permissions, a list of encoded tokens. Unlike
// role reconciliation this is a true incremental diff: only rules that
// changed are removed or added, and an unchanged set issues no writes.
//
// Each desired permission decodes into the rule
// (subject, v1, v2, "page", "allow"). A malformed permission aborts before
// any store write. Removal is idempotent: rules in the remove batch that
// are already gone from the store must not fail the operation (the Enforcer
// contract), since stale entries such as site pages routinely linger.
//
// Callers must not reconcile the same subject concurrently; the
// read-diff-write sequence is not atomic and a concurrently added rule can
// be lost.
func UpdateSubjectPagePermissions(ctx context.Context, e Enforcer, subject string, permissions []string) error {
	newRules := make(map[string][]string, len(permissions))
	for _, perm := range permissions {
		fields, err := DecodePermission(perm)
		if err != nil {
			return fmt.Errorf("update subject permissions: %w", err)
		}
		rule := append([]string{subject}, fields...)
		rule = append(rule, "allow")
		newRules[ruleKey(rule)] = rule
	}

	stored, err := e.GetFilteredPolicy(ctx, 0, subject, "", "", DomainPage)
	if err != nil {
		return fmt.Errorf("update subject permissions: %w", err)
	}

	remove, add := Diff(ruleSet(stored), newRules)
	if len(remove) > 0 {
		if err := e.RemovePolicies(ctx, remove); err != nil {
			return fmt.Errorf("update subject permissions: %w", err)
		}
	}
	if len(add) > 0 {
		if err := e.AddPolicies(ctx, add); err != nil {
			return fmt.Errorf("update subject permissions: %w", err)
		}
	}
	return nil
}
