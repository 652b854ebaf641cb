package pergola_test

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"github.com/pergolabs/pergola"
	"github.com/pergolabs/pergola/testutil"
)

func ruleStrings(rules [][]string) []string {
	out := make([]string, 0, len(rules))
	for _, rule := range rules {
		out = append(out, pergola.EncodePermission(rule...))
	}
	sort.Strings(out)
	return out
}

func TestDiff(t *testing.T) {
	old := map[string]string{"a": "a", "b": "b", "c": "c"}
	new := map[string]string{"b": "b", "c": "c", "d": "d"}

	remove, add := pergola.Diff(old, new)
	if !reflect.DeepEqual(remove, []string{"a"}) {
		t.Errorf("remove = %v, want [a]", remove)
	}
	if !reflect.DeepEqual(add, []string{"d"}) {
		t.Errorf("add = %v, want [d]", add)
	}

	// old - remove + add == new, and the deltas are disjoint.
	result := map[string]bool{}
	for k := range old {
		result[k] = true
	}
	for _, k := range remove {
		delete(result, k)
	}
	for _, k := range add {
		if result[k] {
			t.Errorf("add %q overlaps remove set", k)
		}
		result[k] = true
	}
	if len(result) != len(new) {
		t.Errorf("applying deltas does not reproduce new: %v", result)
	}
	for k := range new {
		if !result[k] {
			t.Errorf("missing %q after applying deltas", k)
		}
	}
}

func TestDiff_Identical(t *testing.T) {
	set := map[string]int{"x": 1, "y": 2}
	remove, add := pergola.Diff(set, set)
	if len(remove) != 0 || len(add) != 0 {
		t.Errorf("identical sets should produce empty deltas, got remove=%v add=%v", remove, add)
	}
}

func TestUpdateSubjectRoles_ReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()
	err := e.AddGroupingPolicies(ctx, [][]string{
		{"u:x", "r:a"},
		{"u:x", "r:b"},
		{"u:y", "r:a"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := pergola.UpdateSubjectRoles(ctx, e, "u:x", "b,c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := ruleStrings(e.GroupingPolicies("g"))
	want := []string{"u:x#r:b", "u:x#r:c", "u:y#r:a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("role edges = %v, want %v", got, want)
	}
}

func TestUpdateSubjectRoles_ExcludesSelfEdge(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()

	if err := pergola.UpdateSubjectRoles(ctx, e, "r:admin", "admin,editor"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := ruleStrings(e.GroupingPolicies("g"))
	if !reflect.DeepEqual(got, []string{"r:admin#r:editor"}) {
		t.Errorf("self edge must be excluded, got %v", got)
	}
}

func TestUpdateSubjectRoles_EmptyClearsAll(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()
	if err := e.AddGroupingPolicies(ctx, [][]string{{"u:x", "r:a"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := pergola.UpdateSubjectRoles(ctx, e, "u:x", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.GroupingPolicies("g"); len(got) != 0 {
		t.Errorf("expected no role edges, got %v", got)
	}
}

func TestUpdateSubjectPagePermissions(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()
	err := e.AddPolicies(ctx, [][]string{
		{"u:1", "home", "admin:page", "page", "allow"},
		{"u:1", "docs", "admin:page", "page", "allow"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	desired := []string{
		"docs#admin:page#page",
		"articles#admin:page#page",
	}
	if err := pergola.UpdateSubjectPagePermissions(ctx, e, "u:1", desired); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := ruleStrings(e.Policies())
	want := []string{
		"u:1#articles#admin:page#page#allow",
		"u:1#docs#admin:page#page#allow",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("policies = %v, want %v", got, want)
	}
}

func TestUpdateSubjectPagePermissions_NoDeltaNoWrites(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()
	desired := []string{"docs#admin:page#page"}
	if err := pergola.UpdateSubjectPagePermissions(ctx, e, "u:1", desired); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	writes := e.Writes
	if err := pergola.UpdateSubjectPagePermissions(ctx, e, "u:1", desired); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Writes != writes {
		t.Errorf("reconciling an unchanged set issued %d writes", e.Writes-writes)
	}
}

func TestUpdateSubjectPagePermissions_LeavesOtherSubjectsAlone(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()
	err := e.AddPolicies(ctx, [][]string{
		{"u:2", "home", "admin:page", "page", "allow"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := pergola.UpdateSubjectPagePermissions(ctx, e, "u:1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ruleStrings(e.Policies()); !reflect.DeepEqual(got, []string{"u:2#home#admin:page#page#allow"}) {
		t.Errorf("other subject's rules were touched: %v", got)
	}
}

func TestUpdateSubjectPagePermissions_MalformedAborts(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()
	err := pergola.UpdateSubjectPagePermissions(ctx, e, "u:1", []string{"oops"})
	if !pergola.IsMalformedPermissionErr(err) {
		t.Fatalf("expected malformed-permission error, got %v", err)
	}
	if e.Writes != 0 {
		t.Error("malformed input must abort before any store write")
	}
}

func TestSubjectPagePermissions(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()
	err := e.AddPolicies(ctx, [][]string{
		{"u:1", "home", "admin:page", "page", "allow"},
		{"u:1", "articles", "page:list", "title", "allow"}, // field rule, not page domain
		{"r:editor", "docs", "admin:page", "page", "allow"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := e.AddGroupingPolicies(ctx, [][]string{{"u:1", "r:editor"}}); err != nil {
		t.Fatalf("seed roles: %v", err)
	}

	direct, err := pergola.SubjectPagePermissions(ctx, e, "u:1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sort.Strings(direct)
	if !reflect.DeepEqual(direct, []string{"home#admin:page#page"}) {
		t.Errorf("direct permissions = %v", direct)
	}

	implicit, err := pergola.SubjectPagePermissions(ctx, e, "u:1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sort.Strings(implicit)
	want := []string{"docs#admin:page#page", "home#admin:page#page"}
	if !reflect.DeepEqual(implicit, want) {
		t.Errorf("implicit permissions = %v, want %v", implicit, want)
	}
}
