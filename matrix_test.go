package pergola_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/pergolabs/pergola"
	"github.com/pergolabs/pergola/testutil"
)

func fieldRows() []pergola.MatrixRow {
	return []pergola.MatrixRow{
		{Label: "Title", Perm: "articles#page:list#title"},
		{Label: "Body", Perm: "articles#page:list#body"},
		{Label: "Author", Perm: "articles#page:list#author"},
	}
}

func TestSubjectFieldPolicyMatrix(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()
	// Stored field rules live in the "page:" namespace even though the page
	// permission still uses "admin:".
	err := e.AddPolicies(ctx, [][]string{
		{"u:1", "articles", "page:list", "title", "allow"},
		{"u:1", "articles", "page:list", "body", "deny"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rows := fieldRows()
	matrix, err := pergola.SubjectFieldPolicyMatrix(ctx, e, "u:1", "articles#admin:list#page", rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matrix) != 3 {
		t.Fatalf("matrix columns = %d, want 3", len(matrix))
	}
	for col, list := range matrix {
		if len(list) != len(rows) {
			t.Errorf("column %d has %d rows, want %d", col, len(list), len(rows))
		}
	}

	// Per row index, exactly one column is checked.
	for i := range rows {
		checked := 0
		for _, col := range matrix {
			if col[i].Checked {
				checked++
			}
		}
		if checked != 1 {
			t.Errorf("row %d checked in %d columns, want 1", i, checked)
		}
	}

	if !matrix[pergola.MatrixAllow][0].Checked {
		t.Error("title should be checked allow")
	}
	if !matrix[pergola.MatrixDeny][1].Checked {
		t.Error("body should be checked deny")
	}
	if !matrix[pergola.MatrixDefault][2].Checked {
		t.Error("author should be checked default")
	}
}

func TestSubjectFieldEffectMatrix(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()
	err := e.AddPolicies(ctx, [][]string{
		{"u:1", "articles", "page:list", "title", "allow"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rows := fieldRows()[:2]
	matrix, err := pergola.SubjectFieldEffectMatrix(ctx, e, "u:1", rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matrix) != 2 {
		t.Fatalf("matrix columns = %d, want 2", len(matrix))
	}
	if !matrix[0][0].Checked || matrix[1][0].Checked {
		t.Error("title should evaluate allow")
	}
	if matrix[0][1].Checked || !matrix[1][1].Checked {
		t.Error("body should evaluate deny")
	}
}

func TestUpdateSubjectFieldPermissions(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()
	// Stale field rules plus an unrelated page rule sharing the v1 prefix.
	err := e.AddPolicies(ctx, [][]string{
		{"u:1", "articles", "page:list", "title", "deny"},
		{"u:1", "articles", "page:list", "stale", "allow"},
		{"u:1", "articles", "admin:list", "page", "allow"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	matrix := pergola.FieldPolicyMatrix{
		{{Perm: "articles#page:list#title"}, {Perm: "articles#page:list#body"}},
		{{Perm: "articles#page:list#title", Checked: true}, {Perm: "articles#page:list#body"}},
		{{Perm: "articles#page:list#title"}, {Perm: "articles#page:list#body", Checked: true}},
	}
	if err := pergola.UpdateSubjectFieldPermissions(ctx, e, "u:1", "articles#admin:list#page", matrix); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := ruleStrings(e.Policies())
	want := []string{
		"u:1#articles#admin:list#page#allow",
		"u:1#articles#page:list#body#deny",
		"u:1#articles#page:list#title#allow",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("policies = %v, want %v", got, want)
	}
}

func TestUpdateSubjectFieldPermissions_EmptyMatrixNoOp(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()
	if err := pergola.UpdateSubjectFieldPermissions(ctx, e, "u:1", "articles#admin:list#page", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Writes != 0 {
		t.Error("empty matrix must not touch the store")
	}
}

func TestUpdateSubjectFieldPermissions_ConflictRejected(t *testing.T) {
	ctx := context.Background()
	e := testutil.NewFakeEnforcer()
	matrix := pergola.FieldPolicyMatrix{
		{{Perm: "articles#page:list#title"}},
		{{Perm: "articles#page:list#title", Checked: true}},
		{{Perm: "articles#page:list#title", Checked: true}},
	}
	err := pergola.UpdateSubjectFieldPermissions(ctx, e, "u:1", "articles#admin:list#page", matrix)
	if !pergola.IsConflictingFieldPolicyErr(err) {
		t.Fatalf("expected conflicting-field-policy error, got %v", err)
	}
	if e.Writes != 0 {
		t.Error("conflicting matrix must abort before any store write")
	}
}
