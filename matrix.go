package pergola

import (
	"context"
	"fmt"
	"strings"
)

// MatrixRow is one UI row of a field permission matrix. Perm is the row's
// own encoded permission key; the JSON names are the UI contract.
type MatrixRow struct {
	Label   string `json:"label"`
	Perm    string `json:"rol"`
	Checked bool   `json:"checked"`
}

// FieldPolicyMatrix is parallel lists of matrix rows, one list per column.
// The policy form has three columns (default, allow, deny); the effect form
// has two (allow, deny). Row i of every list describes the same field, and
// exactly one list has it checked.
type FieldPolicyMatrix [][]MatrixRow

// Indices into a three-column FieldPolicyMatrix.
const (
	MatrixDefault = 0
	MatrixAllow   = 1
	MatrixDeny    = 2
)

// legacyFieldAction rewrites the old "admin:" action namespace to the
// "page:" namespace that stored field rules use. Migration shim for data
// written before the namespace split; delete this function once no such
// rows remain, call sites stay untouched. The permission token shown to the
// UI keeps its original form, only store lookups are rewritten.
func legacyFieldAction(v2 string) string {
	return strings.Replace(v2, "admin:", "page:", 1)
}

// SubjectFieldPolicyMatrix renders the subject's stored field rules under
// permission as a three-column matrix over rows. Each input row lands
// checked in exactly one output column: allow if a stored allow rule matches
// its key, deny for a stored deny rule, default otherwise. All three
// columns have one row per input row, so column lengths always equal
// len(rows).
//
// This reads stored policy, not the engine's live decision; a field in the
// default column may still be allowed or denied transitively. Use
// SubjectFieldEffectMatrix for the evaluated result.
func SubjectFieldPolicyMatrix(ctx context.Context, e Enforcer, subject, permission string, rows []MatrixRow) (FieldPolicyMatrix, error) {
	v1, v2, _, err := decodePermission3(permission)
	if err != nil {
		return nil, fmt.Errorf("field policy matrix: %w", err)
	}
	v2 = legacyFieldAction(v2)

	rules, err := e.GetFilteredPolicy(ctx, 0, subject, v1, v2, "", "")
	if err != nil {
		return nil, fmt.Errorf("field policy matrix: %w", err)
	}
	allowed := make(map[string]bool)
	denied := make(map[string]bool)
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		perm := EncodePermission(rule[1 : len(rule)-1]...)
		if rule[len(rule)-1] == "allow" {
			allowed[perm] = true
		} else {
			denied[perm] = true
		}
	}

	matrix := FieldPolicyMatrix{
		make([]MatrixRow, 0, len(rows)),
		make([]MatrixRow, 0, len(rows)),
		make([]MatrixRow, 0, len(rows)),
	}
	for _, row := range rows {
		defaultRow, allowRow, denyRow := row, row, row
		defaultRow.Checked, allowRow.Checked, denyRow.Checked = false, false, false
		switch {
		case allowed[row.Perm]:
			allowRow.Checked = true
		case denied[row.Perm]:
			denyRow.Checked = true
		default:
			defaultRow.Checked = true
		}
		matrix[MatrixDefault] = append(matrix[MatrixDefault], defaultRow)
		matrix[MatrixAllow] = append(matrix[MatrixAllow], allowRow)
		matrix[MatrixDeny] = append(matrix[MatrixDeny], denyRow)
	}
	return matrix, nil
}

// SubjectFieldEffectMatrix renders the engine's live decision per row as a
// two-column matrix (allow, deny). There is no default column: evaluation
// always yields a boolean. Each row's own key is decoded and enforced
// directly, so transitive grants through roles are reflected.
func SubjectFieldEffectMatrix(ctx context.Context, e Enforcer, subject string, rows []MatrixRow) (FieldPolicyMatrix, error) {
	matrix := FieldPolicyMatrix{
		make([]MatrixRow, 0, len(rows)),
		make([]MatrixRow, 0, len(rows)),
	}
	for _, row := range rows {
		v1, v2, v3, err := decodePermission3(row.Perm)
		if err != nil {
			return nil, fmt.Errorf("field effect matrix: %w", err)
		}
		eff, err := e.Enforce(ctx, subject, v1, v2, v3)
		if err != nil {
			return nil, fmt.Errorf("field effect matrix: %w", err)
		}
		allowRow, denyRow := row, row
		allowRow.Checked, denyRow.Checked = eff, !eff
		matrix[0] = append(matrix[0], allowRow)
		matrix[1] = append(matrix[1], denyRow)
	}
	return matrix, nil
}

// UpdateSubjectFieldPermissions replaces the subject's stored field rules
// under permission with the checked rows of matrix. An empty or absent
// matrix is a no-op. This is a blanket replace, not a diff: every stored
// rule matching (subject, v1, v2) is removed, then one allow rule is added
// per checked row in the allow column and one deny rule per checked row in
// the deny column. The default column drives no writes; its rows are simply
// the ones left unstored.
//
// The removal filter is exactly the read path's query filter, so the
// replace window covers precisely what SubjectFieldPolicyMatrix displayed.
// A row checked in both allow and deny is rejected with
// ErrConflictingFieldPolicy before any store write.
func UpdateSubjectFieldPermissions(ctx context.Context, e Enforcer, subject, permission string, matrix FieldPolicyMatrix) error {
	if len(matrix) == 0 {
		return nil
	}
	if len(matrix) < 3 {
		return fmt.Errorf("update field permissions: matrix has %d columns, want 3", len(matrix))
	}

	var rules [][]string
	denied := make(map[string]bool)
	for _, row := range matrix[MatrixDeny] {
		if !row.Checked {
			continue
		}
		denied[row.Perm] = true
		fields, err := DecodePermission(row.Perm)
		if err != nil {
			return fmt.Errorf("update field permissions: %w", err)
		}
		rule := append([]string{subject}, fields...)
		rules = append(rules, append(rule, "deny"))
	}
	for _, row := range matrix[MatrixAllow] {
		if !row.Checked {
			continue
		}
		if denied[row.Perm] {
			return fmt.Errorf("update field permissions: %w: %q", ErrConflictingFieldPolicy, row.Perm)
		}
		fields, err := DecodePermission(row.Perm)
		if err != nil {
			return fmt.Errorf("update field permissions: %w", err)
		}
		rule := append([]string{subject}, fields...)
		rules = append(rules, append(rule, "allow"))
	}

	v1, v2, _, err := decodePermission3(permission)
	if err != nil {
		return fmt.Errorf("update field permissions: %w", err)
	}
	v2 = legacyFieldAction(v2)
	if err := e.RemoveFilteredPolicy(ctx, 0, subject, v1, v2, "", ""); err != nil {
		return fmt.Errorf("update field permissions: %w", err)
	}
	if len(rules) > 0 {
		if err := e.AddPolicies(ctx, rules); err != nil {
			return fmt.Errorf("update field permissions: %w", err)
		}
	}
	return nil
}
