package pergola

import (
	"context"
	"fmt"
	"strings"
)

// PermDelimiter joins permission key fields in the encoded form. Fields must
// not contain it; EncodePermission does not escape.
const PermDelimiter = "#"

// Permission domain tags. DomainPage marks a rule as a page/action-level
// permission, versus a field-level permission whose third field is its own
// field name.
const DomainPage = "page"

// Action names in the "admin:" namespace. Every page contributes ActionPage;
// model views additionally contribute ActionList and ActionFilter; single
// forms without an explicit submit action contribute ActionSubmit.
const (
	ActionPage   = "admin:page"
	ActionList   = "admin:list"
	ActionFilter = "admin:filter"
	ActionSubmit = "admin:submit"
)

// EncodePermission joins the non-empty fields into the engine's atomic
// permission token, starting from the rule's v1 position.
//
// The round trip DecodePermission(EncodePermission(fields...)) yields fields
// exactly when every field is non-empty and contains no PermDelimiter.
// Empty fields are skipped rather than preserved, so callers must not encode
// sequences with empty intermediate fields.
func EncodePermission(fields ...string) string {
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, PermDelimiter)
}

// DecodePermission splits an encoded permission token back into its fields.
// Leading and trailing delimiters are stripped before splitting.
//
// A valid token has two or three fields, all non-empty; anything else returns
// ErrMalformedPermission. Wrong arity means the input was not produced by
// EncodePermission and is a caller contract violation, surfaced as a typed
// error rather than a mismatched slice.
func DecodePermission(perm string) ([]string, error) {
	fields := strings.Split(strings.Trim(perm, PermDelimiter), PermDelimiter)
	if len(fields) < 2 || len(fields) > 3 {
		return nil, fmt.Errorf("%w: %q has %d fields, want 2 or 3", ErrMalformedPermission, perm, len(fields))
	}
	for _, f := range fields {
		if f == "" {
			return nil, fmt.Errorf("%w: %q has an empty field", ErrMalformedPermission, perm)
		}
	}
	return fields, nil
}

// decodePermission3 decodes perm and pads it to exactly three fields
// (v1, v2, v3). Two-field tokens get an empty v3.
func decodePermission3(perm string) (v1, v2, v3 string, err error) {
	fields, err := DecodePermission(perm)
	if err != nil {
		return "", "", "", err
	}
	v1, v2 = fields[0], fields[1]
	if len(fields) == 3 {
		v3 = fields[2]
	}
	return v1, v2, v3, nil
}

// EnforcePermission evaluates an encoded permission token for subject
// against the engine's live decision.
func EnforcePermission(ctx context.Context, e Enforcer, subject, perm string) (bool, error) {
	fields, err := DecodePermission(perm)
	if err != nil {
		return false, err
	}
	return e.Enforce(ctx, subject, fields...)
}
