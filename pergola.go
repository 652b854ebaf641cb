// Package pergola adapts an admin panel's page/action hierarchy into
// rule-engine subjects and permissions, and keeps the engine's policy
// store synchronized with what the panel exposes.
//
// # Architecture
//
// Pergola sits between two collaborators it does not own:
//
//   - An admin hierarchy: a tree of pages, forms, model views, and nested
//     groups, consumed through the capability interfaces in this package
//     (Admin, ActionAdmin, AdminGroup, Site).
//   - A rule engine: an opaque policy store with boolean access checks,
//     consumed through the Enforcer interface. The casbinx subpackage
//     binds a real casbin enforcer; tests use an in-memory fake.
//
// Hierarchical admin capabilities are flattened into a stable string-keyed
// permission namespace (see EncodePermission), rendered as option trees for a
// UI (AdminActionOptions, FilterOptions), and reconciled against the rule
// store as minimal add/remove batches (UpdateSubjectPagePermissions,
// UpdateSiteGrouping) or wholesale replacements (UpdateSubjectRoles).
//
// # Basic Usage
//
//	cache := pergola.NewTreeCache()
//	opts, err := pergola.AdminActionOptionsBySubject(ctx, enforcer, cache, pergola.UserSubject("42"), site)
//
// # Concurrency
//
// Tree building and filtering are pure and safe for concurrent use; the
// option-tree cache is goroutine-safe. Reconciliation reads the store, diffs,
// then writes, and is not atomic: callers must not reconcile the same subject
// concurrently, or a concurrently added rule can be lost between the read and
// the write. Store consistency across different subjects is the store's
// responsibility; pergola takes no locks of its own.
package pergola

import "context"

// Subject prefixes. A subject is the principal a permission check is
// evaluated against: users carry the "u:" prefix, roles "r:". Roles are
// themselves subjects, which is how role-to-role inheritance is expressed.
const (
	UserPrefix = "u:"
	RolePrefix = "r:"
)

// RootSubject is the superuser. It bypasses option filtering entirely and
// is never consulted against the rule store.
const RootSubject = UserPrefix + "root"

// UserSubject returns the subject string for a user identifier.
func UserSubject(name string) string {
	return UserPrefix + name
}

// RoleSubject returns the subject string for a role key.
func RoleSubject(key string) string {
	return RolePrefix + key
}

// Enforcer is the rule-engine collaborator. It owns the authoritative policy
// store; pergola only computes set differences and issues add/remove batches
// against it.
//
// Policy rules are positional tuples: (subject, v1, v2, v3, effect) for
// page and field rules. Grouping rules live in named namespaces: "g" holds
// subject-to-role edges, "g2" holds resource-containment edges.
//
// All methods may suspend awaiting a network- or disk-backed store, so every
// one takes a context. Implementations must make RemovePolicies tolerant of
// rules that no longer exist in the store: removal is idempotent, and a
// partially stale remove batch must not fail the overall operation.
type Enforcer interface {
	// Enforce evaluates subject against the rule fields and returns the
	// engine's live decision, including permissions granted transitively
	// through role or resource grouping.
	Enforce(ctx context.Context, subject string, fields ...string) (bool, error)

	// GetFilteredPolicy returns stored policy rules whose fields match the
	// given values starting at fieldIndex. Empty filter values match any.
	GetFilteredPolicy(ctx context.Context, fieldIndex int, fieldValues ...string) ([][]string, error)

	// GetImplicitPermissionsForUser returns the subject's rules including
	// those inherited through role edges.
	GetImplicitPermissionsForUser(ctx context.Context, subject string) ([][]string, error)

	AddPolicies(ctx context.Context, rules [][]string) error
	RemovePolicies(ctx context.Context, rules [][]string) error

	// RemoveFilteredPolicy removes stored rules matching the filter, in the
	// same matching semantics as GetFilteredPolicy.
	RemoveFilteredPolicy(ctx context.Context, fieldIndex int, fieldValues ...string) error

	AddGroupingPolicies(ctx context.Context, rules [][]string) error

	GetFilteredNamedGroupingPolicy(ctx context.Context, ptype string, fieldIndex int, fieldValues ...string) ([][]string, error)
	AddNamedGroupingPolicies(ctx context.Context, ptype string, rules [][]string) error
	RemoveNamedGroupingPolicies(ctx context.Context, ptype string, rules [][]string) error

	// DeleteRolesForUser clears every role edge for the subject in the "g"
	// namespace.
	DeleteRolesForUser(ctx context.Context, subject string) error
}

// GroupingNamespaceAdmin is the named grouping namespace holding admin
// resource-containment edges (parent page group, child page). It is distinct
// from the default "g" namespace used for subject-to-role assignment, so
// resource containment never leaks into role resolution.
const GroupingNamespaceAdmin = "g2"
