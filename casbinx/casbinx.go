// Package casbinx binds a casbin enforcer to the pergola.Enforcer
// interface.
//
// The casbin management API is synchronous; this binding adds context
// awareness by refusing to start a call on an already-cancelled context.
// In-flight casbin calls are not interruptible.
//
//	e, err := casbin.NewSyncedEnforcer("model.conf", adapter)
//	enforcer := casbinx.New(e)
//	opts, err := pergola.AdminActionOptionsBySubject(ctx, enforcer, cache, subject, site)
package casbinx

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"

	"github.com/pergolabs/pergola"
)

// API is the slice of the casbin management API this binding drives.
// *casbin.Enforcer and *casbin.SyncedEnforcer both satisfy it.
type API interface {
	Enforce(rvals ...interface{}) (bool, error)
	GetFilteredPolicy(fieldIndex int, fieldValues ...string) ([][]string, error)
	GetImplicitPermissionsForUser(user string, domain ...string) ([][]string, error)
	AddPolicies(rules [][]string) (bool, error)
	RemovePolicies(rules [][]string) (bool, error)
	RemovePolicy(params ...interface{}) (bool, error)
	RemoveFilteredPolicy(fieldIndex int, fieldValues ...string) (bool, error)
	AddGroupingPolicies(rules [][]string) (bool, error)
	GetFilteredNamedGroupingPolicy(ptype string, fieldIndex int, fieldValues ...string) ([][]string, error)
	AddNamedGroupingPolicies(ptype string, rules [][]string) (bool, error)
	RemoveNamedGroupingPolicies(ptype string, rules [][]string) (bool, error)
	DeleteRolesForUser(user string, domain ...string) (bool, error)
}

// Both enforcer flavors satisfy API; use the synced one when checks and
// reconciliation share a process.
var (
	_ API = (*casbin.Enforcer)(nil)
	_ API = (*casbin.SyncedEnforcer)(nil)
)

// Adapter implements pergola.Enforcer over a casbin enforcer.
type Adapter struct {
	api API
}

// New wraps a casbin enforcer. Use a SyncedEnforcer when reconciliation and
// checks run from different goroutines; pergola itself takes no locks.
func New(api API) *Adapter {
	return &Adapter{api: api}
}

var _ pergola.Enforcer = (*Adapter)(nil)

// Enforce evaluates the request against the casbin model.
func (a *Adapter) Enforce(ctx context.Context, subject string, fields ...string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	rvals := make([]interface{}, 0, len(fields)+1)
	rvals = append(rvals, subject)
	for _, f := range fields {
		rvals = append(rvals, f)
	}
	return a.api.Enforce(rvals...)
}

// GetFilteredPolicy returns stored p rules matching the filter.
func (a *Adapter) GetFilteredPolicy(ctx context.Context, fieldIndex int, fieldValues ...string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.api.GetFilteredPolicy(fieldIndex, fieldValues...)
}

// GetImplicitPermissionsForUser returns the subject's rules including those
// inherited through role edges.
func (a *Adapter) GetImplicitPermissionsForUser(ctx context.Context, subject string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.api.GetImplicitPermissionsForUser(subject)
}

// AddPolicies adds the rules in one batch.
func (a *Adapter) AddPolicies(ctx context.Context, rules [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.api.AddPolicies(rules); err != nil {
		return fmt.Errorf("casbinx: add policies: %w", err)
	}
	return nil
}

// RemovePolicies removes the rules, tolerating rules that no longer exist.
//
// Casbin's batch removal is atomic: it refuses the whole batch when any rule
// is already gone. Reconciliation needs idempotent deletes, so on a refused
// batch the rules are removed one at a time and not-found results are
// ignored.
func (a *Adapter) RemovePolicies(ctx context.Context, rules [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := a.api.RemovePolicies(rules)
	if err != nil {
		return fmt.Errorf("casbinx: remove policies: %w", err)
	}
	if ok {
		return nil
	}
	for _, rule := range rules {
		params := make([]interface{}, len(rule))
		for i, f := range rule {
			params[i] = f
		}
		if _, err := a.api.RemovePolicy(params...); err != nil {
			return fmt.Errorf("casbinx: remove policy: %w", err)
		}
	}
	return nil
}

// RemoveFilteredPolicy removes stored p rules matching the filter.
func (a *Adapter) RemoveFilteredPolicy(ctx context.Context, fieldIndex int, fieldValues ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.api.RemoveFilteredPolicy(fieldIndex, fieldValues...); err != nil {
		return fmt.Errorf("casbinx: remove filtered policy: %w", err)
	}
	return nil
}

// AddGroupingPolicies adds subject-to-role edges in the default "g"
// namespace.
func (a *Adapter) AddGroupingPolicies(ctx context.Context, rules [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.api.AddGroupingPolicies(rules); err != nil {
		return fmt.Errorf("casbinx: add grouping policies: %w", err)
	}
	return nil
}

// GetFilteredNamedGroupingPolicy returns edges of the named grouping
// namespace matching the filter.
func (a *Adapter) GetFilteredNamedGroupingPolicy(ctx context.Context, ptype string, fieldIndex int, fieldValues ...string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.api.GetFilteredNamedGroupingPolicy(ptype, fieldIndex, fieldValues...)
}

// AddNamedGroupingPolicies adds edges to the named grouping namespace.
func (a *Adapter) AddNamedGroupingPolicies(ctx context.Context, ptype string, rules [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.api.AddNamedGroupingPolicies(ptype, rules); err != nil {
		return fmt.Errorf("casbinx: add named grouping policies: %w", err)
	}
	return nil
}

// RemoveNamedGroupingPolicies removes edges from the named grouping
// namespace. A batch refused because some edge is already gone is not an
// error; stale edges are the normal input of incremental sync.
func (a *Adapter) RemoveNamedGroupingPolicies(ctx context.Context, ptype string, rules [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.api.RemoveNamedGroupingPolicies(ptype, rules); err != nil {
		return fmt.Errorf("casbinx: remove named grouping policies: %w", err)
	}
	return nil
}

// DeleteRolesForUser clears every role edge for the subject.
func (a *Adapter) DeleteRolesForUser(ctx context.Context, subject string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.api.DeleteRolesForUser(subject); err != nil {
		return fmt.Errorf("casbinx: delete roles for user: %w", err)
	}
	return nil
}
