package pergola

import (
	"context"
	"fmt"
)

// FilterOptions returns a deep copy of options retaining only nodes for
// which keep returns true. Children of retained nodes are filtered
// recursively; sibling order is preserved.
//
// A retained node whose filtered children all dropped out stays in the
// result with no children: an action-less page is still a page the subject
// can open. Only failed-predicate nodes are removed. The returned tree
// shares no Option values with the input, so callers may mutate it freely.
func FilterOptions(options []Option, keep func(Option) bool) []Option {
	var result []Option
	for _, opt := range options {
		if !keep(opt) {
			continue
		}
		if len(opt.Children) > 0 {
			opt.Children = FilterOptions(opt.Children, keep)
		}
		result = append(result, opt)
	}
	return result
}

// AdminActionOptionsBySubject returns the option tree for group pruned to
// the nodes subject is authorized for. The full tree comes from cache; the
// root subject skips filtering and sees everything. For any other subject a
// node is kept when the engine's live decision allows its encoded value,
// so a group stays visible exactly when the subject holds its page
// permission, even if every child was pruned.
//
// The first engine error aborts the walk and propagates unchanged.
func AdminActionOptionsBySubject(ctx context.Context, e Enforcer, cache *TreeCache, subject string, group AdminGroup) ([]Option, error) {
	options := cache.Options(group)
	if subject == RootSubject {
		return options, nil
	}

	var enforceErr error
	filtered := FilterOptions(options, func(opt Option) bool {
		if enforceErr != nil {
			return false
		}
		ok, err := EnforcePermission(ctx, e, subject, opt.Value)
		if err != nil {
			enforceErr = fmt.Errorf("filter options: %w", err)
			return false
		}
		return ok
	})
	if enforceErr != nil {
		return nil, enforceErr
	}
	return filtered, nil
}
