package pergola

import (
	"context"
	"fmt"
)

// GroupingRelation is one resource-containment edge: Child is a page or
// group owned by the Parent application node. These edges live in the
// GroupingNamespaceAdmin ("g2") namespace, separate from subject-to-role
// edges, and give the engine implicit permission inheritance down the admin
// tree.
type GroupingRelation struct {
	Parent string
	Child  string
}

// AdminGrouping walks the hierarchy depth-first and derives its containment
// edges. A node whose owning application is itself is the tree root and
// contributes no edge; every other node contributes one edge from its
// owning application's unique ID to its own. Sub-groups recurse.
func AdminGrouping(group AdminGroup) []GroupingRelation {
	var relations []GroupingRelation
	for _, admin := range group.Children() {
		if isSelfOwned(admin) {
			// Self-owned nodes are roots, not contained in anything.
			continue
		}
		relations = append(relations, GroupingRelation{
			Parent: admin.App().UniqueID(),
			Child:  admin.UniqueID(),
		})
		if sub, ok := admin.(AdminGroup); ok {
			relations = append(relations, AdminGrouping(sub)...)
		}
	}
	return relations
}

func isSelfOwned(admin Admin) bool {
	app := admin.App()
	return app != nil && Admin(app) == admin
}

// UpdateSiteGrouping reconciles the "g2" namespace against the edges
// derived from site. Unlike role reconciliation this is a true incremental
// diff: stale edges are removed, new edges added, unchanged edges left
// alone, and an unchanged hierarchy issues no writes.
func UpdateSiteGrouping(ctx context.Context, e Enforcer, site Site) error {
	stored, err := e.GetFilteredNamedGroupingPolicy(ctx, GroupingNamespaceAdmin, 0)
	if err != nil {
		return fmt.Errorf("update site grouping: %w", err)
	}

	derived := make(map[string][]string)
	for _, rel := range AdminGrouping(site) {
		rule := []string{rel.Parent, rel.Child}
		derived[ruleKey(rule)] = rule
	}

	remove, add := Diff(ruleSet(stored), derived)
	if len(remove) > 0 {
		if err := e.RemoveNamedGroupingPolicies(ctx, GroupingNamespaceAdmin, remove); err != nil {
			return fmt.Errorf("update site grouping: %w", err)
		}
	}
	if len(add) > 0 {
		if err := e.AddNamedGroupingPolicies(ctx, GroupingNamespaceAdmin, add); err != nil {
			return fmt.Errorf("update site grouping: %w", err)
		}
	}
	return nil
}
