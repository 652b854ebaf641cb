package pergola

import "sort"

// PageSchema is the displayable descriptor of an admin node. Nodes without
// one are navigation-invisible and contribute no permission options.
type PageSchema struct {
	Label string
	Sort  int
}

// Admin is the minimal capability every admin node exposes: a stable unique
// identifier and an optional page descriptor.
//
// Node kinds are discovered by asserting the narrower capability interfaces
// (ActionAdmin, AdminGroup) against an Admin value, never by concrete type.
// This lets the admin-panel collaborator supply any concrete node types it
// likes.
type Admin interface {
	// UniqueID identifies the node for the lifetime of the process. It is
	// the v1 field of every rule about this node.
	UniqueID() string

	// PageSchema returns the node's display descriptor, or nil if the node
	// is not displayable.
	PageSchema() *PageSchema

	// App returns the application node that owns this one. The hierarchy
	// root owns itself.
	App() AdminGroup
}

// AdminAction is one explicitly registered action on an admin node.
type AdminAction struct {
	Name  string
	Label string
}

// ActionAdmin is an admin node that carries actions: a page whose permission
// surface is finer than "can open it". The two predicates describe the
// node's built-in action surface; node kind is never inspected by concrete
// type.
type ActionAdmin interface {
	Admin

	// RegisteredActions returns the node's explicit actions in registration
	// order.
	RegisteredActions() []AdminAction

	// HasListView reports whether the node is a model-list view. List views
	// always expose the built-in list and filter actions, whether or not
	// those are registered explicitly.
	HasListView() bool

	// IsSingleForm reports whether the node renders a single-submit form.
	// Forms without an explicitly registered "submit" action get a
	// synthesized submit permission.
	IsSingleForm() bool
}

// AdminGroup is an admin node containing child nodes. The root of the
// hierarchy is an AdminGroup; so is every nested section.
type AdminGroup interface {
	Admin

	// Children returns the group's direct children in registration order.
	Children() []Admin
}

// Site is the hierarchy root handed to grouping synchronization.
type Site interface {
	AdminGroup
}

// Option is one node of a UI-facing permission option tree: a page or an
// action, with the encoded permission token as its value. It is plain
// structured data; the JSON field names are the UI contract.
type Option struct {
	Label    string   `json:"label"`
	Value    string   `json:"value"`
	Sort     int      `json:"sort,omitempty"`
	Children []Option `json:"children,omitempty"`
}

// AdminActionOptions walks the admin hierarchy depth-first and returns the
// full permission option tree for it, ordered for UI rendering.
//
// For each displayable child: the node itself becomes an option valued
// (uid, "admin:page", "page"). Model views get fixed "View list" and
// "Filter list" children; single forms without a registered submit action
// get a synthesized "Submit" child; every registered action becomes a child
// valued (uid, "admin:"+name, "page"). Sub-groups recurse. Nodes without a
// page schema are skipped entirely, subtree included.
//
// Siblings are sorted by Sort descending, stable, so equal-sort nodes keep
// registration order. The walk is pure; memoization lives in TreeCache.
func AdminActionOptions(group AdminGroup) []Option {
	var options []Option
	for _, admin := range group.Children() {
		schema := admin.PageSchema()
		if schema == nil {
			continue
		}
		opt := Option{
			Label: schema.Label,
			Value: EncodePermission(admin.UniqueID(), ActionPage, DomainPage),
			Sort:  schema.Sort,
		}
		if action, ok := admin.(ActionAdmin); ok {
			opt.Children = actionOptions(action)
		} else if sub, ok := admin.(AdminGroup); ok {
			opt.Children = AdminActionOptions(sub)
		}
		options = append(options, opt)
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Sort > options[j].Sort
	})
	return options
}

// actionOptions returns the child options of an action container: the fixed
// model-view actions, the synthesized form submit, then the registered
// actions in order.
func actionOptions(admin ActionAdmin) []Option {
	uid := admin.UniqueID()
	var children []Option
	if admin.HasListView() {
		children = append(children,
			Option{Label: "View list", Value: EncodePermission(uid, ActionList, DomainPage)},
			Option{Label: "Filter list", Value: EncodePermission(uid, ActionFilter, DomainPage)},
		)
	} else if admin.IsSingleForm() && !hasRegisteredSubmit(admin) {
		children = append(children,
			Option{Label: "Submit", Value: EncodePermission(uid, ActionSubmit, DomainPage)},
		)
	}
	for _, action := range admin.RegisteredActions() {
		children = append(children, Option{
			Label: action.Label,
			Value: EncodePermission(uid, "admin:"+action.Name, DomainPage),
		})
	}
	return children
}

func hasRegisteredSubmit(admin ActionAdmin) bool {
	for _, action := range admin.RegisteredActions() {
		if action.Name == "submit" {
			return true
		}
	}
	return false
}
