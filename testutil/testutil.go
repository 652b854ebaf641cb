// Package testutil provides shared fixtures for pergola tests: concrete
// admin-hierarchy node types, a YAML site loader, and an in-memory Enforcer
// fake with casbin-like matching semantics.
package testutil

import (
	_ "embed"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pergolabs/pergola"
)

//go:embed testdata/site.yaml
var siteYAML []byte

// Page is a displayable admin node with no action surface.
type Page struct {
	ID     string
	Schema *pergola.PageSchema
	Owner  pergola.AdminGroup
}

// UniqueID implements pergola.Admin.
func (p *Page) UniqueID() string { return p.ID }

// PageSchema implements pergola.Admin.
func (p *Page) PageSchema() *pergola.PageSchema { return p.Schema }

// App implements pergola.Admin.
func (p *Page) App() pergola.AdminGroup { return p.Owner }

// ActionPage is an admin node with registered actions and configurable
// capability predicates.
type ActionPage struct {
	Page
	Actions    []pergola.AdminAction
	ListView   bool
	SingleForm bool
}

// RegisteredActions implements pergola.ActionAdmin.
func (p *ActionPage) RegisteredActions() []pergola.AdminAction { return p.Actions }

// HasListView implements pergola.ActionAdmin.
func (p *ActionPage) HasListView() bool { return p.ListView }

// IsSingleForm implements pergola.ActionAdmin.
func (p *ActionPage) IsSingleForm() bool { return p.SingleForm }

// Group is an admin node containing children.
type Group struct {
	Page
	Kids []pergola.Admin
}

// Children implements pergola.AdminGroup.
func (g *Group) Children() []pergola.Admin { return g.Kids }

var (
	_ pergola.ActionAdmin = (*ActionPage)(nil)
	_ pergola.Site        = (*Group)(nil)
)

// Site loads the embedded default site fixture, failing the test on error.
func Site(t *testing.T) pergola.Site {
	t.Helper()
	site, err := LoadSite(siteYAML)
	require.NoError(t, err)
	return site
}
