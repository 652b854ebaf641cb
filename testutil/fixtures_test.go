package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pergolabs/pergola"
)

func TestLoadSite(t *testing.T) {
	site := Site(t)

	assert.Equal(t, "site", site.UniqueID())
	require.Len(t, site.Children(), 4)

	var content pergola.AdminGroup
	for _, admin := range site.Children() {
		if admin.UniqueID() == "content" {
			group, ok := admin.(pergola.AdminGroup)
			require.True(t, ok, "content should be a group")
			content = group
		}
		if admin.UniqueID() == "internal" {
			assert.Nil(t, admin.PageSchema(), "hidden nodes carry no page schema")
		}
	}
	require.NotNil(t, content)
	assert.Len(t, content.Children(), 2)

	articles := content.Children()[0]
	action, ok := articles.(pergola.ActionAdmin)
	require.True(t, ok)
	assert.True(t, action.HasListView())
	assert.False(t, action.IsSingleForm())
	assert.Equal(t, content, articles.App())
}

func TestLoadSite_UnknownKind(t *testing.T) {
	_, err := LoadSite([]byte("id: root\nkind: group\nchildren:\n  - id: x\n    kind: widget\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node kind")
}

func TestFakeEnforcer_DenyOverridesAllow(t *testing.T) {
	ctx := context.Background()
	e := NewFakeEnforcer()
	require.NoError(t, e.AddPolicies(ctx, [][]string{
		{"u:1", "articles", "page:list", "title", "allow"},
		{"r:limited", "articles", "page:list", "title", "deny"},
	}))
	require.NoError(t, e.AddGroupingPolicies(ctx, [][]string{{"u:1", "r:limited"}}))

	ok, err := e.Enforce(ctx, "u:1", "articles", "page:list", "title")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFakeEnforcer_ResourceInheritance(t *testing.T) {
	ctx := context.Background()
	e := NewFakeEnforcer()
	require.NoError(t, e.AddPolicies(ctx, [][]string{
		{"u:1", "content", "admin:page", "page", "allow"},
	}))
	require.NoError(t, e.AddNamedGroupingPolicies(ctx, pergola.GroupingNamespaceAdmin, [][]string{
		{"content", "articles"},
	}))

	ok, err := e.Enforce(ctx, "u:1", "articles", "admin:page", "page")
	require.NoError(t, err)
	assert.True(t, ok, "parent-resource rule should cover the child")
}
