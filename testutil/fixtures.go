package testutil

import (
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/pergolabs/pergola"
)

// yamlNode is one node of a YAML site fixture. Kind selects the concrete
// node type: "" or "page" (plain page), "model" (list view), "form"
// (single-submit form), "group" (nested group). Hidden nodes carry no page
// schema and are skipped by the tree builder.
type yamlNode struct {
	ID       string       `json:"id"`
	Label    string       `json:"label"`
	Sort     int          `json:"sort"`
	Kind     string       `json:"kind"`
	Hidden   bool         `json:"hidden"`
	Actions  []yamlAction `json:"actions"`
	Children []yamlNode   `json:"children"`
}

type yamlAction struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// LoadSite builds a site hierarchy from YAML fixture data. The document
// root is the site group and owns itself; every other node is owned by its
// nearest enclosing group.
func LoadSite(data []byte) (pergola.Site, error) {
	var root yamlNode
	if err := yaml.UnmarshalStrict(data, &root); err != nil {
		return nil, fmt.Errorf("testutil: load site: %w", err)
	}

	site := &Group{Page: Page{ID: root.ID, Schema: schemaOf(root)}}
	site.Owner = site
	kids, err := buildChildren(root.Children, site)
	if err != nil {
		return nil, err
	}
	site.Kids = kids
	return site, nil
}

func schemaOf(n yamlNode) *pergola.PageSchema {
	if n.Hidden {
		return nil
	}
	return &pergola.PageSchema{Label: n.Label, Sort: n.Sort}
}

func buildChildren(nodes []yamlNode, owner pergola.AdminGroup) ([]pergola.Admin, error) {
	var admins []pergola.Admin
	for _, n := range nodes {
		admin, err := buildNode(n, owner)
		if err != nil {
			return nil, err
		}
		admins = append(admins, admin)
	}
	return admins, nil
}

func buildNode(n yamlNode, owner pergola.AdminGroup) (pergola.Admin, error) {
	base := Page{ID: n.ID, Schema: schemaOf(n), Owner: owner}
	switch n.Kind {
	case "", "page":
		return &base, nil
	case "model", "form":
		p := &ActionPage{
			Page:       base,
			ListView:   n.Kind == "model",
			SingleForm: n.Kind == "form",
		}
		for _, a := range n.Actions {
			p.Actions = append(p.Actions, pergola.AdminAction{Name: a.Name, Label: a.Label})
		}
		return p, nil
	case "group":
		g := &Group{Page: base}
		kids, err := buildChildren(n.Children, g)
		if err != nil {
			return nil, err
		}
		g.Kids = kids
		return g, nil
	default:
		return nil, fmt.Errorf("testutil: unknown node kind %q", n.Kind)
	}
}
