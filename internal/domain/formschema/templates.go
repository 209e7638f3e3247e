package formschema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
)

//go:embed templates.json
var templatesJSON []byte

// Template is a built-in form body offered as a starting point.
type Template struct {
	ID          string
	Name        string
	Description string
	Type        string
	Preview     string
	schema      Schema
}

// Schema returns a copy of the template body. The catalog itself is never
// exposed for mutation.
func (t Template) Schema() Schema { return t.schema.Clone() }

// TemplateSummary is the listing projection of a template.
type TemplateSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Preview     string `json:"preview"`
}

func (t Template) Summary() TemplateSummary {
	return TemplateSummary{ID: t.ID, Name: t.Name, Description: t.Description, Type: t.Type, Preview: t.Preview}
}

type catalog struct {
	order []string
	byID  map[string]Template
}

var templates = mustLoadCatalog(templatesJSON)

func mustLoadCatalog(data []byte) catalog {
	c, err := loadCatalog(data)
	if err != nil {
		panic(fmt.Sprintf("formschema: built-in templates: %v", err))
	}
	return c
}

func loadCatalog(data []byte) (catalog, error) {
	var entries []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Type        string `json:"type"`
		Preview     string `json:"preview"`
		Schema      Schema `json:"schema"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return catalog{}, err
	}
	c := catalog{byID: make(map[string]Template, len(entries))}
	for _, e := range entries {
		if _, dup := c.byID[e.ID]; dup {
			return catalog{}, fmt.Errorf("duplicate template %q", e.ID)
		}
		if err := e.Schema.Validate(); err != nil {
			return catalog{}, fmt.Errorf("template %q: %w", e.ID, err)
		}
		c.order = append(c.order, e.ID)
		c.byID[e.ID] = Template{
			ID: e.ID, Name: e.Name, Description: e.Description,
			Type: e.Type, Preview: e.Preview, schema: e.Schema,
		}
	}
	return c, nil
}

// GetTemplate looks up a built-in template by id.
func GetTemplate(id string) (Template, error) {
	t, ok := templates.byID[id]
	if !ok {
		return Template{}, &NotFoundError{Kind: "template", ID: id}
	}
	return t, nil
}

// Templates yields the template summaries in catalog order. Each call
// starts a fresh iteration.
func Templates() iter.Seq[TemplateSummary] {
	return func(yield func(TemplateSummary) bool) {
		for _, id := range templates.order {
			if !yield(templates.byID[id].Summary()) {
				return
			}
		}
	}
}

// ListTemplates collects Templates into a slice.
func ListTemplates() []TemplateSummary {
	return slices.Collect(Templates())
}
