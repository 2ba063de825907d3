package definition

import (
	"fmt"

	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/query"
	"github.com/artpar/caas/domain/schema"
)

// Document is the serialized form of a processing definition, as stored in
// definition files and site settings.
type Document struct {
	Name        string      `yaml:"name" toml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
	Types       []TypeSpec  `yaml:"types" toml:"types" json:"types"`
	Queries     []QuerySpec `yaml:"queries" toml:"queries" json:"queries"`
}

// TypeSpec declares one output type.
type TypeSpec struct {
	Name        string      `yaml:"name" toml:"name" json:"name"`
	Kind        string      `yaml:"kind" toml:"kind" json:"kind"`
	Description string      `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
	Interfaces  []string    `yaml:"interfaces,omitempty" toml:"interfaces,omitempty" json:"interfaces,omitempty"`
	Fields      []FieldSpec `yaml:"fields,omitempty" toml:"fields,omitempty" json:"fields,omitempty"`
}

// FieldSpec declares one field of an output type.
type FieldSpec struct {
	Name        string `yaml:"name" toml:"name" json:"name"`
	Type        string `yaml:"type" toml:"type" json:"type"`
	Property    string `yaml:"property,omitempty" toml:"property,omitempty" json:"property,omitempty"`
	Kind        string `yaml:"kind,omitempty" toml:"kind,omitempty" json:"kind,omitempty"`
	InstanceOf  string `yaml:"instanceOf,omitempty" toml:"instanceOf,omitempty" json:"instanceOf,omitempty"`
	Description string `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
}

// QuerySpec declares one named, viewed query.
type QuerySpec struct {
	Name    string            `yaml:"name" toml:"name" json:"name"`
	View    string            `yaml:"view,omitempty" toml:"view,omitempty" json:"view,omitempty"`
	Query   string            `yaml:"query,omitempty" toml:"query,omitempty" json:"query,omitempty"`
	Types   map[string]string `yaml:"types,omitempty" toml:"types,omitempty" json:"types,omitempty"`
	Options map[string]any    `yaml:"options,omitempty" toml:"options,omitempty" json:"options,omitempty"`
}

// Build compiles a document against a content-type catalog.
// Errors describe configuration problems in the document.
func Build(doc Document, cat *content.Catalog) (*ProcessingDefinition, error) {
	if doc.Name == "" {
		return nil, fmt.Errorf("definition without name")
	}
	if len(doc.Queries) == 0 {
		return nil, fmt.Errorf("definition %s declares no queries", doc.Name)
	}

	defs := make([]schema.TypeDef, 0, len(doc.Types))
	for _, ts := range doc.Types {
		td := schema.TypeDef{
			Name:        ts.Name,
			Kind:        schema.Kind(ts.Kind),
			Description: ts.Description,
			Interfaces:  ts.Interfaces,
		}
		for _, fs := range ts.Fields {
			td.Fields = append(td.Fields, schema.FieldDef{
				Name:        fs.Name,
				Type:        fs.Type,
				Property:    fs.Property,
				Kind:        schema.FieldKind(fs.Kind),
				InstanceOf:  fs.InstanceOf,
				Description: fs.Description,
			})
		}
		defs = append(defs, td)
	}

	svc, err := schema.NewService(defs, cat)
	if err != nil {
		return nil, fmt.Errorf("definition %s: schema: %w", doc.Name, err)
	}

	qdefs := make([]query.Definition, 0, len(doc.Queries))
	for _, qs := range doc.Queries {
		qd := query.Definition{
			Name:        qs.Name,
			View:        qs.View,
			Query:       qs.Query,
			TypeQueries: qs.Types,
		}
		if len(qs.Options) > 0 {
			qd.Options = make(map[string]string, len(qs.Options))
			for k, v := range qs.Options {
				qd.Options[k] = fmt.Sprint(v)
			}
		}
		qdefs = append(qdefs, qd)
	}

	reg, err := query.NewRegistry(qdefs)
	if err != nil {
		return nil, fmt.Errorf("definition %s: queries: %w", doc.Name, err)
	}

	return &ProcessingDefinition{
		Name:        doc.Name,
		Description: doc.Description,
		Queries:     reg,
		Schema:      svc,
	}, nil
}
