package content

import (
	"slices"
	"testing"
)

func TestNewCatalog_Ancestors(t *testing.T) {
	cat, err := NewCatalog([]Type{
		{Name: "Object"},
		{Name: "Document", Parent: "Object"},
		{Name: "Article", Parent: "Document"},
	})
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	chain := cat.Ancestors("Article")
	if len(chain) != 3 {
		t.Fatalf("len(Ancestors) = %d, want 3", len(chain))
	}
	for i, want := range []string{"Article", "Document", "Object"} {
		if chain[i].Name != want {
			t.Errorf("chain[%d] = %s, want %s", i, chain[i].Name, want)
		}
	}

	if got := cat.Ancestors("Missing"); got != nil {
		t.Errorf("Ancestors(Missing) = %v, want nil", got)
	}
	if cat.Len() != 3 {
		t.Errorf("Len() = %d, want 3", cat.Len())
	}
	if got := cat.Names(); !slices.Equal(got, []string{"Article", "Document", "Object"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestNewCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		types []Type
	}{
		{"duplicate", []Type{{Name: "A"}, {Name: "A"}}},
		{"unknown parent", []Type{{Name: "A", Parent: "B"}}},
		{"cycle", []Type{{Name: "A", Parent: "B"}, {Name: "B", Parent: "A"}}},
		{"self cycle", []Type{{Name: "A", Parent: "A"}}},
		{"empty name", []Type{{Name: ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.types); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestContent_Property(t *testing.T) {
	c := Content{ID: "1", Type: "Article", Properties: map[string]any{"title": "Hello"}}

	v, ok := c.Property("title")
	if !ok || v != "Hello" {
		t.Errorf("Property(title) = %v, %v", v, ok)
	}

	if _, ok := c.Property("missing"); ok {
		t.Error("Property(missing) found")
	}
}
