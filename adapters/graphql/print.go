package graphql

import (
	"fmt"
	"strings"

	"github.com/artpar/caas/domain/schema"
)

// PrintSDL renders the output types of a schema service in schema
// definition language, including the built-in fields.
func PrintSDL(svc *schema.Service) string {
	var sb strings.Builder
	for _, td := range svc.Types() {
		if td.Description != "" {
			fmt.Fprintf(&sb, "# %s\n", td.Description)
		}
		if td.IsInterface() {
			fmt.Fprintf(&sb, "interface %s {\n", td.Name)
		} else if len(td.Interfaces) > 0 {
			fmt.Fprintf(&sb, "type %s implements %s {\n", td.Name, strings.Join(td.Interfaces, " & "))
		} else {
			fmt.Fprintf(&sb, "type %s {\n", td.Name)
		}

		declared := make(map[string]bool, len(td.Fields))
		for _, fd := range td.Fields {
			declared[fd.Name] = true
		}
		if !declared[FieldID] {
			fmt.Fprintf(&sb, "  %s: ID!\n", FieldID)
		}
		if !declared[FieldName] {
			fmt.Fprintf(&sb, "  %s: String\n", FieldName)
		}
		for _, fd := range td.Fields {
			fmt.Fprintf(&sb, "  %s: %s", fd.Name, fd.Type)
			if ref, err := schema.ParseTypeRef(fd.Type); err == nil {
				if kind := schema.FieldKindOf(fd, ref); kind != schema.FieldProperty {
					fmt.Fprintf(&sb, " # %s", kind)
				}
			}
			sb.WriteString("\n")
		}
		sb.WriteString("}\n\n")
	}
	sb.WriteString("type MediaResource {\n  uri: String\n  contentType: String\n  size: Int\n  property: String\n}\n")
	return sb.String()
}
