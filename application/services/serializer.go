package services

import (
	"fmt"
	"strings"

	"github.com/mrsidrdx/context-graph-ai/domain/graph"
)

const (
	contentPreviewLimit = 200
	relationshipLimit   = 20
)

// ContextToString renders a context as the plain-text block given to the
// model. Sections appear in a fixed order and only when non-empty; output is
// a pure function of the input.
func ContextToString(c graph.Context) string {
	var sections []string

	users := c.NodesOfKind(graph.KindUser)
	documents := c.NodesOfKind(graph.KindDocument)
	topics := c.NodesOfKind(graph.KindTopic)
	projects := c.NodesOfKind(graph.KindProject)
	concepts := c.NodesOfKind(graph.KindConcept)

	if len(users) > 0 {
		name := prop(users[0], "name")
		if name == "" {
			name = users[0].ID
		}
		sections = append(sections, "USER: "+name)
	}

	if len(documents) > 0 {
		sections = append(sections, "\nDOCUMENTS:")
		for _, doc := range documents {
			sections = append(sections, fmt.Sprintf("- %s (%s): %s...",
				prop(doc, "title"),
				prop(doc, "doc_type"),
				truncate(prop(doc, "content"), contentPreviewLimit),
			))
		}
	}

	if len(topics) > 0 {
		sections = append(sections, "\nTOPICS OF INTEREST:")
		for _, topic := range topics {
			sections = append(sections, fmt.Sprintf("- %s: %s", prop(topic, "name"), prop(topic, "description")))
		}
	}

	if len(projects) > 0 {
		sections = append(sections, "\nACTIVE PROJECTS:")
		for _, project := range projects {
			sections = append(sections, fmt.Sprintf("- %s (%s): %s",
				prop(project, "name"),
				prop(project, "status"),
				prop(project, "description"),
			))
		}
	}

	if len(concepts) > 0 {
		sections = append(sections, "\nKEY CONCEPTS:")
		for _, concept := range concepts {
			sections = append(sections, fmt.Sprintf("- %s: %s", prop(concept, "name"), prop(concept, "definition")))
		}
	}

	if len(c.Relationships) > 0 {
		sections = append(sections, "\nRELATIONSHIPS:")
		rels := c.Relationships
		if len(rels) > relationshipLimit {
			rels = rels[:relationshipLimit]
		}
		for _, rel := range rels {
			sections = append(sections, fmt.Sprintf("- %s --[%s]--> %s", rel.From, rel.Type, rel.To))
		}
	}

	return strings.Join(sections, "\n")
}

// prop renders a property for display. Missing and null values are empty.
func prop(n graph.Node, key string) string {
	v, ok := n.Properties[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
