package retriever

import (
	"context"
	"fmt"
)

var demoTemplates = []string{
	"What are the best %s for beginners?",
	"How to use %s effectively?",
	"Are free %s good enough?",
	"What is the difference between %s?",
	"How much do %s cost?",
}

// DemoRetriever returns templated questions. It is used offline and as the
// fallback when a results page yields nothing.
type DemoRetriever struct{}

// NewDemoRetriever returns a DemoRetriever.
func NewDemoRetriever() *DemoRetriever {
	return &DemoRetriever{}
}

// Retrieve returns up to limit questions built from the templates.
func (DemoRetriever) Retrieve(ctx context.Context, topic, _ string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := min(limit, len(demoTemplates))
	out := make([]string, 0, max(n, 0))
	for _, tmpl := range demoTemplates[:max(n, 0)] {
		out = append(out, fmt.Sprintf(tmpl, topic))
	}
	return out, nil
}
