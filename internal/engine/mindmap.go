package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/studyforge/studyai/internal/rag"
)

// MindMap is a topic with branches fanning out to leaves.
type MindMap struct {
	Topic    string              `json:"topic"`
	Branches map[string][]string `json:"branches"`
}

const mindMapSystem = "You build study mind maps from course material. Respond only with JSON."

// MindMap generates a mind map for a query. A response the model fails to
// structure degrades to a parse-error placeholder map instead of failing
// the request; the student can simply retry.
func (e *Engine) MindMap(ctx context.Context, query string, opts ...rag.RetrieveOption) (*MindMap, []rag.Source, error) {
	rc, err := e.retriever.Retrieve(ctx, query, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieving context: %w", err)
	}

	prompt := fmt.Sprintf(`Generate a mind map for: %s

Context:
%s

OUTPUT: STRICT JSON ONLY. Format: {"topic": "...", "branches": {"Branch1": ["Leaf1", "Leaf2"]}}
DO NOT INCLUDE CITATIONS.`, query, rc.Text)

	var m MindMap
	if err := e.llm.GenerateJSON(ctx, mindMapSystem, prompt, &m); err != nil {
		e.logger.Warn("mind map parse failed", "query", query, "error", err)
		return &MindMap{
			Topic:    query,
			Branches: map[string][]string{"Parse Error": {"Try again"}},
		}, rc.Sources, nil
	}
	if m.Topic == "" {
		m.Topic = query
	}

	return &m, rc.Sources, nil
}

// branchColors cycles across mind map branches in the rendered graph.
var branchColors = []string{"#ef4444", "#3b82f6", "#10b981", "#f59e0b", "#8b5cf6", "#ec4899"}

// DOT renders the mind map as a Graphviz digraph, left to right with the
// topic as root. Branches are emitted in sorted order so output is
// deterministic.
func (m *MindMap) DOT() string {
	var sb strings.Builder
	sb.WriteString(`digraph G {
    rankdir=LR;
    splines=curved;
    bgcolor="transparent";
    nodesep=0.4;
    ranksep=1.0;
    node [shape=rect, style="rounded,filled", fillcolor="white", fontname="Helvetica", penwidth=2, margin=0.2];
    edge [penwidth=1.5, arrowsize=0.7, color="#64748b"];
`)
	fmt.Fprintf(&sb, "    root [label=%q, fillcolor=\"#475569\", fontcolor=\"white\", fontsize=16];\n", m.Topic)

	branches := make([]string, 0, len(m.Branches))
	for branch := range m.Branches {
		branches = append(branches, branch)
	}
	sort.Strings(branches)

	for i, branch := range branches {
		color := branchColors[i%len(branchColors)]
		bID := fmt.Sprintf("b%d", i)
		fmt.Fprintf(&sb, "    %s [label=%q, color=%q, fontcolor=\"#1e293b\"];\n", bID, branch, color)
		fmt.Fprintf(&sb, "    root -> %s [color=%q];\n", bID, color)

		for j, leaf := range m.Branches[branch] {
			lID := fmt.Sprintf("l%d_%d", i, j)
			fmt.Fprintf(&sb, "    %s [label=%q, color=%q, fontcolor=\"#334155\", fontsize=12];\n", lID, leaf, color)
			fmt.Fprintf(&sb, "    %s -> %s [color=%q];\n", bID, lID, color)
		}
	}

	sb.WriteString("}")
	return sb.String()
}
