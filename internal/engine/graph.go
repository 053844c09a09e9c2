package engine

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/lazypower/mnemo/internal/store"
)

// Edge directions as seen from the node that discovered a graph node.
const (
	EdgeOutgoing = "outgoing"
	EdgeIncoming = "incoming"
)

// GraphNode is a memory in a traversal tree. Non-root nodes carry the
// relation that led to them.
type GraphNode struct {
	ID               string          `json:"id"`
	Content          string          `json:"content,omitempty"`
	Metadata         json.RawMessage `json:"metadata"`
	CreatedAt        int64           `json:"createdAt"`
	Depth            int             `json:"depth"`
	RelationID       string          `json:"relationId,omitempty"`
	RelationType     string          `json:"relationType,omitempty"`
	RelationMetadata json.RawMessage `json:"relationMetadata,omitempty"`
	Direction        string          `json:"direction,omitempty"`
	Children         []*GraphNode    `json:"children"`
}

// Graph is the result of a traversal.
type Graph struct {
	Root         *GraphNode `json:"graph"`
	NodesVisited int        `json:"nodesVisited"`
	MaxDepth     int        `json:"maxDepth"`
}

// Relations groups the connections of a memory.
type Relations struct {
	Parents  []store.Connection `json:"parents"`
	Children []store.Connection `json:"children"`
}

// Total returns the number of connections in both directions.
func (r *Relations) Total() int { return len(r.Parents) + len(r.Children) }

// CreateRelation links from (parent/source) to to (child/target).
func (e *Engine) CreateRelation(ctx context.Context, from, to, relationType string, metadata json.RawMessage) (*store.Relation, error) {
	if from == "" || to == "" {
		return nil, invalidf("both source and target memory IDs are required")
	}
	relationType, err := validateRelationType(relationType)
	if err != nil {
		return nil, err
	}
	md, err := normalizeMetadata(metadata, store.DefaultProject, false)
	if err != nil {
		return nil, err
	}

	r := store.Relation{
		ID:           uuid.NewString(),
		FromMemoryID: from,
		ToMemoryID:   to,
		RelationType: relationType,
		Metadata:     md.Raw,
		CreatedAt:    nowMillis(),
	}
	if err := e.DB.InsertRelation(ctx, r); err != nil {
		return nil, err
	}
	e.Log.Debug("relation created", "id", r.ID, "from", from, "to", to, "type", relationType)
	return &r, nil
}

// GetRelations returns the parents and/or children of a memory.
func (e *Engine) GetRelations(ctx context.Context, memoryID, direction string) (*Relations, error) {
	direction, err := validateDirection(direction)
	if err != nil {
		return nil, err
	}
	if _, err := e.GetMemory(ctx, memoryID); err != nil {
		return nil, err
	}

	rels := &Relations{Parents: []store.Connection{}, Children: []store.Connection{}}
	if direction == DirectionParents || direction == DirectionBoth {
		if rels.Parents, err = e.DB.Parents(ctx, memoryID); err != nil {
			return nil, err
		}
	}
	if direction == DirectionChildren || direction == DirectionBoth {
		if rels.Children, err = e.DB.Children(ctx, memoryID); err != nil {
			return nil, err
		}
	}
	return rels, nil
}

// DeleteRelation removes a relation and returns it.
func (e *Engine) DeleteRelation(ctx context.Context, id string) (*store.Relation, error) {
	if id == "" {
		return nil, invalidf("relation ID is required")
	}
	return e.DB.DeleteRelation(ctx, id)
}

// Graph expands the relation graph breadth-first from rootID, following
// relations in both directions. Each memory appears once, at the smallest
// number of hops from the root. Nodes at maxDepth are included but not
// expanded. A negative maxDepth selects the default, and values above
// Opts.MaxGraphDepth are capped.
func (e *Engine) Graph(ctx context.Context, rootID string, maxDepth int, includeContent bool) (*Graph, error) {
	if maxDepth < 0 {
		maxDepth = e.Opts.GraphDepth
	}
	if e.Opts.MaxGraphDepth > 0 && maxDepth > e.Opts.MaxGraphDepth {
		maxDepth = e.Opts.MaxGraphDepth
	}

	root, err := e.GetMemory(ctx, rootID)
	if err != nil {
		return nil, err
	}

	rootNode := newGraphNode(root, 0, includeContent)
	visited := map[string]bool{root.ID: true}
	queue := []*GraphNode{rootNode}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		if current.Depth >= maxDepth {
			continue
		}

		edges, err := e.DB.Edges(ctx, current.ID)
		if err != nil {
			return nil, err
		}

		// Two relations can reach the same neighbor; the first one wins.
		unseen := lo.UniqBy(
			lo.Filter(edges, func(edge store.Edge, _ int) bool { return !visited[edge.Other.ID] }),
			func(edge store.Edge) string { return edge.Other.ID },
		)
		for _, edge := range unseen {
			visited[edge.Other.ID] = true

			child := newGraphNode(&edge.Other, current.Depth+1, includeContent)
			child.RelationID = edge.Relation.ID
			child.RelationType = edge.Relation.RelationType
			child.RelationMetadata = edge.Relation.Metadata
			child.Direction = EdgeOutgoing
			if edge.Relation.ToMemoryID == current.ID && edge.Relation.FromMemoryID != current.ID {
				child.Direction = EdgeIncoming
			}

			current.Children = append(current.Children, child)
			queue = append(queue, child)
		}
	}

	return &Graph{Root: rootNode, NodesVisited: len(visited), MaxDepth: maxDepth}, nil
}

func newGraphNode(m *store.Memory, depth int, includeContent bool) *GraphNode {
	n := &GraphNode{
		ID:        m.ID,
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
		Depth:     depth,
		Children:  []*GraphNode{},
	}
	if includeContent {
		n.Content = m.Content
	}
	return n
}
