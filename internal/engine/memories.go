package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/mnemo/internal/store"
)

// ListParams selects a page of memories.
type ListParams struct {
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
	Filter    json.RawMessage
	// Project scopes the listing. Empty lists every project.
	Project string
}

// Pagination describes the page returned by ListMemories.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// UpdateParams holds the fields to change. Nil fields are left alone.
type UpdateParams struct {
	Content  *string
	Metadata json.RawMessage
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func notFound(kind, id string) error {
	return fmt.Errorf("%s with ID %s: %w", kind, id, store.ErrNotFound)
}

// CreateMemory embeds content and stores it in project.
func (e *Engine) CreateMemory(ctx context.Context, content string, metadata json.RawMessage, project string) (*store.Memory, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	md, err := normalizeMetadata(metadata, project, true)
	if err != nil {
		return nil, err
	}
	if md.Wrapped {
		e.Log.Warn("metadata stored as originalMetadata", "project", project)
	}

	v, err := e.vectorize(ctx, content)
	if err != nil {
		return nil, err
	}

	now := nowMillis()
	m := store.Memory{
		ID:        uuid.NewString(),
		Content:   content,
		Metadata:  md.Raw,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.DB.InsertMemory(ctx, m, v); err != nil {
		return nil, err
	}
	e.Log.Debug("memory created", "id", m.ID, "project", project)
	return &m, nil
}

// GetMemory returns a memory by ID.
func (e *Engine) GetMemory(ctx context.Context, id string) (*store.Memory, error) {
	if id == "" {
		return nil, invalidf("memory ID is required")
	}
	m, err := e.DB.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, notFound("memory", id)
	}
	return m, nil
}

// UpdateMemory changes content and/or metadata. The embedding is regenerated
// only when content changes. New metadata keeps the memory in its current
// project unless it names another one.
func (e *Engine) UpdateMemory(ctx context.Context, id string, p UpdateParams) (*store.Memory, error) {
	if p.Content == nil && p.Metadata == nil {
		return nil, invalidf("at least one of content or metadata must be provided")
	}

	m, err := e.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}

	var v *store.Vector
	if p.Content != nil {
		content, err := validateContent(*p.Content)
		if err != nil {
			return nil, err
		}
		vec, err := e.vectorize(ctx, content)
		if err != nil {
			return nil, err
		}
		m.Content = content
		v = &vec
	}

	if p.Metadata != nil {
		md, err := normalizeMetadata(p.Metadata, m.Project(), false)
		if err != nil {
			return nil, err
		}
		if md.Wrapped {
			e.Log.Warn("metadata stored as originalMetadata", "id", id)
		}
		m.Metadata = md.Raw
	}

	m.UpdatedAt = nowMillis()
	return e.DB.UpdateMemory(ctx, *m, v)
}

// DeleteMemory removes a memory and, by cascade, its relations.
func (e *Engine) DeleteMemory(ctx context.Context, id string) (*store.Memory, error) {
	if id == "" {
		return nil, invalidf("memory ID is required")
	}
	m, err := e.DB.DeleteMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Log.Debug("memory deleted", "id", id)
	return m, nil
}

// ListMemories returns a page of memories. An unusable metadata filter is
// ignored with a warning.
func (e *Engine) ListMemories(ctx context.Context, p ListParams) ([]store.Memory, Pagination, error) {
	if p.Limit <= 0 {
		p.Limit = e.Opts.ListLimit
	}
	if p.Offset < 0 {
		return nil, Pagination{}, invalidf("offset must not be negative")
	}

	filter, ok := parseFilter(p.Filter)
	if !ok {
		e.Log.Warn("ignoring invalid metadata filter", "filter", string(p.Filter))
	}

	memories, total, err := e.DB.ListMemories(ctx, store.ListOptions{
		Limit:     p.Limit,
		Offset:    p.Offset,
		SortBy:    p.SortBy,
		SortOrder: p.SortOrder,
		Filter:    filter,
		Project:   p.Project,
	})
	if err != nil {
		return nil, Pagination{}, err
	}
	if memories == nil {
		memories = []store.Memory{}
	}

	return memories, Pagination{
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.Offset+len(memories) < total,
	}, nil
}
