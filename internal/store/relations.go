package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Relation types accepted by the memory_relations table.
const (
	RelationParentChild = "parent-child"
	RelationRelated     = "related"
	RelationFollowsFrom = "follows-from"
	RelationContradicts = "contradicts"
	RelationUpdates     = "updates"
	RelationSupports    = "supports"
)

// RelationTypes lists every valid relation type.
var RelationTypes = []string{
	RelationParentChild,
	RelationRelated,
	RelationFollowsFrom,
	RelationContradicts,
	RelationUpdates,
	RelationSupports,
}

// Relation is a directed edge pointing from a parent/source memory to a
// child/target memory.
type Relation struct {
	ID           string          `json:"id"`
	FromMemoryID string          `json:"fromMemoryId"`
	ToMemoryID   string          `json:"toMemoryId"`
	RelationType string          `json:"relationType"`
	Metadata     json.RawMessage `json:"metadata"`
	CreatedAt    int64           `json:"createdAt"`
}

// Connection is a memory reached over a single relation.
type Connection struct {
	RelationID     string          `json:"relationId"`
	RelationType   string          `json:"relationType"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedAt      int64           `json:"createdAt"`
	MemoryID       string          `json:"memoryId"`
	Content        string          `json:"content"`
	MemoryMetadata json.RawMessage `json:"memoryMetadata"`
}

// Edge pairs a relation with the memory on its other end.
type Edge struct {
	Relation Relation
	Other    Memory
}

const relationColumns = `r.id, r.from_memory_id, r.to_memory_id, r.relation_type, r.metadata, r.created_at`

func scanRelation(s scanner, extra ...any) (*Relation, error) {
	var r Relation
	var metadata sql.NullString
	dest := append([]any{&r.ID, &r.FromMemoryID, &r.ToMemoryID, &r.RelationType, &metadata, &r.CreatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if metadata.Valid {
		r.Metadata = json.RawMessage(metadata.String)
	}
	return &r, nil
}

func memoryExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check memory %s: %w", id, err)
	}
	return n > 0, nil
}

// InsertRelation stores a relation after checking that both endpoints exist
// and that the ordered pair is not already linked.
func (db *DB) InsertRelation(ctx context.Context, r Relation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert relation: %w", err)
	}
	defer tx.Rollback()

	for _, id := range []string{r.FromMemoryID, r.ToMemoryID} {
		ok, err := memoryExists(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("memory %s: %w", id, ErrNotFound)
		}
	}

	var n int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memory_relations WHERE from_memory_id = ? AND to_memory_id = ?
	`, r.FromMemoryID, r.ToMemoryID).Scan(&n)
	if err != nil {
		return fmt.Errorf("check relation: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("relation %s -> %s already exists: %w", r.FromMemoryID, r.ToMemoryID, ErrConflict)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_relations (id, from_memory_id, to_memory_id, relation_type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.FromMemoryID, r.ToMemoryID, r.RelationType, nullJSON(r.Metadata), r.CreatedAt)
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("relation %s -> %s already exists: %w", r.FromMemoryID, r.ToMemoryID, ErrConflict)
	case isForeignKeyViolation(err):
		return fmt.Errorf("relation endpoint: %w", ErrNotFound)
	case err != nil:
		return fmt.Errorf("insert relation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert relation: %w", err)
	}
	return nil
}

// GetRelation returns a relation by ID, or nil if not found.
func (db *DB) GetRelation(ctx context.Context, id string) (*Relation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+relationColumns+` FROM memory_relations r WHERE r.id = ?`, id)
	r, err := scanRelation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get relation: %w", err)
	}
	return r, nil
}

// DeleteRelation removes a relation and returns it.
func (db *DB) DeleteRelation(ctx context.Context, id string) (*Relation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete relation: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+relationColumns+` FROM memory_relations r WHERE r.id = ?`, id)
	r, err := scanRelation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("relation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get relation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_relations WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete relation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete relation: %w", err)
	}
	return r, nil
}

// Parents returns the memories that point at memoryID.
func (db *DB) Parents(ctx context.Context, memoryID string) ([]Connection, error) {
	return db.connections(ctx, memoryID, "to_memory_id", "from_memory_id")
}

// Children returns the memories memoryID points at.
func (db *DB) Children(ctx context.Context, memoryID string) ([]Connection, error) {
	return db.connections(ctx, memoryID, "from_memory_id", "to_memory_id")
}

func (db *DB) connections(ctx context.Context, memoryID, self, other string) ([]Connection, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT r.id, r.relation_type, r.metadata, r.created_at, m.id, m.content, m.metadata
		FROM memory_relations r
		JOIN memories m ON m.id = r.%s
		WHERE r.%s = ?
		ORDER BY r.created_at, r.rowid
	`, other, self), memoryID)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	out := []Connection{}
	for rows.Next() {
		var c Connection
		var relMeta, memMeta sql.NullString
		if err := rows.Scan(&c.RelationID, &c.RelationType, &relMeta, &c.CreatedAt, &c.MemoryID, &c.Content, &memMeta); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		if relMeta.Valid {
			c.Metadata = json.RawMessage(relMeta.String)
		}
		if memMeta.Valid {
			c.MemoryMetadata = json.RawMessage(memMeta.String)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Edges returns every relation where memoryID is an endpoint, each joined with
// the memory on the other end.
func (db *DB) Edges(ctx context.Context, memoryID string) ([]Edge, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+relationColumns+`, `+memoryColumns+`
		FROM memory_relations r
		JOIN memories m ON m.id = CASE WHEN r.from_memory_id = ? THEN r.to_memory_id ELSE r.from_memory_id END
		WHERE r.from_memory_id = ? OR r.to_memory_id = ?
		ORDER BY r.created_at, r.rowid
	`, memoryID, memoryID, memoryID)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		var memMeta sql.NullString
		r, err := scanRelation(rows, &e.Other.ID, &e.Other.Content, &memMeta, &e.Other.CreatedAt, &e.Other.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Relation = *r
		if memMeta.Valid {
			e.Other.Metadata = json.RawMessage(memMeta.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
