package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultProject names the partition of memories without a project key.
const DefaultProject = "default"

// projectExpr evaluates to the project a memory row belongs to.
const projectExpr = `COALESCE(json_extract(m.metadata, '$.project'), 'default')`

const memoryColumns = `m.id, m.content, m.metadata, m.created_at, m.updated_at`

// Memory is a stored text fragment.
type Memory struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt int64           `json:"createdAt"`
	UpdatedAt int64           `json:"updatedAt"`
}

// Project returns the project the memory belongs to.
func (m *Memory) Project() string {
	return ProjectOf(m.Metadata)
}

// ProjectOf extracts the project key from raw metadata.
func ProjectOf(metadata json.RawMessage) string {
	if len(metadata) == 0 {
		return DefaultProject
	}
	var obj struct {
		Project *string `json:"project"`
	}
	if err := json.Unmarshal(metadata, &obj); err != nil || obj.Project == nil {
		return DefaultProject
	}
	return *obj.Project
}

// ScoredMemory is a search hit.
type ScoredMemory struct {
	Memory
	Similarity float64 `json:"similarity"`
}

// ListOptions controls ListMemories.
type ListOptions struct {
	Limit     int
	Offset    int
	SortBy    string // createdAt | content
	SortOrder string // asc | desc
	// Filter is a JSON document the metadata must contain. Empty means no filter.
	Filter json.RawMessage
	// Project restricts the listing to one partition. Empty means all.
	Project string
}

// SearchOptions controls SearchMemories.
type SearchOptions struct {
	Limit     int
	Threshold float64
	Project   string
}

var sortColumns = map[string]string{
	"createdAt": "m.created_at",
	"content":   "m.content",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(s scanner, extra ...any) (*Memory, error) {
	var m Memory
	var metadata sql.NullString
	dest := append([]any{&m.ID, &m.Content, &metadata, &m.CreatedAt, &m.UpdatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if metadata.Valid {
		m.Metadata = json.RawMessage(metadata.String)
	}
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// InsertMemory stores a memory and its vector in one transaction.
func (db *DB) InsertMemory(ctx context.Context, m Memory, v Vector) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert memory: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, content, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.Content, nullJSON(m.Metadata), m.CreatedAt, m.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert memory %s: %w", m.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}

	if err := saveVector(ctx, tx, m.ID, v); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert memory: %w", err)
	}
	return nil
}

// GetMemory returns a memory by ID, or nil if not found.
func (db *DB) GetMemory(ctx context.Context, id string) (*Memory, error) {
	row := db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories m WHERE m.id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

// UpdateMemory overwrites content, metadata and updated_at of an existing
// memory. When v is non-nil the vector is replaced in the same transaction.
// updated_at never drops below created_at.
func (db *DB) UpdateMemory(ctx context.Context, m Memory, v *Vector) (*Memory, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update memory: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE memories SET content = ?, metadata = ?, updated_at = MAX(?, created_at)
		WHERE id = ?
	`, m.Content, nullJSON(m.Metadata), m.UpdatedAt, m.ID)
	if err != nil {
		return nil, fmt.Errorf("update memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("memory %s: %w", m.ID, ErrNotFound)
	}

	if v != nil {
		if err := saveVector(ctx, tx, m.ID, *v); err != nil {
			return nil, err
		}
	}

	row := tx.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories m WHERE m.id = ?`, m.ID)
	updated, err := scanMemory(row)
	if err != nil {
		return nil, fmt.Errorf("reload memory: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update memory: %w", err)
	}
	return updated, nil
}

// DeleteMemory removes a memory and returns it. Its vector and every relation
// touching it are removed by cascade.
func (db *DB) DeleteMemory(ctx context.Context, id string) (*Memory, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete memory: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories m WHERE m.id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete memory: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete memory: %w", err)
	}
	return m, nil
}

// ListMemories returns one page of memories and the total size of the
// filtered set. Ties in the sort column are broken by insertion order.
func (db *DB) ListMemories(ctx context.Context, opts ListOptions) ([]Memory, int, error) {
	var where []string
	var args []any
	if opts.Project != "" {
		where = append(where, projectExpr+` = ?`)
		args = append(args, opts.Project)
	}
	if len(opts.Filter) > 0 {
		where = append(where, `json_contains(m.metadata, ?)`)
		args = append(args, string(opts.Filter))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories m`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count memories: %w", err)
	}

	col, ok := sortColumns[opts.SortBy]
	if !ok {
		col = sortColumns["createdAt"]
	}
	dir := "DESC"
	if strings.EqualFold(opts.SortOrder, "asc") {
		dir = "ASC"
	}

	query := `SELECT ` + memoryColumns + ` FROM memories m` + clause +
		fmt.Sprintf(` ORDER BY %s %s, m.rowid ASC LIMIT ? OFFSET ?`, col, dir)
	rows, err := db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	memories, err := scanMemories(rows)
	if err != nil {
		return nil, 0, err
	}
	return memories, total, nil
}

// SearchMemories ranks memories in a project by cosine similarity to query.
// Only memories whose vector has the same dimension count are considered,
// and only those scoring strictly above the threshold are returned.
func (db *DB) SearchMemories(ctx context.Context, query []float64, opts SearchOptions) ([]ScoredMemory, error) {
	project := opts.Project
	if project == "" {
		project = DefaultProject
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, content, metadata, created_at, updated_at, similarity FROM (
			SELECT `+memoryColumns+`, m.rowid AS rid,
				1 - cosine_distance(v.embedding, ?) AS similarity
			FROM memories m
			JOIN memory_vectors v ON v.memory_id = m.id
			WHERE v.dimensions = ? AND `+projectExpr+` = ?
		) AS m
		WHERE similarity > ?
		ORDER BY similarity DESC, rid ASC
		LIMIT ?
	`, encodeEmbedding(query), len(query), project, opts.Threshold, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	var out []ScoredMemory
	for rows.Next() {
		var sm ScoredMemory
		m, err := scanMemory(rows, &sm.Similarity)
		if err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		sm.Memory = *m
		out = append(out, sm)
	}
	return out, rows.Err()
}
