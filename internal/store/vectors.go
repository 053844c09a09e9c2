package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// VectorRecord holds the embedding of a memory.
type VectorRecord struct {
	MemoryID   string
	Embedding  []float64
	Model      string
	Dimensions int
	CreatedAt  int64
}

// Vector is an embedding along with the model that produced it.
type Vector struct {
	Embedding []float64
	Model     string
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveVector(ctx context.Context, ex execer, memoryID string, v Vector) error {
	now := time.Now().UnixMilli()
	blob := encodeEmbedding(v.Embedding)

	_, err := ex.ExecContext(ctx, `
		INSERT INTO memory_vectors (memory_id, embedding, model, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET embedding = ?, model = ?, dimensions = ?, created_at = ?
	`, memoryID, blob, v.Model, len(v.Embedding), now,
		blob, v.Model, len(v.Embedding), now)
	if err != nil {
		return fmt.Errorf("save vector: %w", err)
	}
	return nil
}

// SaveVector stores or replaces the embedding for a memory.
func (db *DB) SaveVector(ctx context.Context, memoryID string, v Vector) error {
	return saveVector(ctx, db, memoryID, v)
}

// GetVector returns the embedding for a memory, or nil if not found.
func (db *DB) GetVector(ctx context.Context, memoryID string) (*VectorRecord, error) {
	var v VectorRecord
	var blob []byte

	err := db.QueryRowContext(ctx, `
		SELECT memory_id, embedding, model, dimensions, created_at
		FROM memory_vectors WHERE memory_id = ?
	`, memoryID).Scan(&v.MemoryID, &blob, &v.Model, &v.Dimensions, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vector: %w", err)
	}
	v.Embedding = decodeEmbedding(blob)
	return &v, nil
}

// StaleMemories returns memories whose vector is missing or was produced by a
// different model or dimension count than the ones given.
func (db *DB) StaleMemories(ctx context.Context, model string, dimensions int) ([]Memory, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+memoryColumns+`
		FROM memories m
		LEFT JOIN memory_vectors v ON v.memory_id = m.id
		WHERE v.memory_id IS NULL OR v.model <> ? OR v.dimensions <> ?
		ORDER BY m.rowid
	`, model, dimensions)
	if err != nil {
		return nil, fmt.Errorf("stale memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}
