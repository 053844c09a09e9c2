package store

import (
	"context"
	"fmt"
)

// ProjectStats summarizes one project partition.
type ProjectStats struct {
	Name         string
	MemoryCount  int
	FirstCreated int64
	LastUpdated  int64
}

// Projects returns every non-empty partition, the default one first and the
// rest by name.
func (db *DB) Projects(ctx context.Context) ([]ProjectStats, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+projectExpr+` AS project, COUNT(*), MIN(m.created_at), MAX(m.updated_at)
		FROM memories m
		GROUP BY project
		ORDER BY project <> 'default', project
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []ProjectStats
	for rows.Next() {
		var p ProjectStats
		if err := rows.Scan(&p.Name, &p.MemoryCount, &p.FirstCreated, &p.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountProject returns the number of memories in a project.
func (db *DB) CountProject(ctx context.Context, project string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories m WHERE `+projectExpr+` = ?`, project).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count project: %w", err)
	}
	return n, nil
}

// DeleteProject removes every memory in a project and returns how many were
// deleted. Vectors and relations go with them.
func (db *DB) DeleteProject(ctx context.Context, project string) (int, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM memories AS m WHERE `+projectExpr+` = ?`, project)
	if err != nil {
		return 0, fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete project rows: %w", err)
	}
	return int(n), nil
}
