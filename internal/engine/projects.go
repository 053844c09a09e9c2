package engine

import (
	"context"

	"github.com/lazypower/mnemo/internal/store"
)

// ListProjects returns the non-empty project partitions, default first.
func (e *Engine) ListProjects(ctx context.Context) ([]store.ProjectStats, error) {
	projects, err := e.DB.Projects(ctx)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []store.ProjectStats{}
	}
	return projects, nil
}

// ProjectSize returns how many memories a project holds.
func (e *Engine) ProjectSize(ctx context.Context, name string) (int, error) {
	if err := ValidateProjectName(name); err != nil {
		return 0, err
	}
	return e.DB.CountProject(ctx, name)
}

// DeleteProject removes every memory in a project along with their relations.
// Deleting an empty project is not an error.
func (e *Engine) DeleteProject(ctx context.Context, name string) (int, error) {
	if err := ValidateProjectName(name); err != nil {
		return 0, err
	}
	n, err := e.DB.DeleteProject(ctx, name)
	if err != nil {
		return 0, err
	}
	e.Log.Info("project deleted", "project", name, "memories", n)
	return n, nil
}
