package tools

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/store"
)

func (tb *Toolbox) registerAll() error {
	var errs *multierror.Error
	add := func(err error) { errs = multierror.Append(errs, err) }

	add(register(tb, "create_memory", "Store a new memory with semantic embedding for later retrieval", tb.createMemory))
	add(register(tb, "get_memory", "Fetch a single memory by its ID", tb.getMemory))
	add(register(tb, "search_memory", "Search stored memories of the current project by semantic similarity", tb.searchMemory))
	add(register(tb, "list_memories", "List memories with pagination, sorting and metadata filtering", tb.listMemories))
	add(register(tb, "update_memory", "Update the content or metadata of an existing memory", tb.updateMemory))
	add(register(tb, "delete_memory", "Delete a memory by its ID", tb.deleteMemory))

	add(register(tb, "create_memory_relation", "Create a directed relationship from a parent/source memory to a child/target memory", tb.createRelation))
	add(register(tb, "get_memory_relations", "Get the parent and child relationships of a memory", tb.getRelations))
	add(register(tb, "get_memory_graph", "Build a graph of related memories starting from a root memory", tb.getGraph))
	add(register(tb, "delete_memory_relation", "Delete a relationship between two memories", tb.deleteRelation))

	add(register(tb, "switch_project", "Switch to a different project/namespace for memory storage", tb.switchProject))
	add(register(tb, "list_projects", "List all available projects/namespaces", tb.listProjects))
	add(register(tb, "get_current_project", "Get the name of the currently active project", tb.getCurrentProject))
	add(register(tb, "delete_project", "Delete a project and all its associated memories", tb.deleteProject))

	return errs.ErrorOrNil()
}

func (tb *Toolbox) createMemory(ctx context.Context, sess *Session, req *CreateMemoryRequest) (Result, error) {
	metadata, err := rawJSON(req.Metadata)
	if err != nil {
		return nil, err
	}
	m, err := tb.engine.CreateMemory(ctx, req.Content, metadata, sess.Project())
	if err != nil {
		return nil, err
	}
	return ok("memory", m), nil
}

func (tb *Toolbox) getMemory(ctx context.Context, _ *Session, req *GetMemoryRequest) (Result, error) {
	m, err := tb.engine.GetMemory(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return ok("memory", m), nil
}

func (tb *Toolbox) searchMemory(ctx context.Context, sess *Session, req *SearchMemoryRequest) (Result, error) {
	results, err := tb.engine.Search(ctx, req.Query, engine.SearchParams{
		Limit:     req.Limit,
		Threshold: req.Threshold,
		Project:   sess.Project(),
	})
	if err != nil {
		return nil, err
	}
	return ok(
		"results", results,
		"query", req.Query,
		"totalResults", len(results),
		"project", sess.Project(),
	), nil
}

func (tb *Toolbox) listMemories(ctx context.Context, sess *Session, req *ListMemoriesRequest) (Result, error) {
	filter, err := rawJSON(req.MetadataFilter)
	if err != nil {
		return nil, err
	}
	var project string
	if req.CurrentProjectOnly {
		project = sess.Project()
	}

	memories, page, err := tb.engine.ListMemories(ctx, engine.ListParams{
		Limit:     req.Limit,
		Offset:    req.Offset,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
		Filter:    filter,
		Project:   project,
	})
	if err != nil {
		return nil, err
	}
	return ok("memories", memories, "pagination", page), nil
}

func (tb *Toolbox) updateMemory(ctx context.Context, _ *Session, req *UpdateMemoryRequest) (Result, error) {
	metadata, err := rawJSON(req.Metadata)
	if err != nil {
		return nil, err
	}
	m, err := tb.engine.UpdateMemory(ctx, req.ID, engine.UpdateParams{Content: req.Content, Metadata: metadata})
	if err != nil {
		return nil, err
	}
	return ok("updatedMemory", m), nil
}

func (tb *Toolbox) deleteMemory(ctx context.Context, _ *Session, req *DeleteMemoryRequest) (Result, error) {
	m, err := tb.engine.DeleteMemory(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return ok("deletedMemory", m), nil
}

func (tb *Toolbox) createRelation(ctx context.Context, _ *Session, req *CreateRelationRequest) (Result, error) {
	metadata, err := rawJSON(req.Metadata)
	if err != nil {
		return nil, err
	}
	r, err := tb.engine.CreateRelation(ctx, req.from(), req.to(), req.RelationType, metadata)
	if err != nil {
		return nil, err
	}
	return ok("relation", r), nil
}

func (tb *Toolbox) getRelations(ctx context.Context, _ *Session, req *GetRelationsRequest) (Result, error) {
	rels, err := tb.engine.GetRelations(ctx, req.MemoryID, req.Direction)
	if err != nil {
		return nil, err
	}
	return ok(
		"memoryId", req.MemoryID,
		"relations", rels,
		"totalRelations", rels.Total(),
	), nil
}

func (tb *Toolbox) getGraph(ctx context.Context, _ *Session, req *GetGraphRequest) (Result, error) {
	depth := -1
	if req.Depth != nil {
		depth = *req.Depth
	}
	g, err := tb.engine.Graph(ctx, req.RootMemoryID, depth, req.IncludeContent)
	if err != nil {
		return nil, err
	}
	return ok(
		"graph", g.Root,
		"nodesVisited", g.NodesVisited,
		"maxDepth", g.MaxDepth,
	), nil
}

func (tb *Toolbox) deleteRelation(ctx context.Context, _ *Session, req *DeleteRelationRequest) (Result, error) {
	r, err := tb.engine.DeleteRelation(ctx, req.RelationID)
	if err != nil {
		return nil, err
	}
	return ok("deletedRelation", r), nil
}

func (tb *Toolbox) switchProject(ctx context.Context, sess *Session, req *SwitchProjectRequest) (Result, error) {
	n, err := tb.engine.ProjectSize(ctx, req.ProjectName)
	if err != nil {
		return nil, err
	}
	previous := sess.Project()
	sess.SetProject(req.ProjectName)
	tb.log.Info("switched project", "session", sess.ID, "from", previous, "to", req.ProjectName)

	isNew := n == 0
	msg := fmt.Sprintf("Switched to project %q", req.ProjectName)
	if isNew {
		msg = fmt.Sprintf("Switched to new project %q", req.ProjectName)
	}
	return ok(
		"project", req.ProjectName,
		"previousProject", previous,
		"isNew", isNew,
		"message", msg,
	), nil
}

// projectInfo is one entry of list_projects.
type projectInfo struct {
	Name         string `json:"name"`
	MemoryCount  int    `json:"memoryCount"`
	FirstCreated int64  `json:"firstCreated"`
	LastUpdated  int64  `json:"lastUpdated"`
	IsCurrent    bool   `json:"isCurrent"`
}

func (tb *Toolbox) listProjects(ctx context.Context, sess *Session, _ *EmptyRequest) (Result, error) {
	stats, err := tb.engine.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	current := sess.Project()
	projects := lo.Map(stats, func(p store.ProjectStats, _ int) projectInfo {
		return projectInfo{
			Name:         p.Name,
			MemoryCount:  p.MemoryCount,
			FirstCreated: p.FirstCreated,
			LastUpdated:  p.LastUpdated,
			IsCurrent:    p.Name == current,
		}
	})
	return ok(
		"projects", projects,
		"currentProject", current,
		"totalProjects", len(projects),
	), nil
}

func (tb *Toolbox) getCurrentProject(_ context.Context, sess *Session, _ *EmptyRequest) (Result, error) {
	return ok("project", sess.Project()), nil
}

func (tb *Toolbox) deleteProject(ctx context.Context, sess *Session, req *DeleteProjectRequest) (Result, error) {
	n, err := tb.engine.DeleteProject(ctx, req.ProjectName)
	if err != nil {
		return nil, err
	}
	tb.sessions.ProjectDeleted(req.ProjectName)
	return ok(
		"deletedProject", req.ProjectName,
		"deletedMemoryCount", n,
		"currentProject", sess.Project(),
		"message", fmt.Sprintf("Deleted project %q and %d associated memories", req.ProjectName, n),
	), nil
}
