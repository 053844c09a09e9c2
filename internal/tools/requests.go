package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cohesivestack/valgo"

	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/store"
)

// Argument structs for every tool. The jsonschema tags produce each tool's
// input contract; validate enforces it.

type CreateMemoryRequest struct {
	Content  string `json:"content" jsonschema:"required,description=The content to store as a memory"`
	Metadata any    `json:"metadata,omitempty" jsonschema:"description=Optional JSON metadata associated with this memory (object or JSON string)"`
}

func (r *CreateMemoryRequest) validate() error {
	return check(valgo.Is(valgo.String(r.Content, "content").Not().Blank()))
}

type GetMemoryRequest struct {
	ID string `json:"id" jsonschema:"required,description=The ID of the memory to fetch"`
}

func (r *GetMemoryRequest) validate() error {
	return check(valgo.Is(valgo.String(r.ID, "id").Not().Blank()))
}

type SearchMemoryRequest struct {
	Query     string   `json:"query" jsonschema:"required,description=The search query to find relevant memories"`
	Limit     int      `json:"limit,omitempty" jsonschema:"minimum=1,default=5,description=Maximum number of results to return"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"minimum=-1,maximum=1,default=0.7,description=Minimum cosine similarity a result must exceed"`
}

func (r *SearchMemoryRequest) validate() error {
	v := valgo.Is(valgo.String(r.Query, "query").Not().Blank()).
		Is(valgo.Int(r.Limit, "limit").GreaterOrEqualTo(0))
	if r.Threshold != nil {
		v.Is(valgo.Float64(*r.Threshold, "threshold").Between(-1.0, 1.0))
	}
	return check(v)
}

type ListMemoriesRequest struct {
	Limit              int    `json:"limit,omitempty" jsonschema:"minimum=1,default=50,description=Maximum number of memories to return"`
	Offset             int    `json:"offset,omitempty" jsonschema:"minimum=0,default=0,description=Number of memories to skip (for pagination)"`
	SortBy             string `json:"sortBy,omitempty" jsonschema:"enum=createdAt,enum=content,default=createdAt,description=Field to sort by"`
	SortOrder          string `json:"sortOrder,omitempty" jsonschema:"enum=asc,enum=desc,default=desc,description=Sort order"`
	MetadataFilter     any    `json:"metadataFilter,omitempty" jsonschema:"description=Metadata the listed memories must contain (object or JSON string)"`
	CurrentProjectOnly bool   `json:"currentProjectOnly,omitempty" jsonschema:"default=false,description=List only memories of the current project instead of every project"`
}

func (r *ListMemoriesRequest) validate() error {
	return check(valgo.
		Is(valgo.Int(r.Limit, "limit").GreaterOrEqualTo(0)).
		Is(valgo.Int(r.Offset, "offset").GreaterOrEqualTo(0)).
		Is(valgo.String(r.SortBy, "sortBy").InSlice([]string{"", "createdAt", "content"})).
		Is(valgo.String(r.SortOrder, "sortOrder").InSlice([]string{"", "asc", "desc"})))
}

type UpdateMemoryRequest struct {
	ID       string  `json:"id" jsonschema:"required,description=The ID of the memory to update"`
	Content  *string `json:"content,omitempty" jsonschema:"description=New content for the memory (regenerates the embedding)"`
	Metadata any     `json:"metadata,omitempty" jsonschema:"description=New JSON metadata for the memory"`
}

func (r *UpdateMemoryRequest) validate() error {
	v := valgo.Is(valgo.String(r.ID, "id").Not().Blank())
	if r.Content != nil {
		v.Is(valgo.String(*r.Content, "content").Not().Blank())
	}
	return check(v)
}

type DeleteMemoryRequest struct {
	ID string `json:"id" jsonschema:"required,description=The ID of the memory to delete"`
}

func (r *DeleteMemoryRequest) validate() error {
	return check(valgo.Is(valgo.String(r.ID, "id").Not().Blank()))
}

type CreateRelationRequest struct {
	FromID       string `json:"fromId,omitempty" jsonschema:"description=ID of the parent/source memory"`
	ToID         string `json:"toId,omitempty" jsonschema:"description=ID of the child/target memory"`
	ParentID     string `json:"parentId,omitempty" jsonschema:"description=Alias of fromId"`
	ChildID      string `json:"childId,omitempty" jsonschema:"description=Alias of toId"`
	RelationType string `json:"relationType,omitempty" jsonschema:"enum=parent-child,enum=related,enum=follows-from,enum=contradicts,enum=updates,enum=supports,default=related,description=Type of relationship"`
	Metadata     any    `json:"metadata,omitempty" jsonschema:"description=Optional JSON metadata about the relationship"`
}

// from and to resolve the parentId/childId aliases.
func (r *CreateRelationRequest) from() string {
	if r.FromID != "" {
		return r.FromID
	}
	return r.ParentID
}

func (r *CreateRelationRequest) to() string {
	if r.ToID != "" {
		return r.ToID
	}
	return r.ChildID
}

func (r *CreateRelationRequest) validate() error {
	return check(valgo.
		Is(valgo.String(r.from(), "fromId").Not().Blank()).
		Is(valgo.String(r.to(), "toId").Not().Blank()).
		Is(valgo.String(r.RelationType, "relationType").InSlice(append([]string{""}, store.RelationTypes...))))
}

type GetRelationsRequest struct {
	MemoryID  string `json:"memoryId" jsonschema:"required,description=ID of the memory to find relationships for"`
	Direction string `json:"direction,omitempty" jsonschema:"enum=parents,enum=children,enum=both,default=both,description=Direction of relationships to retrieve"`
}

func (r *GetRelationsRequest) validate() error {
	return check(valgo.
		Is(valgo.String(r.MemoryID, "memoryId").Not().Blank()).
		Is(valgo.String(r.Direction, "direction").InSlice([]string{"", engine.DirectionParents, engine.DirectionChildren, engine.DirectionBoth})))
}

type GetGraphRequest struct {
	RootMemoryID   string `json:"rootMemoryId" jsonschema:"required,description=ID of the root memory to start from"`
	Depth          *int   `json:"depth,omitempty" jsonschema:"minimum=0,default=2,description=Maximum number of relation hops to traverse"`
	IncludeContent bool   `json:"includeContent,omitempty" jsonschema:"default=false,description=Whether to include full memory content"`
}

func (r *GetGraphRequest) validate() error {
	v := valgo.Is(valgo.String(r.RootMemoryID, "rootMemoryId").Not().Blank())
	if r.Depth != nil {
		v.Is(valgo.Int(*r.Depth, "depth").GreaterOrEqualTo(0))
	}
	return check(v)
}

type DeleteRelationRequest struct {
	RelationID string `json:"relationId" jsonschema:"required,description=ID of the relationship to delete"`
}

func (r *DeleteRelationRequest) validate() error {
	return check(valgo.Is(valgo.String(r.RelationID, "relationId").Not().Blank()))
}

type SwitchProjectRequest struct {
	ProjectName string `json:"projectName" jsonschema:"required,pattern=^[a-zA-Z0-9_-]+$,description=Name of the project to switch to (created on first use)"`
}

func (r *SwitchProjectRequest) validate() error {
	return checkProjectName(r.ProjectName)
}

type DeleteProjectRequest struct {
	ProjectName   string `json:"projectName" jsonschema:"required,pattern=^[a-zA-Z0-9_-]+$,description=Name of the project to delete"`
	ConfirmDelete bool   `json:"confirmDelete" jsonschema:"required,description=Must be true to confirm deletion"`
}

func (r *DeleteProjectRequest) validate() error {
	if err := checkProjectName(r.ProjectName); err != nil {
		return err
	}
	return check(valgo.Is(valgo.Bool(r.ConfirmDelete, "confirmDelete").True()))
}

type EmptyRequest struct{}

func checkProjectName(name string) error {
	return check(valgo.Is(valgo.String(name, "projectName").
		Not().Blank().
		MatchingTo(engine.ProjectNamePattern, "{{title}} may only contain letters, digits, hyphens and underscores")))
}

// check converts a failed validation into an ErrInvalidArgument error.
func check(v *valgo.Validation) error {
	if v.Valid() {
		return nil
	}
	err := v.Error()
	var verr *valgo.Error
	if !errors.As(err, &verr) {
		return fmt.Errorf("%v: %w", err, engine.ErrInvalidArgument)
	}

	var msgs []string
	for _, fe := range verr.Errors() {
		msgs = append(msgs, fe.Messages()...)
	}
	sort.Strings(msgs)
	return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), engine.ErrInvalidArgument)
}

// decodeArgs fills req from a loosely typed argument bag. Numbers are kept
// exact so metadata survives the round trip.
func decodeArgs(args map[string]any, req any) error {
	if args == nil {
		args = map[string]any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %v: %w", err, engine.ErrInvalidArgument)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%s must be of type %s: %w", typeErr.Field, typeErr.Type, engine.ErrInvalidArgument)
		}
		return fmt.Errorf("decode arguments: %v: %w", err, engine.ErrInvalidArgument)
	}
	return nil
}

// rawJSON encodes an optional JSON argument.
func rawJSON(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %v: %w", err, engine.ErrInvalidArgument)
	}
	return b, nil
}
