package tools

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/mnemo/internal/embed"
	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/store"
)

func testToolbox(t *testing.T) *Toolbox {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	logger := log.New(io.Discard)
	e := engine.New(db, embed.NewHashEmbedder(embed.DefaultDimensions), logger)
	t.Cleanup(func() { e.Close() })

	tb, err := New(e, NewSessions(store.DefaultProject), logger)
	require.NoError(t, err)
	return tb
}

// call runs a tool and returns its result normalized through JSON, the way
// a transport would see it.
func call(t *testing.T, tb *Toolbox, session, name string, args map[string]any) map[string]any {
	t.Helper()
	res := tb.Call(context.Background(), session, name, args)
	b, err := json.Marshal(res)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func mustSucceed(t *testing.T, res map[string]any) map[string]any {
	t.Helper()
	require.Equal(t, true, res["success"], "result: %v", res)
	return res
}

func createMemory(t *testing.T, tb *Toolbox, session, content string) string {
	t.Helper()
	res := mustSucceed(t, call(t, tb, session, "create_memory", map[string]any{"content": content}))
	return res["memory"].(map[string]any)["id"].(string)
}

func TestToolsRegistered(t *testing.T) {
	tb := testToolbox(t)
	names := []string{
		"create_memory", "get_memory", "search_memory", "list_memories", "update_memory", "delete_memory",
		"create_memory_relation", "get_memory_relations", "get_memory_graph", "delete_memory_relation",
		"switch_project", "list_projects", "get_current_project", "delete_project",
	}
	tools := tb.Tools()
	require.Len(t, tools, len(names))
	for i, name := range names {
		assert.Equal(t, name, tools[i].Name)
		assert.NotEmpty(t, tools[i].Description)

		var schema map[string]any
		require.NoError(t, json.Unmarshal(tools[i].InputSchema, &schema), name)
		assert.Equal(t, "object", schema["type"], name)
	}
}

func TestInputSchemaRequiredAndEnums(t *testing.T) {
	tb := testToolbox(t)

	tool, ok := tb.Lookup("create_memory")
	require.True(t, ok)
	var schema struct {
		Required   []string                  `json:"required"`
		Properties map[string]map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(tool.InputSchema, &schema))
	assert.Equal(t, []string{"content"}, schema.Required)
	assert.Contains(t, schema.Properties, "metadata")

	tool, ok = tb.Lookup("list_memories")
	require.True(t, ok)
	schema.Required = nil
	require.NoError(t, json.Unmarshal(tool.InputSchema, &schema))
	assert.Empty(t, schema.Required)
	assert.ElementsMatch(t, []any{"asc", "desc"}, schema.Properties["sortOrder"]["enum"])
}

func TestUnknownTool(t *testing.T) {
	tb := testToolbox(t)
	res := call(t, tb, "", "no_such_tool", nil)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, CodeNotFound, res["code"])
}

func TestCreateGetUpdateDeleteMemory(t *testing.T) {
	tb := testToolbox(t)
	id := createMemory(t, tb, "", "I live in Shanghai")

	res := mustSucceed(t, call(t, tb, "", "get_memory", map[string]any{"id": id}))
	assert.Equal(t, "I live in Shanghai", res["memory"].(map[string]any)["content"])

	res = mustSucceed(t, call(t, tb, "", "update_memory", map[string]any{
		"id":       id,
		"metadata": map[string]any{"city": "Shanghai"},
	}))
	updated := res["updatedMemory"].(map[string]any)
	assert.Equal(t, "I live in Shanghai", updated["content"])
	assert.Equal(t, map[string]any{"city": "Shanghai"}, updated["metadata"])

	res = mustSucceed(t, call(t, tb, "", "delete_memory", map[string]any{"id": id}))
	assert.Equal(t, id, res["deletedMemory"].(map[string]any)["id"])

	res = call(t, tb, "", "get_memory", map[string]any{"id": id})
	assert.Equal(t, false, res["success"])
	assert.Equal(t, CodeNotFound, res["code"])
	assert.Contains(t, res["error"], id)
}

func TestValidationErrors(t *testing.T) {
	tb := testToolbox(t)
	tests := []struct {
		tool string
		args map[string]any
	}{
		{"create_memory", map[string]any{}},
		{"create_memory", map[string]any{"content": "   "}},
		{"create_memory", map[string]any{"content": 42}},
		{"get_memory", map[string]any{"id": 7}},
		{"search_memory", map[string]any{"query": ""}},
		{"search_memory", map[string]any{"query": "x", "threshold": 3}},
		{"list_memories", map[string]any{"sortBy": "updatedAt"}},
		{"list_memories", map[string]any{"offset": -1}},
		{"update_memory", map[string]any{"id": "x"}},
		{"create_memory_relation", map[string]any{"fromId": "a"}},
		{"create_memory_relation", map[string]any{"fromId": "a", "toId": "b", "relationType": "likes"}},
		{"get_memory_relations", map[string]any{"memoryId": "a", "direction": "up"}},
		{"get_memory_graph", map[string]any{"rootMemoryId": "a", "depth": -2}},
		{"switch_project", map[string]any{"projectName": "bad name"}},
		{"delete_project", map[string]any{"projectName": "work"}},
		{"delete_project", map[string]any{"projectName": "work", "confirmDelete": false}},
	}
	for _, tt := range tests {
		res := call(t, tb, "", tt.tool, tt.args)
		assert.Equal(t, false, res["success"], "%s %v", tt.tool, tt.args)
		assert.Equal(t, CodeInvalidArgument, res["code"], "%s %v: %v", tt.tool, tt.args, res["error"])
		assert.NotEmpty(t, res["error"])
	}
}

func TestMetadataAsJSONString(t *testing.T) {
	tb := testToolbox(t)
	res := mustSucceed(t, call(t, tb, "", "create_memory", map[string]any{
		"content":  "tagged",
		"metadata": `{"tag":"a"}`,
	}))
	assert.Equal(t, map[string]any{"tag": "a"}, res["memory"].(map[string]any)["metadata"])

	res = mustSucceed(t, call(t, tb, "", "create_memory", map[string]any{
		"content":  "broken",
		"metadata": `{oops`,
	}))
	assert.Equal(t, map[string]any{"originalMetadata": "{oops"}, res["memory"].(map[string]any)["metadata"])
}

func TestSearchMemoryTool(t *testing.T) {
	tb := testToolbox(t)
	id := createMemory(t, tb, "", "My dog is named Milo")
	createMemory(t, tb, "", "I live in Shanghai")

	res := mustSucceed(t, call(t, tb, "", "search_memory", map[string]any{"query": "My dog is named Milo"}))
	assert.Equal(t, "My dog is named Milo", res["query"])
	results := res["results"].([]any)
	require.NotEmpty(t, results)
	assert.Equal(t, id, results[0].(map[string]any)["id"])
	assert.Equal(t, float64(len(results)), res["totalResults"])

	res = mustSucceed(t, call(t, tb, "", "search_memory", map[string]any{"query": "zzz qqq", "threshold": 1}))
	assert.Empty(t, res["results"])
	assert.Equal(t, float64(0), res["totalResults"])
}

func TestListMemoriesTool(t *testing.T) {
	tb := testToolbox(t)
	for _, c := range []string{"a", "b", "c", "d", "e"} {
		createMemory(t, tb, "", c)
	}

	res := mustSucceed(t, call(t, tb, "", "list_memories", map[string]any{"limit": 2}))
	assert.Len(t, res["memories"], 2)
	page := res["pagination"].(map[string]any)
	assert.Equal(t, float64(5), page["total"])
	assert.Equal(t, true, page["hasMore"])

	res = mustSucceed(t, call(t, tb, "", "list_memories", map[string]any{"limit": 2, "offset": 4}))
	assert.Equal(t, false, res["pagination"].(map[string]any)["hasMore"])

	res = mustSucceed(t, call(t, tb, "", "list_memories", map[string]any{"metadataFilter": "{broken"}))
	assert.Len(t, res["memories"], 5)
}

func TestListMemoriesAcrossProjects(t *testing.T) {
	tb := testToolbox(t)
	for _, c := range []string{"a", "b", "c"} {
		createMemory(t, tb, "", c)
	}
	mustSucceed(t, call(t, tb, "s2", "switch_project", map[string]any{"projectName": "work"}))
	for _, c := range []string{"d", "e"} {
		createMemory(t, tb, "s2", c)
	}

	res := mustSucceed(t, call(t, tb, "", "list_memories", map[string]any{"limit": 2}))
	page := res["pagination"].(map[string]any)
	assert.Equal(t, float64(5), page["total"])
	assert.Equal(t, true, page["hasMore"])

	res = mustSucceed(t, call(t, tb, "", "list_memories", map[string]any{
		"metadataFilter": map[string]any{"project": "work"},
	}))
	assert.Len(t, res["memories"], 2)
	assert.Equal(t, float64(2), res["pagination"].(map[string]any)["total"])

	res = mustSucceed(t, call(t, tb, "", "list_memories", map[string]any{"currentProjectOnly": true}))
	assert.Equal(t, float64(3), res["pagination"].(map[string]any)["total"])
}

func TestRelationTools(t *testing.T) {
	tb := testToolbox(t)
	a := createMemory(t, tb, "", "a")
	b := createMemory(t, tb, "", "b")

	res := mustSucceed(t, call(t, tb, "", "create_memory_relation", map[string]any{
		"parentId":     a,
		"childId":      b,
		"relationType": "supports",
	}))
	rel := res["relation"].(map[string]any)
	assert.Equal(t, a, rel["fromMemoryId"])
	assert.Equal(t, b, rel["toMemoryId"])
	relID := rel["id"].(string)

	res = call(t, tb, "", "create_memory_relation", map[string]any{"fromId": a, "toId": b})
	assert.Equal(t, CodeConflict, res["code"])

	res = call(t, tb, "", "create_memory_relation", map[string]any{"fromId": a, "toId": "missing"})
	assert.Equal(t, CodeNotFound, res["code"])

	res = mustSucceed(t, call(t, tb, "", "get_memory_relations", map[string]any{"memoryId": b}))
	assert.Equal(t, float64(1), res["totalRelations"])
	parents := res["relations"].(map[string]any)["parents"].([]any)
	require.Len(t, parents, 1)
	assert.Equal(t, a, parents[0].(map[string]any)["memoryId"])
	assert.Equal(t, "a", parents[0].(map[string]any)["content"])

	res = mustSucceed(t, call(t, tb, "", "get_memory_graph", map[string]any{"rootMemoryId": a, "includeContent": true}))
	assert.Equal(t, float64(2), res["nodesVisited"])
	assert.Equal(t, float64(2), res["maxDepth"])
	graph := res["graph"].(map[string]any)
	assert.Equal(t, "a", graph["content"])
	children := graph["children"].([]any)
	require.Len(t, children, 1)
	assert.Equal(t, relID, children[0].(map[string]any)["relationId"])

	res = call(t, tb, "", "get_memory_graph", map[string]any{"rootMemoryId": "missing"})
	assert.Equal(t, CodeNotFound, res["code"])

	mustSucceed(t, call(t, tb, "", "delete_memory_relation", map[string]any{"relationId": relID}))
	res = call(t, tb, "", "delete_memory_relation", map[string]any{"relationId": relID})
	assert.Equal(t, CodeNotFound, res["code"])
}

func TestProjectTools(t *testing.T) {
	tb := testToolbox(t)
	defaultID := createMemory(t, tb, "s1", "in default")

	res := mustSucceed(t, call(t, tb, "s1", "switch_project", map[string]any{"projectName": "work"}))
	assert.Equal(t, true, res["isNew"])
	assert.Equal(t, "work", res["project"])

	id := createMemory(t, tb, "s1", "in work")
	res = mustSucceed(t, call(t, tb, "s1", "get_memory", map[string]any{"id": id}))
	assert.Equal(t, map[string]any{"project": "work"}, res["memory"].(map[string]any)["metadata"])

	res = mustSucceed(t, call(t, tb, "s1", "list_memories", nil))
	assert.Len(t, res["memories"], 2, "listing spans every project")
	res = mustSucceed(t, call(t, tb, "s1", "list_memories", map[string]any{"currentProjectOnly": true}))
	require.Len(t, res["memories"], 1)
	assert.Equal(t, id, res["memories"].([]any)[0].(map[string]any)["id"])

	res = mustSucceed(t, call(t, tb, "s1", "search_memory", map[string]any{"query": "in default", "threshold": -1}))
	assert.Equal(t, "work", res["project"])
	for _, r := range res["results"].([]any) {
		assert.NotEqual(t, defaultID, r.(map[string]any)["id"], "search is scoped to the current project")
	}

	res = mustSucceed(t, call(t, tb, "s1", "list_projects", nil))
	assert.Equal(t, float64(2), res["totalProjects"])
	assert.Equal(t, "work", res["currentProject"])
	projects := res["projects"].([]any)
	assert.Equal(t, "default", projects[0].(map[string]any)["name"])
	assert.Equal(t, false, projects[0].(map[string]any)["isCurrent"])
	assert.Equal(t, true, projects[1].(map[string]any)["isCurrent"])

	res = mustSucceed(t, call(t, tb, "s1", "switch_project", map[string]any{"projectName": "work"}))
	assert.Equal(t, false, res["isNew"])

	// Another session is unaffected.
	res = mustSucceed(t, call(t, tb, "s2", "get_current_project", nil))
	assert.Equal(t, "default", res["project"])

	res = mustSucceed(t, call(t, tb, "s2", "delete_project", map[string]any{"projectName": "work", "confirmDelete": true}))
	assert.Equal(t, float64(1), res["deletedMemoryCount"])
	assert.Equal(t, "default", res["currentProject"])

	res = mustSucceed(t, call(t, tb, "s1", "get_current_project", nil))
	assert.Equal(t, "default", res["project"], "session falls back after its project is deleted")
}

func TestConcurrentSessionsIsolated(t *testing.T) {
	tb := testToolbox(t)
	var wg sync.WaitGroup
	for _, name := range []string{"alpha", "beta", "gamma", "delta"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				tb.Call(context.Background(), name, "switch_project", map[string]any{"projectName": name})
				res := tb.Call(context.Background(), name, "get_current_project", nil)
				assert.Equal(t, name, res["project"])
			}
		}(name)
	}
	wg.Wait()
}

func TestCallRecoversFromPanic(t *testing.T) {
	tb := testToolbox(t)
	tb.tools["boom"] = &Tool{
		Name: "boom",
		call: func(context.Context, *Session, map[string]any) (Result, error) {
			panic("kaboom")
		},
	}

	res := tb.Call(context.Background(), "", "boom", nil)
	assert.False(t, res.Success())
	assert.Equal(t, CodeInternal, res.Code())
	assert.Contains(t, res.Error(), "kaboom")

	// The toolbox keeps working afterwards.
	res = tb.Call(context.Background(), "", "get_current_project", nil)
	assert.True(t, res.Success())
}
