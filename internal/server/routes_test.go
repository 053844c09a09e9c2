package server

import (
	"fmt"
	"net/http"
	"testing"
)

func createMemory(t *testing.T, srv *Server, content string) string {
	t.Helper()
	code, body := do(t, srv, "POST", "/api/tools/create_memory", fmt.Sprintf(`{"content":%q}`, content))
	if code != http.StatusOK {
		t.Fatalf("create_memory status = %d; body: %v", code, body)
	}
	return body["memory"].(map[string]any)["id"].(string)
}

func TestCallToolCreateAndGet(t *testing.T) {
	srv := testServer(t)
	id := createMemory(t, srv, "The capital of France is Paris")

	code, body := do(t, srv, "POST", "/api/tools/get_memory", fmt.Sprintf(`{"id":%q}`, id))
	if code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %v", code, http.StatusOK, body)
	}
	if got := body["memory"].(map[string]any)["content"]; got != "The capital of France is Paris" {
		t.Errorf("content = %v", got)
	}

	code, body = do(t, srv, "GET", "/api/memories/"+id, "")
	if code != http.StatusOK || body["success"] != true {
		t.Errorf("GET /api/memories/{id}: status = %d, body = %v", code, body)
	}
}

func TestCallToolStatusCodes(t *testing.T) {
	srv := testServer(t)
	a := createMemory(t, srv, "a")
	b := createMemory(t, srv, "b")
	rel := fmt.Sprintf(`{"fromId":%q,"toId":%q}`, a, b)

	tests := []struct {
		name string
		path string
		body string
		want int
		code string
	}{
		{"unknown tool", "/api/tools/nope", `{}`, http.StatusNotFound, "not_found"},
		{"bad json", "/api/tools/create_memory", `{"content":`, http.StatusBadRequest, "invalid_argument"},
		{"array body", "/api/tools/create_memory", `["x"]`, http.StatusBadRequest, "invalid_argument"},
		{"missing content", "/api/tools/create_memory", `{}`, http.StatusBadRequest, "invalid_argument"},
		{"empty body", "/api/tools/create_memory", ``, http.StatusBadRequest, "invalid_argument"},
		{"missing memory", "/api/tools/get_memory", `{"id":"missing"}`, http.StatusNotFound, "not_found"},
		{"first relation", "/api/tools/create_memory_relation", rel, http.StatusOK, ""},
		{"duplicate relation", "/api/tools/create_memory_relation", rel, http.StatusConflict, "conflict"},
	}
	for _, tt := range tests {
		code, body := do(t, srv, "POST", tt.path, tt.body)
		if code != tt.want {
			t.Errorf("%s: status = %d, want %d; body: %v", tt.name, code, tt.want, body)
		}
		if tt.code != "" && body["code"] != tt.code {
			t.Errorf("%s: code = %v, want %s", tt.name, body["code"], tt.code)
		}
	}
}

func TestSessionHeaderIsolatesProjects(t *testing.T) {
	srv := testServer(t)

	code, _ := do(t, srv, "POST", "/api/tools/switch_project", `{"projectName":"work"}`, SessionHeader, "alice")
	if code != http.StatusOK {
		t.Fatalf("switch_project status = %d", code)
	}

	_, body := do(t, srv, "POST", "/api/tools/get_current_project", "", SessionHeader, "alice")
	if body["project"] != "work" {
		t.Errorf("alice project = %v, want work", body["project"])
	}
	_, body = do(t, srv, "POST", "/api/tools/get_current_project", "", SessionHeader, "bob")
	if body["project"] != "default" {
		t.Errorf("bob project = %v, want default", body["project"])
	}

	_, body = do(t, srv, "GET", "/api/projects", "", SessionHeader, "alice")
	if body["currentProject"] != "work" {
		t.Errorf("currentProject = %v, want work", body["currentProject"])
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv := testServer(t)
	id := createMemory(t, srv, "My favorite color is blue")
	createMemory(t, srv, "I play the guitar")

	code, body := do(t, srv, "GET", "/api/search?q=My+favorite+color+is+blue&limit=1", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d; body: %v", code, body)
	}
	results := body["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if got := results[0].(map[string]any)["id"]; got != id {
		t.Errorf("top result = %v, want %s", got, id)
	}

	code, _ = do(t, srv, "GET", "/api/search", "")
	if code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d, want %d", code, http.StatusBadRequest)
	}
	code, _ = do(t, srv, "GET", "/api/search?q=x&threshold=high", "")
	if code != http.StatusBadRequest {
		t.Errorf("bad threshold: status = %d, want %d", code, http.StatusBadRequest)
	}
}

func TestGraphEndpoint(t *testing.T) {
	srv := testServer(t)
	a := createMemory(t, srv, "root")
	b := createMemory(t, srv, "leaf")
	do(t, srv, "POST", "/api/tools/create_memory_relation", fmt.Sprintf(`{"parentId":%q,"childId":%q}`, a, b))

	code, body := do(t, srv, "GET", "/api/memories/"+a+"/graph?depth=1&content=true", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d; body: %v", code, body)
	}
	if body["nodesVisited"] != float64(2) {
		t.Errorf("nodesVisited = %v, want 2", body["nodesVisited"])
	}
	graph := body["graph"].(map[string]any)
	if graph["content"] != "root" {
		t.Errorf("root content = %v, want root", graph["content"])
	}

	code, _ = do(t, srv, "GET", "/api/memories/"+a+"/graph?depth=deep", "")
	if code != http.StatusBadRequest {
		t.Errorf("bad depth: status = %d, want %d", code, http.StatusBadRequest)
	}
	code, _ = do(t, srv, "GET", "/api/memories/missing/graph", "")
	if code != http.StatusNotFound {
		t.Errorf("missing root: status = %d, want %d", code, http.StatusNotFound)
	}
}
