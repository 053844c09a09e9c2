package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/lazypower/mnemo/internal/store"
)

// ProjectNamePattern is the set of names a project may have.
var ProjectNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Relation directions accepted by GetRelations.
const (
	DirectionParents  = "parents"
	DirectionChildren = "children"
	DirectionBoth     = "both"
)

// ValidateProjectName rejects empty names and names outside [a-zA-Z0-9_-].
func ValidateProjectName(name string) error {
	if !ProjectNamePattern.MatchString(name) {
		return invalidf("project name %q may only contain letters, digits, hyphens and underscores", name)
	}
	return nil
}

func validateContent(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", invalidf("content is required")
	}
	return content, nil
}

func validateRelationType(t string) (string, error) {
	if t == "" {
		return store.RelationRelated, nil
	}
	if !slices.Contains(store.RelationTypes, t) {
		return "", invalidf("relation type %q must be one of %s", t, strings.Join(store.RelationTypes, ", "))
	}
	return t, nil
}

func validateDirection(d string) (string, error) {
	switch d {
	case "":
		return DirectionBoth, nil
	case DirectionParents, DirectionChildren, DirectionBoth:
		return d, nil
	}
	return "", invalidf("direction %q must be parents, children or both", d)
}

// isNull reports whether raw is absent or the JSON literal null.
func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// unwrapJSONString returns the JSON document encoded inside a JSON string
// value. ok is false when raw is a string whose contents are not valid JSON;
// the decoded string is returned so it can be preserved.
func unwrapJSONString(raw json.RawMessage) (doc json.RawMessage, str string, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return raw, "", true
	}
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil, "", false
	}
	if !json.Valid([]byte(str)) {
		return nil, str, false
	}
	return json.RawMessage(str), "", true
}

// metadataResult is the outcome of normalizing caller metadata.
type metadataResult struct {
	Raw json.RawMessage
	// Wrapped is set when the input could not be stored as-is and was
	// preserved under originalMetadata.
	Wrapped bool
}

// normalizeMetadata turns caller metadata into the JSON stored with a memory.
// Metadata may be any JSON value or a string holding JSON. Objects are stored
// as given; in a named project the project key is written into them (always
// when force is set, otherwise only when missing). Anything that is not an
// object in a named project, and strings that are not JSON at all, are kept
// under an originalMetadata key.
func normalizeMetadata(raw json.RawMessage, project string, force bool) (metadataResult, error) {
	named := project != "" && project != store.DefaultProject

	if isNull(raw) {
		if !named {
			return metadataResult{}, nil
		}
		return marshalMetadata(map[string]any{"project": project}, false)
	}

	doc, str, ok := unwrapJSONString(raw)
	if !ok {
		obj := map[string]any{"originalMetadata": str}
		if named {
			obj["project"] = project
		}
		return marshalMetadata(obj, true)
	}
	if isNull(doc) {
		return normalizeMetadata(nil, project, force)
	}

	doc = bytes.TrimSpace(doc)
	if doc[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(doc, &obj); err != nil {
			return metadataResult{}, invalidf("metadata: %v", err)
		}
		if named {
			if _, has := obj["project"]; force || !has {
				p, _ := json.Marshal(project)
				obj["project"] = p
			}
		}
		// Stored rows are partitioned on this value, so it must be a name.
		if p, has := obj["project"]; has && !isNull(p) {
			var name string
			if err := json.Unmarshal(p, &name); err != nil {
				return metadataResult{}, invalidf("metadata.project must be a string")
			}
		}
		return marshalMetadata(obj, false)
	}

	if !named {
		return metadataResult{Raw: doc}, nil
	}
	return marshalMetadata(map[string]any{
		"originalMetadata": doc,
		"project":          project,
	}, true)
}

func marshalMetadata(v any, wrapped bool) (metadataResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return metadataResult{}, fmt.Errorf("encode metadata: %w", err)
	}
	return metadataResult{Raw: b, Wrapped: wrapped}, nil
}

// parseFilter returns the containment document of a metadata filter, or nil
// when the filter is absent or unusable.
func parseFilter(raw json.RawMessage) (json.RawMessage, bool) {
	if isNull(raw) {
		return nil, true
	}
	doc, _, ok := unwrapJSONString(raw)
	if !ok || !json.Valid(doc) {
		return nil, false
	}
	if isNull(doc) {
		return nil, true
	}
	return doc, true
}
