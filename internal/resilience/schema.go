package resilience

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// Schema is a compiled JSON schema that structured responses must satisfy.
type Schema struct {
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON schema document.
func CompileSchema(raw []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiled, err := compiler.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompileSchema is CompileSchema for package-level schema literals.
func MustCompileSchema(raw string) *Schema {
	s, err := CompileSchema([]byte(raw))
	if err != nil {
		panic(err)
	}
	return s
}

// Validate extracts the JSON document from text and checks it against the schema.
// It returns the bare JSON on success and a *SchemaError otherwise.
func (s *Schema) Validate(text string) (string, error) {
	doc := ExtractJSON(text)
	var value any
	if err := json.Unmarshal([]byte(doc), &value); err != nil {
		return "", &SchemaError{Err: fmt.Errorf("response is not JSON: %w", err)}
	}
	if s == nil || s.compiled == nil {
		return doc, nil
	}
	result := s.compiled.Validate(value)
	if !result.Valid {
		return "", &SchemaError{Err: fmt.Errorf("%v", result.Errors)}
	}
	return doc, nil
}

// ExtractJSON strips markdown fences and surrounding prose from a model response.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return text
	}
	return text[start : end+1]
}
