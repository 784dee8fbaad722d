package detect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const issueSchemaName = "drafting_issues"

func issueItemSchema(strictValidation bool) map[string]any {
	category := map[string]any{"type": "string"}
	original := map[string]any{"type": "string"}
	if strictValidation {
		category["pattern"] = "^[a-z][a-z0-9-]{1,40}$"
		original["minLength"] = 1
		original["maxLength"] = 2000
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"category", "severity", "original_text", "suggestion", "suggested_text"},
		"properties": map[string]any{
			"category":       category,
			"severity":       map[string]any{"type": "string", "enum": []any{"high", "medium", "low", "info"}},
			"original_text":  original,
			"suggestion":     map[string]any{"type": "string"},
			"suggested_text": map[string]any{"type": "string"},
		},
	}
}

// issueListSchema is the structured-output schema sent to the model. The validation copy adds
// constraints the structured-output endpoint does not accept.
func issueListSchema(strictValidation bool) map[string]any {
	issues := map[string]any{
		"type":  "array",
		"items": issueItemSchema(strictValidation),
	}
	if strictValidation {
		issues["maxItems"] = 100
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"issues"},
		"properties":           map[string]any{"issues": issues},
	}
}

type compiledSchema struct {
	schema *jsonschema.Schema
}

func compileIssueSchema() (*compiledSchema, error) {
	b, err := json.Marshal(issueListSchema(true))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("issues.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("issues.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &compiledSchema{schema: schema}, nil
}

type modelIssue struct {
	Category      string `json:"category"`
	Severity      string `json:"severity"`
	OriginalText  string `json:"original_text"`
	Suggestion    string `json:"suggestion"`
	SuggestedText string `json:"suggested_text"`
}

// decode validates raw model output and converts it to typed entries.
func (s *compiledSchema) decode(raw map[string]any) ([]modelIssue, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal model output: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("unmarshal model output: %w", err)
	}
	if err := s.schema.Validate(v); err != nil {
		return nil, fmt.Errorf("model output does not match schema: %w", err)
	}
	var out struct {
		Issues []modelIssue `json:"issues"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode model issues: %w", err)
	}
	for i := range out.Issues {
		out.Issues[i].Category = strings.TrimSpace(out.Issues[i].Category)
	}
	return out.Issues, nil
}
