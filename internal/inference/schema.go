package inference

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildDetectionsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We use it locally to validate detector responses before
// trusting them enough to persist.
func BuildDetectionsJSONSchema() map[string]any {
	detection := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"class":      map[string]any{"type": "string", "minLength": 1},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"bbox": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "number"},
				"minItems": 4,
				"maxItems": 4,
			},
		},
		"required": []string{"class", "confidence", "bbox"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties": map[string]any{
			"detections": map[string]any{
				"type":  "array",
				"items": detection,
			},
			"annotated_image": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"detections", "annotated_image"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
