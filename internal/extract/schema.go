package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxFieldValueLength bounds any single extracted field value.
const maxFieldValueLength = 512

// BuildFieldsSchema returns the JSON-Schema the parser response must
// satisfy: a non-empty object of bounded string values. Callers that
// know their document layout can pin required field names.
func BuildFieldsSchema(requiredFields []string) map[string]any {
	schema := map[string]any{
		"type":          "object",
		"minProperties": 1,
		"additionalProperties": map[string]any{
			"type":      "string",
			"maxLength": maxFieldValueLength,
		},
	}
	if len(requiredFields) > 0 {
		schema["required"] = requiredFields
	}
	return schema
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
