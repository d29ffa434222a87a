package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// validateInputSchema checks the hire input against the agent's published
// JSON schema. Missing required fields become an IncompleteInputError naming
// them; any other violation is reported as-is so the caller can fix the
// input before a job (and a payment) is committed.
func validateInputSchema(input map[string]any, schema json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewGoLoader(input),
	)
	if err != nil {
		// An unusable schema is the agent's defect, not the caller's; the
		// non-empty check already passed, so let the hire proceed.
		return nil
	}
	if result.Valid() {
		return nil
	}

	var missing []string
	var other []string
	for _, desc := range result.Errors() {
		if desc.Type() == "required" {
			if prop, ok := desc.Details()["property"].(string); ok {
				missing = append(missing, prop)
				continue
			}
		}
		other = append(other, desc.String())
	}
	if len(missing) > 0 {
		return &IncompleteInputError{Missing: missing}
	}
	return fmt.Errorf("input data does not match the agent's input schema: %s", strings.Join(other, "; "))
}
