package session

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// sessionsSchema describes the durable document: a top-level mapping from
// user identifier to session object. Load-time validation catches a
// structurally wrong file before it is trusted as store state.
const sessionsSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["status", "history", "turns", "lastSeen"],
    "properties": {
      "status": {"type": "string", "enum": ["ACTIVE", "HANDOVER"]},
      "greeted": {"type": "boolean"},
      "lastIntent": {"type": "string"},
      "history": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["role", "content"],
          "properties": {
            "role": {"type": "string", "enum": ["user", "model"]},
            "content": {"type": "string"}
          }
        }
      },
      "tempData": {"type": "object", "additionalProperties": {"type": "string"}},
      "turns": {"type": "integer", "minimum": 0},
      "lastSeen": {"type": "string"},
      "isReturningUser": {"type": "boolean"}
    }
  }
}`

var compiledSessionsSchema *gojsonschema.Schema

func init() {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(sessionsSchema))
	if err != nil {
		panic(fmt.Sprintf("invalid sessions schema: %v", err))
	}
	compiledSessionsSchema = schema
}

// validateSessionsDocument checks raw file content against the document
// schema before unmarshaling.
func validateSessionsDocument(data []byte) error {
	result, err := compiledSessionsSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate session document: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("session document invalid: %s", errs[0])
		}
		return fmt.Errorf("session document invalid")
	}
	return nil
}
