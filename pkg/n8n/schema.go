package n8n

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const documentSchema = `{
  "type": "object",
  "required": ["nodes", "connections"],
  "properties": {
    "name": {"type": "string"},
    "active": {"type": "boolean"},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "type"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "typeVersion": {"type": "number"},
          "position": {"type": "array", "items": {"type": "number"}, "minItems": 2, "maxItems": 2},
          "parameters": {"type": "object"},
          "retryOnFail": {"type": "boolean"},
          "maxTries": {"type": "integer", "minimum": 1},
          "waitBetweenTries": {"type": "integer", "minimum": 0},
          "onError": {"type": "string"}
        }
      }
    },
    "connections": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "main": {
            "type": "array",
            "items": {
              "type": ["array", "null"],
              "items": {
                "type": "object",
                "required": ["node"],
                "properties": {
                  "node": {"type": "string"},
                  "type": {"type": "string"},
                  "index": {"type": "integer"}
                }
              }
            }
          }
        }
      }
    },
    "settings": {"type": "object"},
    "meta": {"type": ["object", "null"]}
  }
}`

var schema = mustSchema(documentSchema)

func mustSchema(source string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Errorf("invalid n8n document schema: %w", err))
	}

	return s
}

// checkStructure validates raw JSON against the document schema.
func checkStructure(data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &MalformedDocumentError{Err: err}
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return &MalformedDocumentError{Problems: problems}
}
