package deck

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"slidesmith-backend/internal/apperr"
)

const deckSchemaJSON = `{
  "type": "object",
  "required": ["title", "slides"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "summary": {"type": ["string", "null"]},
    "slides": {"type": "array", "items": {"type": "object"}}
  }
}`

// analysisSchemaJSON only pins the scalar types; questions and assumptions
// are coerced afterwards rather than rejected. A slide count may arrive as
// a numeric string.
const analysisSchemaJSON = `{
  "type": "object",
  "properties": {
    "hasUserContent": {"type": ["boolean", "null"]},
    "topic": {"type": ["string", "null"]},
    "userContent": {"type": ["string", "null"]},
    "numberOfSlides": {"type": ["number", "string", "null"], "pattern": "^\\s*-?[0-9]+(\\.[0-9]+)?\\s*$"},
    "audience": {"type": ["string", "null"]},
    "style": {"type": ["string", "null"]}
  }
}`

var (
	deckSchema     = mustSchema(deckSchemaJSON)
	analysisSchema = mustSchema(analysisSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return s
}

func validateShape(schema *gojsonschema.Schema, doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return apperr.NewInvalidJSONError(err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return apperr.NewInvalidShapeError(strings.Join(msgs, "; "))
}

// ValidateAnalysisShape checks the scalar field types of a raw analysis object.
func ValidateAnalysisShape(obj []byte) error {
	return validateShape(analysisSchema, obj)
}
