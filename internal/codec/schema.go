package codec

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/payload.v1.json
var payloadSchemaV1 []byte

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(payloadSchemaV1))
})

// PayloadSchema returns the JSON Schema describing version 1 payloads.
func PayloadSchema() []byte {
	return append([]byte(nil), payloadSchemaV1...)
}

// validateShape checks data against the closed payload schema.
func validateShape(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("failed to load payload schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return newBoundaryError(Malformed, "", "payload could not be validated", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	first := result.Errors()[0]
	return newBoundaryError(Malformed, schemaPath(first.Field()), strings.Join(violations, "; "), nil)
}

// schemaPath turns gojsonschema's "flags.0.rules.1" into "flags[0].rules[1]".
func schemaPath(field string) string {
	if field == "" || field == "(root)" {
		return ""
	}
	parts := strings.Split(field, ".")
	var b strings.Builder
	for i, p := range parts {
		if isIndex(p) {
			b.WriteString("[" + p + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(p)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
