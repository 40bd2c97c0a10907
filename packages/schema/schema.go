// Package schema validates JSON response bodies against a JSON Schema
// referenced by a request's _schema key. Violations are reported as
// warnings on the outcome, never as request failures.
package schema

import (
	"fmt"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"
)

// Validate checks body against the schema file at schemaPath and returns
// one message per violation. An unreadable or invalid schema is an error;
// a failing body is not.
func Validate(schemaPath string, body []byte) ([]string, error) {
	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		return nil, err
	}

	schemaLoader := gojsonschema.NewReferenceLoader("file://" + filepath.ToSlash(abs))
	documentLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validating against %s: %w", schemaPath, err)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return violations, nil
}
