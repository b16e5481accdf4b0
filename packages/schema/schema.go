// Package schema validates captured response bodies against JSON
// Schema documents.
package schema

import (
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/quiverhq/quiver/packages/store"
)

// ValidationError reports a body that failed schema validation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Problems, "; "))
}

// ValidateResponse checks the response body against the schema
// document. It returns a *ValidationError when the body is valid JSON
// but violates the schema, and a plain error when either side cannot
// be loaded.
func ValidateResponse(resp *store.Response, schemaDoc []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(schemaDoc)
	documentLoader := gojsonschema.NewBytesLoader(resp.Body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &ValidationError{Problems: problems}
}

// ValidateResponseFile loads the schema from disk and validates.
func ValidateResponseFile(resp *store.Response, path string) error {
	doc, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", path, err)
	}
	return ValidateResponse(resp, doc)
}
