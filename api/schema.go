package api

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	schemaCreateExpense = "create-expense"
	schemaExpenseID     = "expense-id"
)

// RequestValidator checks request bodies against the embedded JSON schemas.
// Schemas only pin the shape of a request; business rules live in handlers.
type RequestValidator struct {
	schemas map[string]*gojsonschema.Schema
}

// ValidationError lists every schema violation of one document.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Details, "; ")
}

func NewRequestValidator() (*RequestValidator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	v := &RequestValidator{schemas: map[string]*gojsonschema.Schema{}}
	for _, e := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		v.schemas[strings.TrimSuffix(e.Name(), ".json")] = s
	}
	return v, nil
}

// Validate returns *ValidationError when doc does not satisfy schema name.
func (v *RequestValidator) Validate(name string, doc []byte) error {
	s, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &ValidationError{Details: []string{err.Error()}}
	}
	if res.Valid() {
		return nil
	}
	details := make([]string, 0, len(res.Errors()))
	for _, d := range res.Errors() {
		details = append(details, d.String())
	}
	return &ValidationError{Details: details}
}
