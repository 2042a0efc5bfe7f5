package httpapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	schemaTranslate   = "translate.schema.json"
	schemaQuest       = "quest.schema.json"
	schemaSurfaceNode = "surface_node.schema.json"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		names := []string{schemaTranslate, schemaQuest, schemaSurfaceNode}
		for _, name := range names {
			raw, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", name, err)
				return
			}
		}

		out := make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			schema, err := compiler.Compile(name)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			out[name] = schema
		}
		compiled = out
	})
	return compiled, compileErr
}

// payloadError carries per-field messages keyed by JSON pointer.
type payloadError struct {
	fields map[string]string
}

func (e *payloadError) Error() string {
	return fmt.Sprintf("payload has %d invalid fields", len(e.fields))
}

// decodePayload validates raw against the named schema and then decodes it into out.
func decodePayload(schemaName string, raw []byte, out any) error {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return &payloadError{fields: map[string]string{"/": err.Error()}}
	}

	schemas, err := loadSchemas()
	if err != nil {
		return err
	}
	schema, ok := schemas[schemaName]
	if !ok {
		return fmt.Errorf("schema %s is not registered", schemaName)
	}

	if err := schema.Validate(value); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			fields := map[string]string{}
			collectLeafErrors(validationErr, fields)
			return &payloadError{fields: fields}
		}
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &payloadError{fields: map[string]string{"/": err.Error()}}
	}
	return nil
}

func collectLeafErrors(err *jsonschema.ValidationError, fields map[string]string) {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		fields[location] = err.Message
		return
	}
	for _, cause := range err.Causes {
		collectLeafErrors(cause, fields)
	}
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}
