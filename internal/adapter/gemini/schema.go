package gemini

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed response_schema.json
var responseSchemaJSON []byte

const responseSchemaURL = "response_schema.json"

var (
	responseSchemaOnce sync.Once
	responseSchema     *jsonschema.Schema
	responseSchemaErr  error
)

func compiledResponseSchema() (*jsonschema.Schema, error) {
	responseSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(responseSchemaURL, bytes.NewReader(responseSchemaJSON)); err != nil {
			responseSchemaErr = err
			return
		}
		responseSchema, responseSchemaErr = c.Compile(responseSchemaURL)
	})
	return responseSchema, responseSchemaErr
}

// validateResponse checks the shape of a raw response body before it is
// decoded into typed structs.
func validateResponse(raw []byte) error {
	sch, err := compiledResponseSchema()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return sch.Validate(doc)
}
