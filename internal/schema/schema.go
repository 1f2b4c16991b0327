// Package schema validates gateway request bodies against embedded JSON schemas.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/boristopalov/sciworld/pkg/core"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Schema names.
const (
	Load  = "load"
	Step  = "step"
	Frame = "frame"
)

var compiled = map[string]*jsonschema.Schema{}

func init() {
	for _, name := range []string{Load, Step, Frame} {
		file := "schemas/" + name + ".schema.json"
		raw, err := schemaFS.ReadFile(file)
		if err != nil {
			panic(err)
		}
		s, err := jsonschema.CompileString(file, string(raw))
		if err != nil {
			panic(err)
		}
		compiled[name] = s
	}
}

// Validate checks raw against the named schema. Failures wrap core.ErrBadRequest.
func Validate(name string, raw []byte) error {
	s, ok := compiled[name]
	if !ok {
		return goerr.New("unknown schema", goerr.Value("schema", name))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return goerr.Wrap(core.ErrBadRequest, "malformed JSON body: "+err.Error(), goerr.Value("schema", name))
	}
	if err := s.Validate(v); err != nil {
		return goerr.Wrap(core.ErrBadRequest, "request does not match schema: "+err.Error(),
			goerr.Value("schema", name))
	}
	return nil
}
