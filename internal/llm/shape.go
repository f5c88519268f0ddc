package llm

import (
	"bytes"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Shape is a response contract: a named JSON Schema every structured reply is checked against.
type Shape struct {
	name      string
	raw       []byte
	schema    *jsonschema.Schema
	normalize func(doc any) (any, []string)
}

// NewShape compiles a JSON Schema given as a Go map
func NewShape(name string, schema map[string]any) (*Shape, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, goerr.Wrap(err, "marshal schema", goerr.V("shape", name))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name+".json", bytes.NewReader(b)); err != nil {
		return nil, goerr.Wrap(err, "add schema", goerr.V("shape", name))
	}
	compiled, err := compiler.Compile(name + ".json")
	if err != nil {
		return nil, goerr.Wrap(err, "compile schema", goerr.V("shape", name))
	}

	return &Shape{name: name, raw: b, schema: compiled}, nil
}

// MustShape is NewShape for package-level schemas known to be valid
func MustShape(name string, schema map[string]any) *Shape {
	s, err := NewShape(name, schema)
	if err != nil {
		panic(err)
	}
	return s
}

// WithNormalizer returns a copy of the shape that applies fn when strict
// validation fails, then validates again. fn reports what it changed.
func (s *Shape) WithNormalizer(fn func(doc any) (any, []string)) *Shape {
	cp := *s
	cp.normalize = fn
	return &cp
}

// Name returns the shape name
func (s *Shape) Name() string {
	return s.name
}

// Instruction is the text appended to the system prompt for this shape
func (s *Shape) Instruction() string {
	return "Respond with a single JSON object and nothing else. It must validate against this JSON Schema:\n" + string(s.raw)
}

// Validation is the outcome of checking a reply against a shape
type Validation struct {
	JSON     []byte   // Canonical JSON document
	Adjusted []string // Fields changed by the normalizer, if it ran
}

// Validate extracts the JSON document from a raw reply and checks it.
// The returned error is always a *MalformedResponseError.
func (s *Shape) Validate(raw string) (*Validation, error) {
	text, ok := ExtractJSON(raw)
	if !ok {
		return nil, s.malformed(raw, goerr.New("no JSON object in reply"))
	}

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, s.malformed(raw, goerr.Wrap(err, "invalid JSON"))
	}

	strictErr := s.schema.Validate(doc)
	if strictErr == nil {
		return &Validation{JSON: []byte(text)}, nil
	}
	if s.normalize == nil {
		return nil, s.malformed(raw, strictErr)
	}

	fixed, changed := s.normalize(doc)
	if err := s.schema.Validate(fixed); err != nil {
		return nil, s.malformed(raw, err)
	}

	b, err := json.Marshal(fixed)
	if err != nil {
		return nil, s.malformed(raw, err)
	}
	return &Validation{JSON: b, Adjusted: changed}, nil
}

func (s *Shape) malformed(raw string, err error) error {
	return &MalformedResponseError{Shape: s.name, Raw: raw, Err: err}
}
