package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "mem://golemcraft/protocol/"

// inboundSchemas maps each client -> server message type to its schema file.
var inboundSchemas = map[string]string{
	TypeHello:         "hello.schema.json",
	TypePlaceSeal:     "place_seal.schema.json",
	TypeRemoveSeal:    "remove_seal.schema.json",
	TypeConfigureSeal: "configure_seal.schema.json",
	TypeSpawnGolem:    "spawn_golem.schema.json",
	TypeRemoveGolem:   "remove_golem.schema.json",
	TypeSetBlock:      "set_block.schema.json",
	TypeSpawnItem:     "spawn_item.schema.json",
	TypeSpawnCreature: "spawn_creature.schema.json",
	TypeStock:         "stock.schema.json",
	TypeQuery:         "query.schema.json",
}

// Validator checks inbound control messages against the embedded JSON schemas.
// It is safe for concurrent use.
type Validator struct {
	byType map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	ents, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		b, err := fs.ReadFile(schemaFS, "schemas/"+e.Name())
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+e.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
	}

	v := &Validator{byType: map[string]*jsonschema.Schema{}}
	for typ, name := range inboundSchemas {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.byType[typ] = s
	}
	return v, nil
}

// ValidationError is returned for messages that parse but do not match their
// schema (or have no schema at all).
type ValidationError struct {
	Type   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s message: %s", e.Type, e.Reason)
}

// Validate decodes the routing header of raw and checks the whole message
// against the schema for its type.
func (v *Validator) Validate(raw []byte) (BaseMessage, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return base, err
	}
	s, ok := v.byType[base.Type]
	if !ok {
		return base, &ValidationError{Type: base.Type, Reason: "unknown message type"}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return base, err
	}
	if err := s.Validate(doc); err != nil {
		return base, &ValidationError{Type: base.Type, Reason: err.Error()}
	}
	return base, nil
}
