package usecase

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	PayloadCompany        = "company"
	PayloadCorrespondence = "correspondence"
)

// PayloadValidator checks request documents against the embedded JSON
// schemas before they are decoded into domain inputs.
type PayloadValidator struct {
	schemas map[string]*santhosh.Schema
}

func NewPayloadValidator() (*PayloadValidator, error) {
	v := &PayloadValidator{schemas: make(map[string]*santhosh.Schema)}
	for _, name := range []string{PayloadCompany, PayloadCorrespondence} {
		raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("read %s schema: %w", name, err)
		}
		compiled, err := compileSchema(name+".json", raw)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", name, err)
		}
		v.schemas[name] = compiled
	}
	return v, nil
}

// Validate returns a *domain.ValidationError naming field when data does not
// match the schema registered under kind.
func (v *PayloadValidator) Validate(kind, field string, data []byte) error {
	sch, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("no schema registered for %q", kind)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.NewValidationError(field, "body must be valid json")
	}
	if err := sch.Validate(doc); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return domain.NewValidationError(field, strings.Join(collectValidationErrors(ve), "; "))
		}
		return domain.NewValidationError(field, err.Error())
	}
	return nil
}

func compileSchema(name string, schemaJSON []byte) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource(name, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		msgs = append(msgs, loc+": "+ve.Message)
	}
	return msgs
}
