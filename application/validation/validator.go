// Package validation checks inbound JSON payloads against the JSON Schema
// of their wire type and then against the struct's validation tags.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/reglet-broker/application/schema"
	"github.com/reglet-dev/reglet-broker/domain/entities"
	brokerErrors "github.com/reglet-dev/reglet-broker/domain/errors"
	"github.com/reglet-dev/reglet-broker/domain/ports"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var _ ports.RequestValidator = (*Validator)(nil)

// Validator validates payloads of registered wire types.
type Validator struct {
	compiler *jsonschema.Compiler
	structs  *validator.Validate
	schemas  map[string]*jsonschema.Schema
	mu       sync.RWMutex
}

// NewValidator creates a validator with every wire type registered.
func NewValidator() (*Validator, error) {
	v := &Validator{
		compiler: jsonschema.NewCompiler(),
		structs:  entities.NewValidator(),
		schemas:  make(map[string]*jsonschema.Schema),
	}
	for _, name := range schema.WireTypeNames() {
		if err := v.Register(name, schema.WireTypes()[name]); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Register compiles the schema reflected from prototype under name.
func (v *Validator) Register(name string, prototype any) error {
	raw, err := schema.GenerateSchema(prototype)
	if err != nil {
		return &brokerErrors.SchemaError{Type: name, Err: err}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.schemas[name]; exists {
		return &brokerErrors.SchemaError{Type: name, Err: errors.New("already registered")}
	}
	url := name + ".json"
	if err := v.compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return &brokerErrors.SchemaError{Type: name, Err: fmt.Errorf("failed to add schema resource: %w", err)}
	}
	sch, err := v.compiler.Compile(url)
	if err != nil {
		return &brokerErrors.SchemaError{Type: name, Err: fmt.Errorf("invalid schema: %w", err)}
	}
	v.schemas[name] = sch
	return nil
}

// Validate checks raw against the schema registered as target.
func (v *Validator) Validate(target string, raw []byte) (*entities.ValidationResult, error) {
	v.mu.RLock()
	sch, ok := v.schemas[target]
	v.mu.RUnlock()
	if !ok {
		return nil, &brokerErrors.SchemaError{Type: target, Err: errors.New("no schema registered")}
	}

	result := &entities.ValidationResult{Valid: true}

	var obj interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, entities.ValidationError{Message: fmt.Sprintf("malformed JSON: %v", err)})
		return result, nil
	}

	if err := sch.Validate(obj); err != nil {
		result.Valid = false
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			result.Errors = append(result.Errors, leaves(ve)...)
		} else {
			result.Errors = append(result.Errors, entities.ValidationError{Message: err.Error()})
		}
	}
	return result, nil
}

// Decode implements ports.RequestValidator.
// Failures are returned as *errors.ValidationError.
func (v *Validator) Decode(target string, raw []byte, out any) error {
	result, err := v.Validate(target, raw)
	if err != nil {
		return err
	}
	if !result.Valid {
		return &brokerErrors.ValidationError{Target: target, Issues: result.Errors}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &brokerErrors.ValidationError{Target: target, Err: err}
	}

	if err := v.structs.Struct(out); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			issues := make([]entities.ValidationError, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				issues = append(issues, entities.ValidationError{
					Field:   fe.Namespace(),
					Message: fmt.Sprintf("failed on '%s' rule", fe.Tag()),
				})
			}
			return &brokerErrors.ValidationError{Target: target, Issues: issues, Err: err}
		}
		return &brokerErrors.ValidationError{Target: target, Err: err}
	}
	return nil
}

// Decoder returns a decode function bound to target, suitable for rpc.WithDecoder.
func (v *Validator) Decoder(target string) func(raw []byte, out any) error {
	return func(raw []byte, out any) error {
		return v.Decode(target, raw, out)
	}
}

// leaves flattens a schema error tree into its most specific causes.
func leaves(ve *jsonschema.ValidationError) []entities.ValidationError {
	if len(ve.Causes) == 0 {
		return []entities.ValidationError{{Field: ve.InstanceLocation, Message: ve.Message}}
	}
	var out []entities.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}
