package validator

// =============================================================================
// CONTRACT GUARD
// =============================================================================
//
// The CUE validator sits between the graph builder and everything that
// consumes the design document: the graph checks, the renderer, and
// rtl-export. A field that drifts out of contract would otherwise surface as
// rules that never fire or drawings with silently missing pieces.
//
// WHEN VALIDATION FAILS:
// 1. DON'T suppress the error or loosen the schema blindly
// 2. DO trace back: decoder bug? builder bug? exporter bug?
// 3. DO fix at the source
// =============================================================================

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed design_schema.cue
var designSchemaFS embed.FS

//go:embed findings_schema.cue
var findingsSchemaFS embed.FS

// Validator validates design documents against the embedded CUE schema.
// If the document doesn't match the contract, validation fails immediately
// with a clear error rather than letting consumers receive bad data.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New creates a Validator with the embedded design schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := designSchemaFS.ReadFile("design_schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded design schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling design schema: %w", schema.Err())
	}

	return &Validator{ctx: ctx, schema: schema}, nil
}

// Validate checks that the document conforms to the #Design contract.
func (v *Validator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling document to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON validates JSON bytes directly against the #Design contract.
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling document as CUE: %w", dataValue.Err())
	}

	designDef := v.schema.LookupPath(cue.ParsePath("#Design"))
	if designDef.Err() != nil {
		return fmt.Errorf("looking up #Design definition: %w", designDef.Err())
	}

	unified := designDef.Unify(dataValue)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("design contract violation: %w", err)
	}
	return nil
}

// ValidationErrors expands the full CUE error list for diagnostics.
func (v *Validator) ValidationErrors(data interface{}) []string {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}

	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return []string{fmt.Sprintf("compile error: %v", dataValue.Err())}
	}

	designDef := v.schema.LookupPath(cue.ParsePath("#Design"))
	if designDef.Err() != nil {
		return []string{fmt.Sprintf("schema lookup error: %v", designDef.Err())}
	}

	unified := designDef.Unify(dataValue)
	err = unified.Validate()
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// FindingsValidator validates graph-check reports against the findings
// schema before they are printed or serialized.
type FindingsValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewFindingsValidator creates a validator for graph-check reports.
func NewFindingsValidator() (*FindingsValidator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := findingsSchemaFS.ReadFile("findings_schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading findings schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling findings schema: %w", schema.Err())
	}

	return &FindingsValidator{ctx: ctx, schema: schema}, nil
}

// Validate checks that the report conforms to the #FindingsReport contract.
func (v *FindingsValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling report to JSON: %w", err)
	}

	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling report as CUE: %w", dataValue.Err())
	}

	reportDef := v.schema.LookupPath(cue.ParsePath("#FindingsReport"))
	if reportDef.Err() != nil {
		return fmt.Errorf("looking up #FindingsReport definition: %w", reportDef.Err())
	}

	unified := reportDef.Unify(dataValue)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("findings contract violation: %w", err)
	}
	return nil
}
