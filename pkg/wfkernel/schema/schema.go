// Package schema bridges the kernel's internal Go shapes and the JSON
// Schema Draft 2020-12 documents an external caller can use to validate
// against before ever talking to the kernel: invopop/jsonschema generates a
// schema from a Go type, santhosh-tekuri/jsonschema/v6 compiles and enforces
// one at runtime against untrusted input crossing the kernel boundary.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/interpreter"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

// GenerateErrorEnvelopeJSONSchema produces a JSON Schema document from
// kerrors.Envelope, the wire shape of every error response the kernel ever
// returns.
func GenerateErrorEnvelopeJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&kerrors.Envelope{})
	s.ID = "https://github.com/ormasoftchile/wfkernel/schemas/error-envelope-v1.json"
	s.Title = "Error Envelope"
	s.Description = "Schema for the {type:\"error\", code, message, ...} wire shape"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal error envelope schema: %w", err)
	}
	return data, nil
}

// GenerateWorkflowDefinitionJSONSchema produces a JSON Schema document from
// interpreter.WorkflowDefinition, the shape every workflow provider's
// resolved definition must compile into.
func GenerateWorkflowDefinitionJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&interpreter.WorkflowDefinition{})
	s.ID = "https://github.com/ormasoftchile/wfkernel/schemas/workflow-definition-v1.json"
	s.Title = "Workflow Definition"
	s.Description = "Schema for the compiled step/loop shape a workflow provider resolves a workflowId to"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal workflow definition schema: %w", err)
	}
	return data, nil
}

var (
	workflowSchemaOnce sync.Once
	workflowSchema     *sjsonschema.Schema
	workflowSchemaErr  error
)

func compiledWorkflowSchema() (*sjsonschema.Schema, error) {
	workflowSchemaOnce.Do(func() {
		raw, err := GenerateWorkflowDefinitionJSONSchema()
		if err != nil {
			workflowSchemaErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			workflowSchemaErr = fmt.Errorf("unmarshal workflow definition schema: %w", err)
			return
		}
		c := sjsonschema.NewCompiler()
		if err := c.AddResource("workflow-definition-v1.json", doc); err != nil {
			workflowSchemaErr = fmt.Errorf("add workflow definition schema resource: %w", err)
			return
		}
		sch, err := c.Compile("workflow-definition-v1.json")
		if err != nil {
			workflowSchemaErr = fmt.Errorf("compile workflow definition schema: %w", err)
			return
		}
		workflowSchema = sch
	})
	return workflowSchema, workflowSchemaErr
}

// ValidateWorkflowDefinition checks defMap — the raw map a workflow
// provider resolved — against the WorkflowDefinition JSON Schema before the
// orchestrator compiles it via interpreter.FromDefinitionMap. A workflow
// provider is an external boundary: its resolved document's shape is
// untrusted even though its content is trusted to decide run_conditions
// truthfully.
func ValidateWorkflowDefinition(defMap map[string]any) *kerrors.Error {
	sch, err := compiledWorkflowSchema()
	if err != nil {
		return kerrors.Newf(kerrors.CodeInternalError, "schema: compile workflow definition schema: %v", err)
	}
	if verr := sch.Validate(defMap); verr != nil {
		return kerrors.Newf(kerrors.CodePreconditionFailed, "schema: workflow definition is invalid: %s", describeValidationError(verr))
	}
	return nil
}

// contextSchemaDoc is the inbound context object's own schema: any JSON
// object, keys and values unconstrained beyond being JSON-representable.
var contextSchemaDoc = map[string]any{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type":    "object",
}

var (
	contextSchemaOnce sync.Once
	contextSchema     *sjsonschema.Schema
	contextSchemaErr  error
)

func compiledContextSchema() (*sjsonschema.Schema, error) {
	contextSchemaOnce.Do(func() {
		c := sjsonschema.NewCompiler()
		if err := c.AddResource("context-v1.json", contextSchemaDoc); err != nil {
			contextSchemaErr = fmt.Errorf("add context schema resource: %w", err)
			return
		}
		sch, err := c.Compile("context-v1.json")
		if err != nil {
			contextSchemaErr = fmt.Errorf("compile context schema: %w", err)
			return
		}
		contextSchema = sch
	})
	return contextSchema, contextSchemaErr
}

// ValidateContext checks an inbound context object's top-level shape before
// it reaches the orchestrator's canonical-encoding pass.
func ValidateContext(context map[string]any) *kerrors.Error {
	sch, err := compiledContextSchema()
	if err != nil {
		return kerrors.Newf(kerrors.CodeInternalError, "schema: compile context schema: %v", err)
	}
	var doc any = context
	if context == nil {
		doc = map[string]any{}
	}
	if verr := sch.Validate(doc); verr != nil {
		return kerrors.Validation(kerrors.ReasonContextInvalidShape, "schema: context is invalid: "+describeValidationError(verr))
	}
	return nil
}

// describeValidationError flattens a *sjsonschema.ValidationError's cause
// tree into a single human-readable line.
func describeValidationError(err error) string {
	ve, ok := err.(*sjsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var parts []string
	for _, leaf := range flattenValidationErrors(ve) {
		path := strings.Join(leaf.InstanceLocation, "/")
		if path == "" {
			path = "(root)"
		}
		parts = append(parts, fmt.Sprintf("%s: %v", path, leaf.ErrorKind))
	}
	return strings.Join(parts, "; ")
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
