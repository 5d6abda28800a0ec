// Package schema validates incoming transaction requests against JSON
// Schemas before they reach the engine. Validation is fail-closed: a
// request kind without a registered schema is rejected.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind names a transaction request type on the wire.
type Kind string

const (
	KindInvestInSyndicate  Kind = "InvestInSyndicate"
	KindUnderwritePolicies Kind = "UnderwritePolicies"
	KindIssueNewPolicy     Kind = "IssueNewPolicy"
	KindSubmitClaim        Kind = "SubmitClaim"
	KindSettleClaim        Kind = "SettleClaim"
)

const investInSyndicateSchema = `{
  "type": "object",
  "required": ["investor", "syndicate", "investment_amount"],
  "additionalProperties": false,
  "properties": {
    "investor": {"type": "string", "minLength": 1},
    "syndicate": {"type": "string", "minLength": 1},
    "investment_amount": {"type": "integer", "minimum": 1}
  }
}`

const underwritePoliciesSchema = `{
  "type": "object",
  "required": ["syndicate", "agency", "underwriting_amount"],
  "additionalProperties": false,
  "properties": {
    "syndicate": {"type": "string", "minLength": 1},
    "agency": {"type": "string", "minLength": 1},
    "underwriting_amount": {"type": "integer", "minimum": 1}
  }
}`

const issueNewPolicySchema = `{
  "type": "object",
  "required": ["policy_id", "policy_holder_id", "product_id", "start_date", "end_date", "covered_city", "latitude", "longitude"],
  "additionalProperties": false,
  "properties": {
    "policy_id": {"type": "string", "minLength": 1},
    "policy_holder_id": {"type": "string", "minLength": 1},
    "product_id": {"type": "string", "minLength": 1},
    "start_date": {"type": "string", "minLength": 1},
    "end_date": {"type": "string", "minLength": 1},
    "covered_city": {"type": "string", "minLength": 1},
    "latitude": {"type": "number", "minimum": -90, "maximum": 90},
    "longitude": {"type": "number", "minimum": -180, "maximum": 180}
  }
}`

const submitClaimSchema = `{
  "type": "object",
  "required": ["policy_id", "rain_last_24_hours"],
  "additionalProperties": false,
  "properties": {
    "policy_id": {"type": "string", "minLength": 1},
    "rain_last_24_hours": {"type": "number", "minimum": 0},
    "clouds_last_24_hours": {"type": "number", "minimum": 0},
    "high_temp_last_24_hours": {"type": "number"},
    "high_wave_last_24_hours": {"type": "number", "minimum": 0}
  }
}`

const settleClaimSchema = `{
  "type": "object",
  "required": ["policy_id", "claim_id", "settlement_payment_id", "policy_underwriter_id", "policy_holder_id"],
  "additionalProperties": false,
  "properties": {
    "policy_id": {"type": "string", "minLength": 1},
    "claim_id": {"type": "string", "minLength": 1},
    "settlement_payment_id": {"type": "string", "minLength": 1},
    "policy_underwriter_id": {"type": "string", "minLength": 1},
    "policy_holder_id": {"type": "string", "minLength": 1}
  }
}`

// Validator holds the compiled request schemas.
type Validator struct {
	schemas map[Kind]*jsonschema.Schema
}

// NewValidator compiles the built-in request schemas.
func NewValidator() (*Validator, error) {
	sources := map[Kind]string{
		KindInvestInSyndicate:  investInSyndicateSchema,
		KindUnderwritePolicies: underwritePoliciesSchema,
		KindIssueNewPolicy:     issueNewPolicySchema,
		KindSubmitClaim:        submitClaimSchema,
		KindSettleClaim:        settleClaimSchema,
	}

	v := &Validator{schemas: make(map[Kind]*jsonschema.Schema, len(sources))}
	for kind, src := range sources {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://stormsure.schemas.local/txn/%s.schema.json", kind)
		if err := c.AddResource(url, strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("loading %s schema: %w", kind, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compiling %s schema: %w", kind, err)
		}
		v.schemas[kind] = compiled
	}
	return v, nil
}

// Validate checks a raw request body against the schema for its kind.
func (v *Validator) Validate(kind Kind, raw []byte) error {
	schema, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("no schema registered for request kind %q", kind)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("request body is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%s request rejected: %w", kind, err)
	}
	return nil
}

// Decode validates a raw request body and unmarshals it into out.
func (v *Validator) Decode(kind Kind, raw []byte, out any) error {
	if err := v.Validate(kind, raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
