package labels

import (
	"encoding/json"
	"fmt"
	"strings"

	taintioErrors "github.com/scan-io-git/taint-io/pkg/shared/errors"
)

// RawRecord is one decoded object from a model response before validation.
// Values keep whatever JSON type the model produced.
type RawRecord map[string]interface{}

// String returns the field as a string. Numbers and booleans are formatted,
// anything else yields "".
func (r RawRecord) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case float64, bool, json.Number:
		return fmt.Sprint(v)
	}
	return ""
}

// Strings returns the field as a list of strings. A bare string becomes a one-element list.
// The second result is false when the field is absent or null.
func (r RawRecord) Strings(key string) ([]string, bool) {
	switch v := r[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case float64, bool, json.Number:
				out = append(out, fmt.Sprint(s))
			}
		}
		return out, true
	case string:
		if v == "" {
			return []string{}, true
		}
		return []string{v}, true
	}
	return nil, false
}

// Identity extracts the identity fields. Values are trimmed.
func (r RawRecord) Identity() APIIdentity {
	return APIIdentity{
		Package:   strings.TrimSpace(r.String("package")),
		Class:     strings.TrimSpace(r.String("class")),
		Method:    strings.TrimSpace(r.String("method")),
		Signature: strings.TrimSpace(r.String("signature")),
	}
}

// Promote validates the raw record and turns it into a LabelRecord.
// defaultType is used when the record carries no type field, which is how
// function-parameter responses look.
func (r RawRecord) Promote(eco Ecosystem, defaultType LabelType) (LabelRecord, error) {
	rec := LabelRecord{Identity: r.Identity(), Type: defaultType}
	if t := r.String("type"); t != "" {
		rec.Type = ParseLabelType(strings.ToLower(strings.TrimSpace(t)))
	}
	if args, ok := r.Strings("sink_args"); ok {
		rec.SinkArgs = args
	}
	if inputs, ok := r.Strings("tainted_input"); ok {
		rec.TaintedInput = inputs
	}
	for k, v := range r {
		if knownFields[k] {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]json.RawMessage)
		}
		rec.Extra[k] = raw
	}

	if err := Validate(rec, eco); err != nil {
		return LabelRecord{}, err
	}
	return rec, nil
}

// Validate applies the structural checks every record must pass before it is bucketed or compiled.
func Validate(rec LabelRecord, eco Ecosystem) error {
	id := rec.Identity
	if strings.TrimSpace(id.Method) == "" {
		return taintioErrors.NewInvalidRecordError("empty method for %s", id)
	}
	if strings.TrimSpace(id.Signature) == "" {
		return taintioErrors.NewInvalidRecordError("empty signature for %s", id)
	}
	if rec.Type == Sink && len(strings.TrimSpace(id.Method)) < 3 && len(strings.TrimSpace(id.Signature)) < 5 {
		return taintioErrors.NewInvalidRecordError("sink %s is too short to be a real API", id)
	}
	if eco != CLike {
		if id.Package == "" {
			return taintioErrors.NewInvalidRecordError("empty package for %s", id)
		}
		if id.Class == "" {
			return taintioErrors.NewInvalidRecordError("empty class for %s", id)
		}
	}
	return nil
}
