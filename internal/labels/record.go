package labels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// LabelType is the classification assigned to an API.
type LabelType string

const (
	Source          LabelType = "source"
	Sink            LabelType = "sink"
	TaintPropagator LabelType = "taint-propagator"
	None            LabelType = "none"
)

// ParseLabelType normalizes a type string. Unknown or empty values map to None.
func ParseLabelType(s string) LabelType {
	switch LabelType(s) {
	case Source, Sink, TaintPropagator:
		return LabelType(s)
	}
	return None
}

// LabelRecord is a validated classification of one API.
type LabelRecord struct {
	Identity     APIIdentity
	Type         LabelType
	SinkArgs     []string
	TaintedInput []string
	// Extra keeps fields this tool does not interpret so they survive a cache rewrite.
	Extra map[string]json.RawMessage
}

var knownFields = map[string]bool{
	"package": true, "class": true, "method": true, "signature": true,
	"type": true, "sink_args": true, "tainted_input": true,
}

// WithType returns a copy of r carrying type t.
func (r LabelRecord) WithType(t LabelType) LabelRecord {
	r.Type = t
	return r
}

// MarshalJSON writes the record as a flat object with the extra fields inlined.
// Keys are emitted in sorted order.
func (r LabelRecord) MarshalJSON() ([]byte, error) {
	fields := make(map[string]interface{}, len(r.Extra)+7)
	for k, v := range r.Extra {
		fields[k] = v
	}
	fields["package"] = r.Identity.Package
	fields["class"] = r.Identity.Class
	fields["method"] = r.Identity.Method
	fields["signature"] = r.Identity.Signature
	if r.Type == "" {
		fields["type"] = None
	} else {
		fields["type"] = r.Type
	}
	if r.SinkArgs != nil {
		fields["sink_args"] = r.SinkArgs
	}
	if r.TaintedInput != nil {
		fields["tainted_input"] = r.TaintedInput
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(fields[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *LabelRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var rec LabelRecord
	strField := func(key string, dst *string) error {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" {
			return nil
		}
		return json.Unmarshal(raw, dst)
	}
	listField := func(key string, dst *[]string) error {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" {
			return nil
		}
		return json.Unmarshal(raw, dst)
	}

	var typ string
	for key, dst := range map[string]*string{
		"package":   &rec.Identity.Package,
		"class":     &rec.Identity.Class,
		"method":    &rec.Identity.Method,
		"signature": &rec.Identity.Signature,
		"type":      &typ,
	} {
		if err := strField(key, dst); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	if err := listField("sink_args", &rec.SinkArgs); err != nil {
		return fmt.Errorf("field %q: %w", "sink_args", err)
	}
	if err := listField("tainted_input", &rec.TaintedInput); err != nil {
		return fmt.Errorf("field %q: %w", "tainted_input", err)
	}
	rec.Type = ParseLabelType(typ)

	for k, v := range fields {
		if knownFields[k] {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]json.RawMessage)
		}
		rec.Extra[k] = v
	}

	*r = rec
	return nil
}

// SortRecords orders records by identity.
func SortRecords(records []LabelRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Identity.Less(records[j].Identity)
	})
}
