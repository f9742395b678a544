package candidates

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/scan-io-git/taint-io/internal/labels"
	taintioErrors "github.com/scan-io-git/taint-io/pkg/shared/errors"
)

// Fact is one observed API usage site extracted by the analysis engine.
type Fact struct {
	Package        string
	Class          string
	Func           string
	Signature      string
	Location       string
	CallStr        string
	ReturnType     string
	ParameterTypes []string
	IsStatic       bool
	Doc            string
}

func (f Fact) Identity() labels.APIIdentity {
	return labels.APIIdentity{Package: f.Package, Class: f.Class, Method: f.Func, Signature: f.Signature}
}

// IsConstructor reports whether the usage site is an object creation.
func (f Fact) IsConstructor() bool {
	return strings.HasPrefix(f.CallStr, "new ")
}

const (
	colPackage        = "package"
	colClass          = "clazz"
	colFunc           = "func"
	colSignature      = "full_signature"
	colLocation       = "location"
	colCallStr        = "callstr"
	colReturnType     = "return_type"
	colParameterTypes = "parameter_types"
	colIsStatic       = "is_static"
	colDoc            = "doc"
)

// ReadFacts decodes a fact table with a header row. Columns are matched by name,
// so tables without optional columns (doc, callstr) decode fine.
func ReadFacts(r io.Reader) ([]Fact, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fact header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))] = i
	}
	for _, required := range []string{colPackage, colClass, colFunc, colSignature} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("fact table has no %q column", required)
		}
	}

	var facts []Fact
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read fact row %d: %w", line, err)
		}
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		facts = append(facts, Fact{
			Package:        get(colPackage),
			Class:          get(colClass),
			Func:           get(colFunc),
			Signature:      get(colSignature),
			Location:       get(colLocation),
			CallStr:        get(colCallStr),
			ReturnType:     get(colReturnType),
			ParameterTypes: splitParameterTypes(get(colParameterTypes)),
			IsStatic:       parseBool(get(colIsStatic)),
			Doc:            get(colDoc),
		})
	}
	return facts, nil
}

// LoadFacts reads the fact table produced for stage. A missing table is a MissingInputError.
func LoadFacts(stage, path string) ([]Fact, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, taintioErrors.NewMissingInputError(stage, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open fact table %q: %w", path, err)
	}
	defer file.Close()

	facts, err := ReadFacts(file)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return facts, nil
}

func splitParameterTypes(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ";")
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
