package labels

import (
	"fmt"
	"strings"
)

// APIIdentity names a candidate API across the whole pipeline.
// It is comparable and is used directly as a map key.
type APIIdentity struct {
	Package   string `json:"package"`
	Class     string `json:"class"`
	Method    string `json:"method"`
	Signature string `json:"signature"`
}

func (id APIIdentity) String() string {
	return fmt.Sprintf("%s.%s#%s [%s]", id.Package, id.Class, id.Method, id.Signature)
}

// Less orders identities lexicographically by package, class, method and signature.
func (id APIIdentity) Less(other APIIdentity) bool {
	return id.Compare(other) < 0
}

func (id APIIdentity) Compare(other APIIdentity) int {
	if c := strings.Compare(id.Package, other.Package); c != 0 {
		return c
	}
	if c := strings.Compare(id.Class, other.Class); c != 0 {
		return c
	}
	if c := strings.Compare(id.Method, other.Method); c != 0 {
		return c
	}
	return strings.Compare(id.Signature, other.Signature)
}

// MethodKey drops the signature. Function-parameter labels are keyed this way.
func (id APIIdentity) MethodKey() APIIdentity {
	return APIIdentity{Package: id.Package, Class: id.Class, Method: id.Method}
}

// Complete reports whether all four identity fields are non-empty.
func (id APIIdentity) Complete() bool {
	return id.Package != "" && id.Class != "" && id.Method != "" && id.Signature != ""
}
