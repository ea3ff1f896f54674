package confirm

import "strings"

// Method is the kind of proof an attempt carries.
type Method string

const (
	MethodCode      Method = "code"
	MethodSignature Method = "signature"
)

func (m Method) String() string { return string(m) }

// Attempt is exactly one proof method. The set is closed: only CodeAttempt and
// SignatureAttempt implement it.
type Attempt interface {
	Method() Method
	sealed()
}

// CodeAttempt is a short alphanumeric code typed by the driver.
type CodeAttempt struct {
	Value string
}

func (CodeAttempt) Method() Method { return MethodCode }
func (CodeAttempt) sealed()        {}

// Normalized is the value as compared: trimmed and uppercased.
func (a CodeAttempt) Normalized() string {
	return strings.ToUpper(strings.TrimSpace(a.Value))
}

// SignatureAttempt is an opaque captured signature (vector path or raster data URL).
type SignatureAttempt struct {
	Payload string
}

func (SignatureAttempt) Method() Method { return MethodSignature }
func (SignatureAttempt) sealed()        {}
