package cpuctl

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by this package matches exactly one
// of them with errors.Is.
var (
	ErrDiscovery         = errors.New("cpu control hierarchy unavailable")
	ErrAttributeNotFound = errors.New("attribute not found")
	ErrAttributeRead     = errors.New("attribute read failed")
	ErrAttributeWrite    = errors.New("attribute write failed")
	ErrProtectedCore     = errors.New("core cannot be disabled")
	ErrLastCore          = errors.New("cannot disable the last online core")
	ErrUnsupported       = errors.New("operation not supported by this core")
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrUnknownGovernor   = errors.New("governor not available")
	ErrNoSibling         = errors.New("no hyperthread sibling")
)

// CoreError describes a failed operation on a single core.
// Kind is one of the sentinel errors above, Err is the underlying cause (may be nil).
type CoreError struct {
	Op   string
	CPU  int
	Attr Attribute
	Kind error
	Err  error
}

func (e *CoreError) Error() string {
	msg := fmt.Sprintf("%s cpu%d", e.Op, e.CPU)
	if e.Attr != attrNone {
		msg += " " + e.Attr.String()
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause, so errors.Is works for
// ErrLastCore as well as for fs.ErrPermission.
func (e *CoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func coreErr(op string, cpu int, attr Attribute, kind, err error) error {
	return &CoreError{Op: op, CPU: cpu, Attr: attr, Kind: kind, Err: err}
}

// reclassify keeps the core and attribute of an accessor error but replaces
// its kind, so callers see e.g. ErrUnsupported instead of ErrAttributeNotFound.
func reclassify(op string, kind error, err error) error {
	var ce *CoreError
	if errors.As(err, &ce) {
		return &CoreError{Op: op, CPU: ce.CPU, Attr: ce.Attr, Kind: kind, Err: ce.Err}
	}
	return fmt.Errorf("%s: %w: %v", op, kind, err)
}
