package cabinet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/cabinet/i18n"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeUnknownField          = "unknown_field"
	CodeAlreadyConstrained    = "already_constrained"
	CodeResolutionCycle       = "resolution_cycle"
	CodeConstruction          = "construction_failed"
	CodeUnknownType           = "unknown_type"
	CodeInvalidDefinition     = "invalid_definition"
	CodeParseError            = "parse_error"
	CodeDependencyUnavailable = "dependency_unavailable"
	CodeBindMismatch          = "bind_mismatch"
	CodeDuplicateKey          = "duplicate_key"
	CodeMutationFailed        = "mutation_failed"
)

// Sentinel errors matched by errors.Is against any Issue carrying the same code.
var (
	ErrUnknownField          = errors.New("cabinet: unknown field")
	ErrAlreadyConstrained    = errors.New("cabinet: container already constrained")
	ErrResolutionCycle       = errors.New("cabinet: resolution cycle")
	ErrConstruction          = errors.New("cabinet: construction failed")
	ErrUnknownType           = errors.New("cabinet: unknown record type")
	ErrInvalidDefinition     = errors.New("cabinet: invalid type definition")
	ErrParse                 = errors.New("cabinet: parse error")
	ErrDependencyUnavailable = errors.New("cabinet: dependency unavailable")
	ErrBindMismatch          = errors.New("cabinet: value does not fit bound field")
	ErrDuplicateKey          = errors.New("cabinet: duplicate key")
	ErrMutation              = errors.New("cabinet: mutation failed")
)

var sentinelByCode = map[string]error{
	CodeUnknownField:          ErrUnknownField,
	CodeAlreadyConstrained:    ErrAlreadyConstrained,
	CodeResolutionCycle:       ErrResolutionCycle,
	CodeConstruction:          ErrConstruction,
	CodeUnknownType:           ErrUnknownType,
	CodeInvalidDefinition:     ErrInvalidDefinition,
	CodeParseError:            ErrParse,
	CodeDependencyUnavailable: ErrDependencyUnavailable,
	CodeBindMismatch:          ErrBindMismatch,
	CodeDuplicateKey:          ErrDuplicateKey,
	CodeMutationFailed:        ErrMutation,
}

// Issue represents a single construction or schema failure.
type Issue struct {
	Path    string `json:"path"`           // Field path (for example: /booking/flights).
	Code    string `json:"code"`           // One of the codes listed above.
	Type    string `json:"type,omitempty"` // Record type involved, when known.
	Message string `json:"message"`
	Cause   error  `json:"-"` // Optional: underlying error.
}

// Error renders "code at path: message".
func (it Issue) Error() string {
	b := &strings.Builder{}
	b.WriteString(it.Code)
	if it.Path != "" {
		fmt.Fprintf(b, " at %s", it.Path)
	}
	if it.Type != "" {
		fmt.Fprintf(b, " (%s)", it.Type)
	}
	if it.Message != "" {
		b.WriteString(": ")
		b.WriteString(it.Message)
	}
	if it.Cause != nil {
		fmt.Fprintf(b, ": %v", it.Cause)
	}
	return b.String()
}

// Unwrap exposes the underlying cause.
func (it Issue) Unwrap() error { return it.Cause }

// Is reports whether target is the sentinel for this issue's code.
func (it Issue) Is(target error) bool {
	s, ok := sentinelByCode[it.Code]
	return ok && s == target
}

// Issues is a collection of failures that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Unwrap lets errors.Is/As see every contained issue.
func (iss Issues) Unwrap() []error {
	out := make([]error, len(iss))
	for i := range iss {
		out[i] = iss[i]
	}
	return out
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally. A lone
// Issue is returned as a one-element slice.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	var it Issue
	if errors.As(err, &it) {
		return Issues{it}, true
	}
	return nil, false
}

// newIssue builds an Issue whose message comes from the active translator.
func newIssue(code, path, typ string, cause error) Issue {
	return Issue{Path: path, Code: code, Type: typ, Message: i18n.T(code, nil), Cause: cause}
}
