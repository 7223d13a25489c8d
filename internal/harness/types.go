package harness

import "github.com/roach88/desflat/internal/ir"

// Error codes reported for failures that do not come from elaboration.
const (
	CodeSyntaxError = "SYNTAX_ERROR"
	CodePartition   = "PARTITION"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the expect clause and all assertions match.
	Pass bool `json:"pass"`

	// Output is the flattened text. Empty when elaboration failed.
	Output string `json:"output,omitempty"`

	// Digest is the content-addressed identity of the flattened network.
	Digest string `json:"digest,omitempty"`

	// ErrorCode and ErrorMessage describe the elaboration failure, if any.
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Network is the flattened network assertions run against.
	Network *ir.Network `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Failed reports whether elaboration was rejected.
func (r *Result) Failed() bool {
	return r.ErrorCode != ""
}
