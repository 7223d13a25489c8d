package syntax

import "github.com/roach88/desflat/internal/ir"

// SyntaxError reports malformed input with its source position.
type SyntaxError struct {
	Pos     ir.Pos
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Pos.IsValid() || e.Pos.File != "" {
		return e.Pos.String() + ": syntax error: " + e.Message
	}
	return "syntax error: " + e.Message
}
