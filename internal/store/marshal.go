package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/desflat/internal/ir"
)

// marshalStats converts Stats to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so identical runs store identical rows.
func marshalStats(st Stats) (string, error) {
	data, err := ir.MarshalCanonical(map[string]any{
		"clauses":   st.Clauses,
		"events":    st.Events,
		"groups":    st.Groups,
		"instances": st.Instances,
	})
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	return string(data), nil
}

// unmarshalStats parses JSON TEXT to Stats.
func unmarshalStats(data string) (Stats, error) {
	var st Stats
	if data == "" || data == "{}" {
		return st, nil
	}
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return Stats{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	return st, nil
}
