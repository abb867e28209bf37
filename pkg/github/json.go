package github

import (
	"encoding/json"
	"fmt"
)

// reencode converts an already-decoded JSON value into a typed structure.
func reencode(raw interface{}, dest interface{}) error {
	buf, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("reencode: %w", err)
	}
	if err := json.Unmarshal(buf, dest); err != nil {
		return fmt.Errorf("reencode: %w", err)
	}
	return nil
}
