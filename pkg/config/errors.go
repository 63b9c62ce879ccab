package config

import "fmt"

// Error reports a configuration problem detected before the rig is touched
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
