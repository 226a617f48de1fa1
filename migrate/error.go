package migrate

import "fmt"

// Error names the entity a migration or validation failed on. Partial
// progress made before the failure is not rolled back.
type Error struct {
	Database   string
	Collection string
	Attribute  string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }
