package models

import "fmt"

// TaskException is the serializable wrapper a failed task's error is
// carried in. It crosses the cache and, conceptually, a process
// boundary, so it only exports plain string fields: the original
// error is kept for in-process callers but is never required for the
// exception to round-trip through a tier that serializes it.
type TaskException struct {
	Message  string
	TypeName string

	err error
}

// NewTaskException wraps err, capturing its dynamic type name so a
// caller that never sees the original Go value can still tell what
// kind of failure occurred.
func NewTaskException(err error) *TaskException {
	if err == nil {
		return nil
	}
	if te, ok := err.(*TaskException); ok {
		return te
	}
	return &TaskException{
		Message:  err.Error(),
		TypeName: fmt.Sprintf("%T", err),
		err:      err,
	}
}

// Error satisfies the error interface.
func (e *TaskException) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the original error when this exception was built
// in-process. When it arrived from the disk cache tier the original
// error value does not survive serialization, so a plain error
// carrying the same message is reconstructed instead.
func (e *TaskException) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.err != nil {
		return e.err
	}
	return fmt.Errorf("%s: %s", e.TypeName, e.Message)
}
