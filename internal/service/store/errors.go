package store

import (
	"fmt"
	"strings"

	"todohabit/internal/model"
	"todohabit/pkg/util"
)

// WriteError is returned by Write when the remote write failed. The fallback
// write has already happened by the time the caller sees it.
type WriteError struct {
	UserID string
	Fields []model.Field
	Kind   util.ErrorKind
	Err    error
}

func (e *WriteError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("remote write of %s for user %s failed (%s): %v", strings.Join(names, ","), e.UserID, e.Kind, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Permission reports whether the remote store denied access.
func (e *WriteError) Permission() bool { return e.Kind == util.KindPermission }
