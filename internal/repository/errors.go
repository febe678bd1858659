package repository

import (
	"errors"
	"fmt"

	"todohabit/pkg/util"
)

// Re-exported so callers of this package need not import pkg/util.
var (
	ErrNotFound         = util.ErrNotFound
	ErrPermissionDenied = util.ErrPermissionDenied
)

// wrapStoreError attaches the matching sentinel to a driver error while keeping
// the original in the chain.
func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch kind, _ := util.ClassifyStoreError(err); kind {
	case util.KindPermission:
		return fmt.Errorf("%s: %w: %w", op, ErrPermissionDenied, err)
	case util.KindNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
