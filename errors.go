package removalcache

import (
	"errors"
	"fmt"
)

// ErrScalar is matched by every *KeyError.
var ErrScalar = errors.New("removalcache: scalar operation failed")

// KeyError reports a failed raw scalar read or write. It carries the key only;
// the transport cause goes to Hooks.OpFailed.
type KeyError struct {
	Op  string
	Key string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("removalcache: %s %q failed", e.Op, e.Key)
}

func (e *KeyError) Is(target error) bool { return target == ErrScalar }

// TruncateError is one failure inside TruncateByPattern. Key is empty when
// enumerating the pattern itself failed.
type TruncateError struct {
	Pattern string
	Key     string
	Err     error
}

func (e *TruncateError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("removalcache: truncate %q: enumerate: %v", e.Pattern, e.Err)
	}
	return fmt.Sprintf("removalcache: truncate %q: delete %q: %v", e.Pattern, e.Key, e.Err)
}

func (e *TruncateError) Unwrap() error { return e.Err }
