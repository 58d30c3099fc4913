package index

import "context"

// Releaser is implemented by indexes that hold external resources. The
// owner calls Release once the index has been replaced.
type Releaser interface {
	Release(ctx context.Context) error
}
