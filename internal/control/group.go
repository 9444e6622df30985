package control

import (
	"errors"
	"io"
)

// Group closes several surfaces as one controller handle.
type Group []io.Closer

// Close closes every member in reverse order and joins their errors.
func (g Group) Close() error {
	var errs []error
	for i := len(g) - 1; i >= 0; i-- {
		if err := g[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
