//go:build !linux

package cleanup

import "context"

type unsupportedLister struct{}

// NewSystemLister returns the Lister for the running platform. Only Linux
// can enumerate processes; elsewhere List returns ErrUnsupported.
func NewSystemLister() (Lister, error) {
	return unsupportedLister{}, nil
}

func (unsupportedLister) List(context.Context) ([]ProcessInfo, error) {
	return nil, ErrUnsupported
}

// isZombie cannot be determined without procfs; signal 0 is the only check.
func isZombie(int) bool { return false }
