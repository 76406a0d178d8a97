package window

import (
	"errors"
	"fmt"
)

var (
	errEmptyCoeffs      = errors.New("window coefficients must not be empty")
	errZeroCoherentGain = errors.New("window coherent gain is zero")
	errMismatchedLength = errors.New("samples and coefficients must have same length")

	// ErrUnknownWindow is returned by Parse for names it does not recognise.
	ErrUnknownWindow = errors.New("unknown window")
)

func unknownWindow(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownWindow, name)
}
