// Package qberr defines the three error kinds spec.md §7 distinguishes:
// usage (programmer mistakes), reversibility (an operator would lose
// information) and numerical (underflow, zero-norm, zero-probability
// events). The engine packages wrap their errors against one of these
// sentinels with github.com/pkg/errors so callers can classify a failure
// with errors.Is while still getting a stack trace via "%+v"; the errors
// smint and branch return themselves are plain pkg/errors values that
// wrap no sentinel.
package qberr

import "github.com/pkg/errors"

// Sentinel error kinds. Wrap call-site detail against these with Usagef /
// Irreversiblef / Numericalf below.
var (
	Usage        = errors.New("qbranch: usage error")
	Irreversible = errors.New("qbranch: reversibility error")
	Numerical    = errors.New("qbranch: numerical error")
)

// Usagef wraps a formatted message against Usage.
func Usagef(format string, args ...interface{}) error {
	return errors.Wrapf(Usage, format, args...)
}

// Irreversiblef wraps a formatted message against Irreversible.
func Irreversiblef(format string, args ...interface{}) error {
	return errors.Wrapf(Irreversible, format, args...)
}

// Numericalf wraps a formatted message against Numerical.
func Numericalf(format string, args ...interface{}) error {
	return errors.Wrapf(Numerical, format, args...)
}
