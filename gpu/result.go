package gpu

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Result is the outcome of an acquire, present or wait call, reduced to the
// cases the render loop distinguishes.
type Result int

const (
	Success Result = iota
	// Suboptimal work succeeded but the chain no longer matches the surface.
	Suboptimal
	// OutOfDate the chain can no longer present to the surface.
	OutOfDate
	SurfaceLost
	DeviceLost
	// Timeout a bounded wait expired.
	Timeout
	Unknown
)

func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case Suboptimal:
		return "Suboptimal"
	case OutOfDate:
		return "OutOfDate"
	case SurfaceLost:
		return "SurfaceLost"
	case DeviceLost:
		return "DeviceLost"
	case Timeout:
		return "Timeout"
	case Unknown:
		return "Unknown"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Sentinels marked onto backend errors with errors.Mark. Classify with
// errors.Is.
var (
	ErrOutOfDate   = errors.New("surface out of date")
	ErrSurfaceLost = errors.New("surface lost")
	ErrDeviceLost  = errors.New("device lost")
	ErrTimeout     = errors.New("wait timed out")
)

// ResultError returns the error for a failing result: the matching sentinel
// for known cases and a plain error otherwise. Success, Suboptimal and Timeout
// are not errors and return nil.
func ResultError(r Result) error {
	switch r {
	case Success, Suboptimal, Timeout:
		return nil
	case OutOfDate:
		return ErrOutOfDate
	case SurfaceLost:
		return ErrSurfaceLost
	case DeviceLost:
		return ErrDeviceLost
	}
	return errors.Newf("gpu call failed: %s", r)
}

// Classify returns the Result that err was marked with, or Unknown.
func Classify(err error) Result {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrOutOfDate):
		return OutOfDate
	case errors.Is(err, ErrSurfaceLost):
		return SurfaceLost
	case errors.Is(err, ErrDeviceLost):
		return DeviceLost
	case errors.Is(err, ErrTimeout):
		return Timeout
	}
	return Unknown
}

// IsRecoverable reports whether err can be handled by recreating the chain.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrOutOfDate)
}
