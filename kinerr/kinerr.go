// Package kinerr holds the error kinds shared by the skeleton, motion and bvh packages.
package kinerr

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrEmptyStore       = errors.New("motion store has no frames")
	ErrSampleOutOfRange = errors.New("sample time is beyond the last frame")
	ErrRootExists       = errors.New("skeleton root is already defined")
	ErrParentNotFound   = errors.New("parent joint not found")
	ErrDuplicateName    = errors.New("joint name already used in skeleton")
)

// FormatError is a grammar violation found while reading a motion file.
// Parsing never continues after one.
type FormatError struct {
	State    string
	Expected string
	Got      string
	Line     int
}

func (e *FormatError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("line %d: state %s: expected %s", e.Line, e.State, e.Expected)
	}
	return fmt.Sprintf("line %d: state %s: expected %s, got %q", e.Line, e.State, e.Expected, e.Got)
}

// CapacityError reports a rejected insertion into a bounded collection.
// The collection is left as it was.
type CapacityError struct {
	What  string
	Owner string
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s of %q exceeds limit %d", e.What, e.Owner, e.Limit)
}

type UnsupportedJointError struct {
	Joint  string
	Reason string
}

func (e *UnsupportedJointError) Error() string {
	return fmt.Sprintf("unsupported joint %q: %s", e.Joint, e.Reason)
}

// ConfigurationError is a pose-time misuse: a state vector of the wrong length
// or a registry that does not start with a translating root.
type ConfigurationError struct {
	Joint  string
	Index  int
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Joint == "" {
		return fmt.Sprintf("skeleton configuration: %s", e.Reason)
	}
	return fmt.Sprintf("skeleton configuration: joint %q (#%d): %s", e.Joint, e.Index, e.Reason)
}

func IsFormat(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

func IsCapacity(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}

func IsUnsupportedJoint(err error) bool {
	var ue *UnsupportedJointError
	return errors.As(err, &ue)
}

func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
