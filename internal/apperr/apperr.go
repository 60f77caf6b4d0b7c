// Package apperr classifies the errors the grading core is allowed to
// surface: rejected input and broken internal contracts. Backend failures
// are recovered where they happen and never reach this package.
package apperr

import (
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// InvalidInput reports a submission rejected before grading.
func InvalidInput(field, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	details := errbuilder.ErrorMap{}
	details.Set(field, errors.New(msg))
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msg).
		WithDetails(errbuilder.NewErrDetails(details))
}

// ContractViolation reports an internal invariant break, such as a quality
// record missing a dimension or a non-finite score.
func ContractViolation(format string, args ...any) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf(format, args...))
}

// Wrap attaches a cause to a contract violation.
func Wrap(cause error, format string, args ...any) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf(format, args...)).
		WithCause(cause)
}

// IsInvalidInput reports whether err (or anything it wraps) is an input rejection.
func IsInvalidInput(err error) bool {
	eb := builderOf(err)
	return eb != nil && eb.ErrCode() == errbuilder.CodeInvalidArgument
}

// IsContractViolation reports whether err (or anything it wraps) is a contract break.
func IsContractViolation(err error) bool {
	eb := builderOf(err)
	return eb != nil && eb.ErrCode() == errbuilder.CodeInternal
}

func builderOf(err error) *errbuilder.ErrBuilder {
	var eb *errbuilder.ErrBuilder
	if errors.As(err, &eb) {
		return eb
	}
	return nil
}
