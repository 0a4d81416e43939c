// The errors package provides additional error primitives, used mainly to
// collect the warnings produced while decoding a container.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

func New(text string) error {
	return errors.New(text)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Errors is a list of errors.
type Errors []error

// Error formats the list with one message per line, after a line giving
// the number of errors. Lines of each message are indented with a tab.
func (errs Errors) Error() string {
	switch len(errs) {
	case 0:
		return "no errors"
	case 1:
		return errs[0].Error()
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "%d errors:", len(errs))
	for _, err := range errs {
		buf.WriteString("\n\t")
		buf.WriteString(strings.ReplaceAll(err.Error(), "\n", "\n\t"))
	}
	return buf.String()
}

// Unwrap returns the errors of the list, which lets Is and As match any of
// them.
func (errs Errors) Unwrap() []error {
	return errs
}

// Append returns errs with each err appended to it. Arguments that are nil are
// skipped.
func (errs Errors) Append(err ...error) Errors {
	for _, err := range err {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Return prepares errs to be returned by a function by returning nil if errs is
// empty.
func (errs Errors) Return() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Union combines errs into one Errors, flattening any that are themselves
// Errors and skipping nils. Returns nil if nothing remains.
func Union(errs ...error) error {
	var e Errors
	for _, err := range errs {
		if list, ok := err.(Errors); ok {
			e = e.Append(list...)
			continue
		}
		e = e.Append(err)
	}
	return e.Return()
}

// Collect returns the errors of type T held by err. If err is an Errors, each
// of its elements is considered; otherwise err itself is.
func Collect[T error](err error) []T {
	var list []T
	if errs, ok := err.(Errors); ok {
		for _, err := range errs {
			if v, ok := err.(T); ok {
				list = append(list, v)
			}
		}
		return list
	}
	if v, ok := err.(T); ok {
		list = append(list, v)
	}
	return list
}

// Count returns the number of errors held by err. An Errors counts each of
// its elements.
func Count(err error) int {
	if err == nil {
		return 0
	}
	if errs, ok := err.(Errors); ok {
		return len(errs)
	}
	return 1
}
