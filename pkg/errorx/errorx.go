// Package errorx attaches registered numeric codes to errors so the HTTP layer can
// render a stable {code, message} body with the right status.
package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Coder describes a registered error code.
type Coder interface {
	// Code is the numeric business code.
	Code() int
	// HTTPStatus is the status written for this code.
	HTTPStatus() int
	// String is the external (user-facing) message.
	String() string
	// Reference points at documentation, if any.
	Reference() string
}

// UnknownCode is used for errors that carry no registered code.
const UnknownCode = 1

type defaultCoder struct {
	code int
	http int
	msg  string
}

func (d defaultCoder) Code() int         { return d.code }
func (d defaultCoder) HTTPStatus() int   { return d.http }
func (d defaultCoder) String() string    { return d.msg }
func (d defaultCoder) Reference() string { return "" }

var unknownCoder Coder = defaultCoder{code: UnknownCode, http: http.StatusInternalServerError, msg: "An internal server error occurred"}

var (
	codes   = map[int]Coder{}
	codeMux sync.RWMutex
)

// Register adds or replaces a coder.
func Register(c Coder) {
	if c.Code() == UnknownCode {
		panic("code 1 is reserved for unknown errors")
	}
	codeMux.Lock()
	defer codeMux.Unlock()
	codes[c.Code()] = c
}

// MustRegister adds a coder and panics on duplicates.
func MustRegister(c Coder) {
	if c.Code() == UnknownCode {
		panic("code 1 is reserved for unknown errors")
	}
	codeMux.Lock()
	defer codeMux.Unlock()
	if _, ok := codes[c.Code()]; ok {
		panic(fmt.Sprintf("code %d already registered", c.Code()))
	}
	codes[c.Code()] = c
}

// withCode is an error with a registered code and an optional cause.
type withCode struct {
	code  int
	msg   string
	cause error
}

func (w *withCode) Error() string {
	if w.cause == nil {
		return w.msg
	}
	return w.msg + ": " + w.cause.Error()
}

func (w *withCode) Unwrap() error { return w.cause }

// WithCode creates a coded error with a formatted message.
func WithCode(code int, format string, args ...interface{}) error {
	return &withCode{code: code, msg: fmt.Sprintf(format, args...)}
}

// WrapC wraps err with a code and a formatted message. A nil err returns nil.
func WrapC(err error, code int, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &withCode{code: code, msg: fmt.Sprintf(format, args...), cause: err}
}

// ParseCoder returns the coder for the outermost coded error in err's chain.
func ParseCoder(err error) Coder {
	if err == nil {
		return nil
	}
	var wc *withCode
	if errors.As(err, &wc) {
		codeMux.RLock()
		defer codeMux.RUnlock()
		if c, ok := codes[wc.code]; ok {
			return c
		}
	}
	return unknownCoder
}

// IsCode reports whether any error in err's chain carries code.
func IsCode(err error, code int) bool {
	for err != nil {
		var wc *withCode
		if !errors.As(err, &wc) {
			return false
		}
		if wc.code == code {
			return true
		}
		err = wc.cause
	}
	return false
}
