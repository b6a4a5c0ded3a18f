// Copyright 2025 Keel DB
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kerr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

const (
	Ok uint16 = 0

	// Group 1: internal errors
	ErrInternal     uint16 = 20101
	ErrNYI          uint16 = 20102
	ErrOOM          uint16 = 20103
	ErrNotSupported uint16 = 20105

	// Group 2: invalid input
	ErrBadConfig    uint16 = 20300
	ErrInvalidInput uint16 = 20301

	// Group 3: unexpected state
	ErrInvalidState uint16 = 20400
)

// Error is a coded engine error. The code classifies the failure for
// callers; the message carries the detail. Stack traces and wrapping
// come from cockroachdb/errors.
type Error struct {
	code    uint16
	message string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func newError(code uint16, message string) error {
	return errors.WithStackDepth(&Error{code: code, message: message}, 2)
}

func NewInternal(msg string, args ...any) error {
	return newError(ErrInternal, "internal error: "+fmt.Sprintf(msg, args...))
}

func NewNYI(msg string, args ...any) error {
	return newError(ErrNYI, fmt.Sprintf(msg, args...)+" not yet implemented")
}

func NewOOM() error {
	return newError(ErrOOM, "out of memory")
}

func NewNotSupported(msg string, args ...any) error {
	return newError(ErrNotSupported, fmt.Sprintf(msg, args...)+" is not supported")
}

func NewBadConfig(msg string, args ...any) error {
	return newError(ErrBadConfig, "invalid configuration: "+fmt.Sprintf(msg, args...))
}

func NewInvalidInput(msg string, args ...any) error {
	return newError(ErrInvalidInput, "invalid input: "+fmt.Sprintf(msg, args...))
}

func NewInvalidState(msg string, args ...any) error {
	return newError(ErrInvalidState, "invalid state: "+fmt.Sprintf(msg, args...))
}

// GetCode returns the error code carried by err, or ErrInternal for
// errors that did not originate from this package.
func GetCode(err error) uint16 {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ErrInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code uint16) bool {
	if err == nil {
		return code == Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.code == code
	}
	return false
}
