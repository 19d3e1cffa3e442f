// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package errutil

import "github.com/samber/oops"

// statusKey is the oops context key carrying the HTTP-equivalent status.
const statusKey = "status"

// Code returns the stable machine code of an error, or "" when the error
// carries none.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Code()
	}
	return ""
}

// Status returns the HTTP-equivalent status of an error. Errors without an
// explicit status report 500.
func Status(err error) int {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 500
	}
	if status, ok := oopsErr.Context()[statusKey].(int); ok {
		return status
	}
	return 500
}
