// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// requireErrorCode fails the test unless err carries the given code.
func requireErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, code)
}
