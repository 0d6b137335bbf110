// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package blunder

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestValues(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(int(unix.EPERM), NotPermError.Value())
	assert.Equal(int(unix.ENOENT), NotFoundError.Value())
	assert.Equal(int(unix.ENAMETOOLONG), NameTooLongError.Value())
	assert.Equal(InvalidArgError, BadConfigError)
	assert.Equal(1000, CorruptInodeError.Value())
}

func TestDefaultErrno(t *testing.T) {
	var err error

	assert := assert.New(t)

	assert.Equal(successErrno, Errno(err))
	assert.True(IsSuccess(err))
	assert.Equal("", ErrorString(err))

	err = fmt.Errorf("plain error")
	assert.Equal(failureErrno, Errno(err))
	assert.False(IsSuccess(err))
	assert.Equal("plain error", ErrorString(err))
}

func TestNewError(t *testing.T) {
	assert := assert.New(t)

	err := NewError(NotFoundError, "name %q not found", "readme.txt")
	assert.Equal(int(unix.ENOENT), Errno(err))
	assert.True(Is(err, NotFoundError))
	assert.True(IsNot(err, NotDirError))
	assert.Equal(`name "readme.txt" not found`, err.Error())
	assert.True(strings.HasSuffix(ErrorString(err), fmt.Sprintf("Error Value: %v", int(unix.ENOENT))))

	file, line := Location(err)
	assert.True(strings.HasSuffix(file, "api_test.go"))
	assert.NotEqual(0, line)
	assert.NotEmpty(Details(err))
}

func TestAddError(t *testing.T) {
	assert := assert.New(t)

	err := AddError(nil, IOError)
	assert.NotNil(err)
	assert.True(Is(err, IOError))

	err = AddError(fmt.Errorf("directory busy"), DevBusyError)
	assert.True(Is(err, DevBusyError))

	// Replacing the errno is permitted
	err = AddError(err, TryAgainError)
	assert.True(Is(err, TryAgainError))
	assert.False(Is(err, DevBusyError))
}
