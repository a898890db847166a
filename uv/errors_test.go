package uv

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestOpError(t *testing.T) {
	err := opError("bind", bindErrKind(unix.EADDRINUSE), os.NewSyscallError("bind", unix.EADDRINUSE))
	assert.ErrorIs(t, err, ErrAddress)
	assert.ErrorIs(t, err, unix.EADDRINUSE)
	assert.NotErrorIs(t, err, ErrResource)
	assert.Equal(t, "uv: bind: uv: address unavailable: bind: address already in use", err.Error())

	var opErr *OpError
	assert.True(t, errors.As(err, &opErr))
	assert.Equal(t, "bind", opErr.Op)

	assert.Equal(t, "uv: run: uv: invalid state", opError("run", ErrInvalidState, nil).Error())
}

func TestErrKinds(t *testing.T) {
	assert.Equal(t, ErrResource, bindErrKind(unix.EMFILE))
	assert.Equal(t, ErrResource, bindErrKind(os.NewSyscallError("socket", unix.ENFILE)))
	assert.Equal(t, ErrAddress, bindErrKind(unix.EACCES))
	assert.Equal(t, ErrResource, acceptErrKind(unix.EMFILE))
	assert.Nil(t, acceptErrKind(unix.EPROTO))
}
