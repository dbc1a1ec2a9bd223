package cfgerr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeString(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{OK, "OK"},
		{NoServer, "NO_SERVER"},
		{NoWritableDatabase, "NO_WRITABLE_DATABASE"},
		{InShutdown, "IN_SHUTDOWN"},
		{Code(200), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.String())
		})
	}

	assert.True(t, InShutdown.Valid())
	assert.False(t, Code(13).Valid())
}

func TestError(t *testing.T) {
	t.Run("message", func(t *testing.T) {
		assert.EqualError(t, New(BadKey, "no slash"), "BAD_KEY: no slash")
		assert.EqualError(t, Newf(ParseError, "%q is not an integer", "x"), `PARSE_ERROR: "x" is not an integer`)
		assert.EqualError(t, New(InShutdown, ""), "IN_SHUTDOWN")
	})

	t.Run("wrap keeps cause", func(t *testing.T) {
		err := Wrap(NoServer, io.ErrUnexpectedEOF)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.Equal(t, NoServer, CodeOf(err))
		assert.Nil(t, Wrap(Failed, nil))
	})

	t.Run("is matches bare code", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", New(BadKey, "no slash"))
		assert.ErrorIs(t, err, New(BadKey, ""))
		assert.NotErrorIs(t, err, New(BadAddress, ""))
		assert.NotErrorIs(t, err, New(BadKey, "other message"))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, OK, CodeOf(nil))
	assert.Equal(t, Failed, CodeOf(errors.New("plain")))
	assert.Equal(t, TypeMismatch, CodeOf(fmt.Errorf("set: %w", New(TypeMismatch, "int expected"))))

	assert.True(t, HasCode(New(LockFailed, ""), LockFailed))
	assert.False(t, HasCode(nil, OK))
}
