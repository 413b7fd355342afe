package perr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	e := Config("tcp-source", "bind failed")
	require.Equal(t, "config[tcp-source]: bind failed", e.Error())

	wrapped := Wrap(KindIO, "sink-9002", "write failed", errors.New("broken pipe"))
	require.Equal(t, "io[sink-9002]: write failed: broken pipe", wrapped.Error())
}

func TestKindOfAndIs(t *testing.T) {
	e := Format("json-codec", "invalid utf-8")
	require.Equal(t, KindFormat, KindOf(e))
	require.True(t, Is(e, KindFormat))
	require.False(t, Is(e, KindIO))

	plain := errors.New("boom")
	require.Equal(t, KindLogic, KindOf(plain))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("eof")
	e := Wrap(KindIO, "t", "read failed", cause)
	require.ErrorIs(t, e, cause)
}
