package maincmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateWithNoArgsDispatchesToRepl(t *testing.T) {
	c := &Cmd{}
	c.SetArgs(nil)
	require.NoError(t, c.Validate())
	require.NotNil(t, c.cmdFn)
}

func TestValidateWithOnePathDispatchesToRun(t *testing.T) {
	c := &Cmd{}
	c.SetArgs([]string{"script.cu"})
	require.NoError(t, c.Validate())
	require.NotNil(t, c.cmdFn)
}

func TestValidateFlagsMultipleArgsForUsageMessage(t *testing.T) {
	c := &Cmd{}
	c.SetArgs([]string{"a.cu", "b.cu"})
	require.NoError(t, c.Validate())
	require.True(t, c.tooManyArgs)
	require.Nil(t, c.cmdFn)
}

func TestValidateSkipsDispatchForHelpAndVersion(t *testing.T) {
	c := &Cmd{Help: true}
	c.SetArgs([]string{"a.cu", "b.cu"})
	require.NoError(t, c.Validate())
	require.Nil(t, c.cmdFn)

	c = &Cmd{Version: true}
	c.SetArgs([]string{"a.cu", "b.cu"})
	require.NoError(t, c.Validate())
	require.Nil(t, c.cmdFn)
}
