package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fmueller/speechbridge/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"speechbridge\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 1 arg(s), received 0")))
	require.True(t, shouldPrintUsageHint(errors.New(`invalid argument "soon" for "--timeout" flag`)))
	require.False(t, shouldPrintUsageHint(errors.New("transcription failed: Transcription timed out")))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "speechbridge", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "speechbridge", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "speechbridge", helpHintTarget(nil, nil))
	require.Equal(t, "speechbridge transcribe", helpHintTarget(root, []string{"transcribe"}))
	require.Equal(t, "speechbridge stream", helpHintTarget(root, []string{"stream", "--realtime"}))
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, exitFailure, exitCode(errors.New("transcription failed: boom")))
	require.Equal(t, exitUsage, exitCode(errors.New("unknown flag: --oops")))
	require.Equal(t, exitInterrupted, exitCode(fmt.Errorf("stream: %w", context.Canceled)))
}
