package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibos-platform/action-kernel/pkg/admission"
)

func TestRunNoArgs(t *testing.T) {
	var out, errBuf bytes.Buffer
	assert.Equal(t, 2, Run([]string{"admission-check"}, &out, &errBuf))
	assert.Contains(t, errBuf.String(), "Usage")
}

func TestRunUnknownCommand(t *testing.T) {
	var out, errBuf bytes.Buffer
	assert.Equal(t, 2, Run([]string{"admission-check", "frobnicate"}, &out, &errBuf))
	assert.Contains(t, errBuf.String(), "Unknown command")
}

func TestRunHelp(t *testing.T) {
	var out, errBuf bytes.Buffer
	assert.Equal(t, 0, Run([]string{"admission-check", "help"}, &out, &errBuf))
	assert.Contains(t, out.String(), "check")
}

func TestCheckAdmitted(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := Run([]string{"admission-check", "check", "-memory",
		"-principal", "alice", "-tenant", "acme", "-engine", "ocr",
		"-action", "data.read", "-risk", "low", "-scopes", "perm:data.read",
	}, &out, &errBuf)
	require.Equal(t, 0, code, "stderr: %s", errBuf.String())

	var result admission.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.True(t, result.Admitted)
}

func TestCheckRejectedWithoutPermission(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := Run([]string{"admission-check", "check", "-memory",
		"-principal", "alice", "-tenant", "acme", "-engine", "ocr",
		"-action", "data.read", "-risk", "low",
	}, &out, &errBuf)
	require.Equal(t, 1, code)

	var result admission.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.NotNil(t, result.Rejection)
	assert.Equal(t, admission.StagePermission, result.Rejection.Stage)
}

func TestCheckMissingFlags(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := Run([]string{"admission-check", "check", "-memory", "-principal", "alice"}, &out, &errBuf)
	assert.Equal(t, 2, code)
}
