package codecheck

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsPlainPrograms(t *testing.T) {
	sources := []string{
		"print('hello')",
		"print(sum(map(int, input().split())))",
		"for i in range(10):\n    print(i * i)",
		"import math\nprint(math.sqrt(16))",
	}
	for _, source := range sources {
		assert.NoError(t, Validate(source), source)
	}
}

func TestValidateRejectsOversizedSource(t *testing.T) {
	err := Validate(strings.Repeat("a = 1\n", MaxSourceLen/6+1))
	require.Error(t, err)
	rejection, ok := AsRejection(err)
	require.True(t, ok)
	assert.Contains(t, rejection.Reason, "50000")
	assert.False(t, rejection.Syntax)
}

func TestValidateLengthCountsRunes(t *testing.T) {
	// Multibyte string literals weigh two bytes per rune here; the ceiling is
	// measured in characters, so this source must still pass.
	source := "s = '" + strings.Repeat("é", MaxSourceLen-100) + "'\n"
	assert.NoError(t, Validate(source))
}

func TestValidateRejectsEmptySource(t *testing.T) {
	for _, source := range []string{"", "   ", "\n\t\n"} {
		err := Validate(source)
		require.Error(t, err)
	}
}

func TestValidateRejectsDeniedCalls(t *testing.T) {
	cases := map[string]string{
		"open('/etc/passwd')":   "open",
		"eval('1+1')":           "eval",
		"exec('print(1)')":      "exec",
		"__import__('os')":      "__import__",
		"exit()":                "exit",
		"compile('x', 'f', 'exec')": "compile",
	}
	for source, name := range cases {
		err := Validate(source)
		require.Error(t, err, source)
		rejection, ok := AsRejection(err)
		require.True(t, ok)
		assert.Contains(t, rejection.Reason, name)
	}
}

func TestValidateRejectsDeniedImports(t *testing.T) {
	cases := map[string]string{
		"import os":                      "os",
		"import os.path":                 "os",
		"import subprocess as sp":        "subprocess",
		"from socket import socket":      "socket",
		"from urllib.request import urlopen": "urllib",
		"import pickle":                  "pickle",
	}
	for source, module := range cases {
		err := Validate(source)
		require.Error(t, err, source)
		rejection, ok := AsRejection(err)
		require.True(t, ok, source)
		assert.Contains(t, rejection.Reason, module, source)
	}
}

func TestValidateRejectsModuleAttributeCalls(t *testing.T) {
	err := Validate("os.system('ls')")
	require.Error(t, err)
	rejection, ok := AsRejection(err)
	require.True(t, ok)
	assert.Contains(t, rejection.Reason, "os")
}

func TestValidateFlagsSyntaxErrors(t *testing.T) {
	err := Validate("def broken(:\n    pass")
	require.Error(t, err)
	rejection, ok := AsRejection(err)
	require.True(t, ok)
	assert.True(t, rejection.Syntax)
	assert.Contains(t, rejection.Reason, "syntax error")
}
