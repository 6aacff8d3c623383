package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexBytes(t *testing.T) {
	got, err := parseHexBytes([]string{"90", "0x40", "7f"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x40, 0x7F}, got)

	_, err = parseHexBytes([]string{"zz"})
	assert.Error(t, err)

	_, err = parseHexBytes([]string{"100"})
	assert.Error(t, err, "values above 0xFF are rejected")
}

func TestListLoopback(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--transport", "loopback", "list"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Loopback A")
	assert.Contains(t, out.String(), "Loopback B")
	assert.Contains(t, out.String(), "loopback")
}

func TestSendLoopback(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--transport", "loopback", "send", "-p", "0", "90", "40", "64"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "90 40 64")
}

func TestUnknownTransportRejected(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--transport", "jack", "list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}
