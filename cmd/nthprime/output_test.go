package main

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArg(t *testing.T) {
	v, err := parseArg("n", "1_000_000")
	require.NoError(t, err)
	assert.Equal(t, "1000000", v.String())

	_, err = parseArg("n", "1e6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `n="1e6"`)
}

func TestPrinterGrouping(t *testing.T) {
	var buf bytes.Buffer
	newPrinter(&buf, "always").value(big.NewInt(104729))
	assert.Equal(t, "104,729\n", buf.String())

	buf.Reset()
	newPrinter(&buf, "auto").value(big.NewInt(104729))
	assert.Equal(t, "104729\n", buf.String())
}

func TestPrinterVerdict(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, "never")
	p.verdict(big.NewInt(561), false, true)
	p.verdict(big.NewInt(7919), true, true)
	p.verdict(big.NewInt(7919), true, false)
	assert.Equal(t, "561 composite\n7919 prime\n7919 probable prime\n", buf.String())
}

func TestBoundCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"bound", "6", "--pretty", "never"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil); pretty = "auto" })
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "upper\t16\n")
	assert.Contains(t, buf.String(), "rosser\t")
}

func TestNthCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"1000", "--pretty", "never"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil); pretty = "auto" })
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "7919\n", buf.String())
}
