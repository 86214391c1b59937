package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGreppableOutputExtractsPortsAndStates(t *testing.T) {
	output := "# Nmap scan\n" +
		"Host: 10.0.0.5 ()\tPorts: 80/open/tcp//http///, 443/filtered/tcp//https///\n" +
		"# Done\n"

	results, err := parseGreppableOutput(output)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, portScanResult{Port: "80", State: "open"}, results[0])
	assert.Equal(t, portScanResult{Port: "443", State: "filtered"}, results[1])
}

func TestParseGreppableOutputIgnoresNonHostLines(t *testing.T) {
	results, err := parseGreppableOutput("# Nmap done at...\n")
	require.NoError(t, err)
	assert.Empty(t, results)
}
