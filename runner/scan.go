package runner

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const nmapBinary = "nmap"

// portScanResult is one scanned port's classification.
type portScanResult struct {
	Port  string
	State string // nmap state: "open", "closed", "filtered", ...
}

// scanPorts runs nmap against target for the given absolute (sign-
// stripped) ports, with `-n -Pn -p <comma-separated ports>` (spec §4.5
// step 4c), parsing nmap's greppable output format. Grounded on the
// teacher's exec.Command + combined-output idiom (npm/ipsm/ipsm.go's
// Run), adapted to a scan rather than a mutation command.
func scanPorts(ctx context.Context, target string, absPorts []string) ([]portScanResult, error) {
	portArg := strings.Join(absPorts, ",")
	cmd := exec.CommandContext(ctx, nmapBinary, "-n", "-Pn", "-p", portArg, "-oG", "-", target)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "running nmap against %s: %s", target, stderr.String())
	}

	results, err := parseGreppableOutput(stdout.String())
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.Errorf("nmap reported no hosts for target %s", target)
	}
	return results, nil
}

// parseGreppableOutput extracts the "Ports:" field from nmap's -oG
// output, a line of the form:
//
//	Host: 10.0.0.1 ()	Ports: 80/open/tcp//http///, 443/filtered/tcp//https///
func parseGreppableOutput(output string) ([]portScanResult, error) {
	var results []portScanResult
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "Host:") {
			continue
		}
		idx := strings.Index(line, "Ports:")
		if idx < 0 {
			continue
		}
		portsField := line[idx+len("Ports:"):]
		for _, entry := range strings.Split(portsField, ",") {
			fields := strings.Split(strings.TrimSpace(entry), "/")
			if len(fields) < 2 {
				continue
			}
			port := strings.TrimSpace(fields[0])
			state := strings.TrimSpace(fields[1])
			if port == "" {
				continue
			}
			if _, err := strconv.Atoi(port); err != nil {
				continue
			}
			results = append(results, portScanResult{Port: port, State: state})
		}
	}
	return results, nil
}
