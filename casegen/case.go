// Package casegen synthesizes positive and negative reachability
// assertions from translated rules (spec §4.2, component C3).
package casegen

import (
	"strings"

	"github.com/inovex/illuminatio-go/host"
)

// Case is a NetworkTestCase (spec §3): one reachability assertion.
type Case struct {
	From          host.Host
	To            host.Host
	Port          string // numeric or "*"
	ShouldConnect bool
}

// PortString renders the case's canonical port string: "<port>" for a
// positive expectation, "-<port>" for a negative one (spec §3, §6).
func (c Case) PortString() string {
	if c.ShouldConnect {
		return c.Port
	}
	return "-" + c.Port
}

// FromPortString parses a canonical port string back into its port and
// expectation flag.
func FromPortString(s string) (port string, shouldConnect bool) {
	if strings.HasPrefix(s, "-") {
		return s[1:], false
	}
	return s, true
}
