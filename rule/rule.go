// Package rule translates declared k8s NetworkPolicy objects into the
// direction-tagged allowance lists consumed by the case generator
// (spec §4.1, component C2).
package rule

import "github.com/inovex/illuminatio-go/host"

// Direction is the direction of a Connection.
type Direction int

const (
	// Incoming is a connection allowed into the concerned workload.
	Incoming Direction = iota
	// Outgoing is a connection allowed out of the concerned workload.
	Outgoing
)

// PortSpec is either a concrete (numeric or named) port or the "*"
// wildcard.
type PortSpec struct {
	Wildcard bool
	Port     string // named or numeric, verbatim from the policy; numeric resolution happens downstream
}

// AllPorts is the wildcard PortSpec.
var AllPorts = PortSpec{Wildcard: true}

// Connection is one allowance extracted from a policy entry.
type Connection struct {
	Direction Direction
	Target    host.Host
	Ports     []PortSpec
}

// Rule is the translated form of one declared policy (spec §3).
type Rule struct {
	Namespace string
	PodLabels host.Labels
	Allowed   []Connection
}

// Concerns returns the ClusterHost designating the workloads this rule
// governs (the "affected" host, spec glossary).
func (r Rule) Concerns() host.Host {
	return host.Cluster(r.Namespace, r.PodLabels)
}

// IsDefaultDeny reports whether r carries no allowances at all — the
// empty-allowed-list default-deny case from spec §3.
func (r Rule) IsDefaultDeny() bool {
	return len(r.Allowed) == 0
}
