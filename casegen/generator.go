package casegen

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/inovex/illuminatio-go/host"
	"github.com/inovex/illuminatio-go/rule"
)

// ErrNoPortAvailable is returned when every port is already in the
// exclusion set passed to a random-port pick (spec §9, originally
// `rand_port`'s "all possible port numbers are exempt" case).
var ErrNoPortAvailable = errors.New("illuminatio: no port available outside the exclusion set")

// RandPort picks a port in [0, 65535] not present in except. Injected
// so tests can make negative-case port selection deterministic.
type RandPort func(except map[string]bool) (string, error)

// DefaultRandPort is the production RandPort: uniform choice over the
// full port space minus except, matching the original's `rand_port`.
func DefaultRandPort(except map[string]bool) (string, error) {
	const maxPort = 65535
	if len(except) > maxPort {
		return "", ErrNoPortAvailable
	}
	for {
		candidate := rand.Intn(maxPort + 1) //nolint:gosec
		s := portToString(candidate)
		if !except[s] {
			return s, nil
		}
	}
}

// Generate synthesizes the full case list for a rule set against a
// live namespace catalog (spec §4.2).
func Generate(rules []rule.Rule, catalog Catalog, randPort RandPort) ([]Case, error) {
	if randPort == nil {
		randPort = DefaultRandPort
	}

	var isolated []host.Host
	isolatedSeen := map[string]bool{}
	var others []host.Host
	othersSeen := map[string]bool{}

	var outgoingPositives, incomingPositives []Case

	for _, r := range rules {
		affected := r.Concerns()
		if !isolatedSeen[hostKey(affected)] {
			isolatedSeen[hostKey(affected)] = true
			isolated = append(isolated, affected)
		}

		for _, conn := range r.Allowed {
			if !othersSeen[hostKey(conn.Target)] {
				othersSeen[hostKey(conn.Target)] = true
				others = append(others, conn.Target)
			}
			for _, p := range conn.Ports {
				portStr := portSpecString(p)
				switch conn.Direction {
				case rule.Outgoing:
					outgoingPositives = append(outgoingPositives, Case{From: affected, To: conn.Target, Port: portStr, ShouldConnect: true})
				case rule.Incoming:
					incomingPositives = append(incomingPositives, Case{From: conn.Target, To: affected, Port: portStr, ShouldConnect: true})
				}
			}
		}
	}

	candidates := append(append([]host.Host{}, isolated...), others...)

	negatives, err := generateNegatives(isolated, incomingPositives, candidates, catalog, randPort)
	if err != nil {
		return nil, err
	}

	cases := make([]Case, 0, len(outgoingPositives)+len(negatives)+len(incomingPositives))
	cases = append(cases, outgoingPositives...)
	cases = append(cases, negatives...)
	cases = append(cases, incomingPositives...)
	return cases, nil
}

func generateNegatives(isolated []host.Host, incomingPositives []Case, candidates []host.Host, catalog Catalog, randPort RandPort) ([]Case, error) {
	var negatives []Case

	for _, h := range isolated {
		overlapSet := overlappingHosts(h, candidates, catalog)

		senders, portsPerSender := reachingSenders(h, incomingPositives, overlapSet)

		if len(senders) == 0 {
			negatives = append(negatives, Case{From: h, To: h, Port: "*", ShouldConnect: false})
			continue
		}

		universal := host.GenericCluster(host.Labels{}, host.Labels{})
		if idx := indexOfHost(senders, universal); idx >= 0 {
			ports := portsPerSender[hostKey(universal)]
			if containsWildcard(ports) {
				continue
			}
			p, err := randPort(toSet(ports))
			if err != nil {
				return nil, err
			}
			negatives = append(negatives, Case{From: universal, To: h, Port: p, ShouldConnect: false})
			continue
		}

		seenTargets := map[string]bool{}
		for _, a := range senders {
			inverted, err := Invert(a)
			if err != nil {
				return nil, err
			}
			for _, i := range inverted {
				if len(overlappingHosts(i, senders, catalog)) > 1 {
					continue
				}
				if seenTargets[hostKey(i)] {
					continue
				}
				seenTargets[hostKey(i)] = true

				ports := portsPerSender[hostKey(a)]
				p := "*"
				if len(ports) > 0 {
					p = ports[0]
				}
				negatives = append(negatives, Case{From: i, To: h, Port: p, ShouldConnect: false})
			}
		}
	}

	return negatives, nil
}

// overlappingHosts returns {h} plus every host in candidates that
// overlaps h by namespace and pod-label selector (spec §4.2 step 3a).
func overlappingHosts(h host.Host, candidates []host.Host, catalog Catalog) []host.Host {
	out := []host.Host{h}
	hKey := hostKey(h)
	for _, c := range candidates {
		if hostKey(c) == hKey {
			continue
		}
		if namespacesOverlap(h, c, catalog) && host.Overlap(podLabelsOf(h), podLabelsOf(c)) {
			out = append(out, c)
		}
	}
	return out
}

func reachingSenders(target host.Host, incomingPositives []Case, overlapSet []host.Host) ([]host.Host, map[string][]string) {
	overlapKeys := map[string]bool{}
	for _, h := range overlapSet {
		overlapKeys[hostKey(h)] = true
	}

	var senders []host.Host
	seen := map[string]bool{}
	portsPerSender := map[string][]string{}

	for _, c := range incomingPositives {
		if !overlapKeys[hostKey(c.To)] {
			continue
		}
		k := hostKey(c.From)
		if !seen[k] {
			seen[k] = true
			senders = append(senders, c.From)
		}
		portsPerSender[k] = append(portsPerSender[k], c.Port)
	}

	return senders, portsPerSender
}

func namespacesOverlap(a, b host.Host, catalog Catalog) bool {
	aNames := resolveNamespaceNames(a, catalog)
	bNames := resolveNamespaceNames(b, catalog)
	if len(aNames) > 0 && len(bNames) > 0 {
		return namesIntersect(aNames, bNames)
	}

	aLabels, aOK := namespaceLabelsOf(a, catalog)
	bLabels, bOK := namespaceLabelsOf(b, catalog)
	if aOK && bOK {
		return host.Overlap(aLabels, bLabels)
	}
	return false
}

func resolveNamespaceNames(h host.Host, catalog Catalog) []string {
	switch h.Kind {
	case host.KindCluster, host.KindConcreteCluster:
		return []string{h.Namespace}
	case host.KindGenericCluster:
		return catalog.NamesMatchingLabels(h.NamespaceLabels)
	default:
		return nil
	}
}

func namespaceLabelsOf(h host.Host, catalog Catalog) (host.Labels, bool) {
	switch h.Kind {
	case host.KindGenericCluster:
		return h.NamespaceLabels, true
	case host.KindCluster, host.KindConcreteCluster:
		return catalog.LabelsOf(h.Namespace)
	default:
		return nil, false
	}
}

func podLabelsOf(h host.Host) host.Labels {
	return h.PodLabels
}

func namesIntersect(a, b []string) bool {
	set := map[string]bool{}
	for _, n := range a {
		set[n] = true
	}
	for _, n := range b {
		if set[n] {
			return true
		}
	}
	return false
}

func indexOfHost(hosts []host.Host, target host.Host) int {
	tk := hostKey(target)
	for i, h := range hosts {
		if hostKey(h) == tk {
			return i
		}
	}
	return -1
}

func containsWildcard(ports []string) bool {
	for _, p := range ports {
		if p == "*" {
			return true
		}
	}
	return false
}

func toSet(ports []string) map[string]bool {
	set := make(map[string]bool, len(ports))
	for _, p := range ports {
		set[p] = true
	}
	return set
}

func portSpecString(p rule.PortSpec) string {
	if p.Wildcard {
		return "*"
	}
	return p.Port
}

func portToString(p int) string {
	return host.PortString(p, false)
}

// hostKey is an equality proxy for Host values restricted to the kinds
// this package ever produces (ClusterHost/GenericClusterHost): their
// identifiers are unambiguous once tagged with Kind, unlike raw map
// comparison which Go forbids on Host directly.
func hostKey(h host.Host) string {
	return string(rune('0'+h.Kind)) + "|" + h.ToIdentifier()
}
