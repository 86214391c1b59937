// Package host implements the tagged-union Host model (spec §3): the
// addressable endpoint abstraction shared by rule translation, case
// generation and orchestration.
package host

import (
	"sort"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
)

// Kind tags the variant a Host value holds.
type Kind int

const (
	// KindLocal is the runner's own network namespace.
	KindLocal Kind = iota
	// KindExternal is an address outside the managed cluster.
	KindExternal
	// KindConcreteCluster names one workload by namespace+name.
	KindConcreteCluster
	// KindCluster selects pods in one namespace by label.
	KindCluster
	// KindGenericCluster selects pods across namespaces by namespace
	// label and pod label.
	KindGenericCluster
)

// Labels is a plain string-keyed label selector (equality-only, per
// spec's explicit non-goal of set-membership expressions).
type Labels map[string]string

// Host is the tagged-union type from spec §3. Exactly the fields
// relevant to Kind are populated; callers must dispatch on Kind before
// reading variant-specific fields, matching Design Note §9's ban on
// runtime type tests.
type Host struct {
	Kind Kind

	// KindExternal
	Address string

	// KindConcreteCluster
	Namespace    string
	WorkloadName string

	// KindCluster / KindGenericCluster
	PodLabels Labels

	// KindGenericCluster
	NamespaceLabels Labels
}

// Local returns the LocalHost singleton value.
func Local() Host { return Host{Kind: KindLocal} }

// External constructs an ExternalHost.
func External(address string) Host { return Host{Kind: KindExternal, Address: address} }

// ConcreteCluster constructs a ConcreteClusterHost.
func ConcreteCluster(namespace, workloadName string) Host {
	return Host{Kind: KindConcreteCluster, Namespace: namespace, WorkloadName: workloadName}
}

// Cluster constructs a ClusterHost.
func Cluster(namespace string, podLabels Labels) Host {
	return Host{Kind: KindCluster, Namespace: namespace, PodLabels: podLabels}
}

// GenericCluster constructs a GenericClusterHost.
func GenericCluster(namespaceLabels, podLabels Labels) Host {
	return Host{Kind: KindGenericCluster, NamespaceLabels: namespaceLabels, PodLabels: podLabels}
}

// IsUniversal reports whether h is the GenericClusterHost({}, {}) that
// matches every pod in the cluster — the one host inversion refuses to
// invert (spec §4.3).
func (h Host) IsUniversal() bool {
	return h.Kind == KindGenericCluster && len(h.NamespaceLabels) == 0 && len(h.PodLabels) == 0
}

func sortedLabelString(l Labels) string {
	if len(l) == 0 {
		return "*"
	}
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, strings.TrimSpace(k)+"="+strings.TrimSpace(l[k]))
	}
	return strings.Join(parts, ",")
}

// ToIdentifier renders the compact textual identifier for h (spec §6
// identifier grammar). fromIdentifier(toIdentifier(h)) == h for every h.
func (h Host) ToIdentifier() string {
	switch h.Kind {
	case KindLocal:
		return "localhost"
	case KindExternal:
		return h.Address
	case KindConcreteCluster:
		return h.Namespace + ":" + h.WorkloadName
	case KindCluster:
		return h.Namespace + ":" + sortedLabelString(h.PodLabels)
	case KindGenericCluster:
		return sortedLabelString(h.NamespaceLabels) + ":" + sortedLabelString(h.PodLabels)
	default:
		return ""
	}
}

func labelsFromString(s string) (Labels, bool) {
	if s == "*" {
		return Labels{}, true
	}
	if strings.Contains(s, "=") {
		labels := Labels{}
		for _, pair := range strings.Split(s, ",") {
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) != 2 {
				continue
			}
			labels[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
		return labels, true
	}
	return nil, false
}

// FromIdentifier parses a textual identifier into a Host per the
// grammar in spec §6. It never fails: any string that isn't localhost,
// an external address or a namespace:pod-selector pair is treated as a
// workload name, in the namespace before the ':' or, without a ':', in
// the default namespace.
func FromIdentifier(identifier string) Host {
	if identifier == "localhost" {
		return Local()
	}

	if strings.Contains(identifier, ".") && !strings.ContainsAny(identifier, ":=*") {
		return External(identifier)
	}

	var left, right string
	if idx := strings.Index(identifier, ":"); idx >= 0 {
		left, right = identifier[:idx], identifier[idx+1:]
	} else {
		left, right = "default", identifier
	}

	podLabels, podLabelsParsed := labelsFromString(right)

	if strings.ContainsAny(left, "=*") {
		nsLabels, ok := labelsFromString(left)
		if !ok {
			nsLabels = Labels{}
		}
		if !podLabelsParsed {
			podLabels = Labels{}
		}
		return GenericCluster(nsLabels, podLabels)
	}

	if podLabelsParsed {
		return Cluster(left, podLabels)
	}

	return ConcreteCluster(left, right)
}

// MatchesPod reports whether pod is addressed by h.
func (h Host) MatchesPod(pod *corev1.Pod, resolveNamespaceLabels func(name string) Labels) bool {
	switch h.Kind {
	case KindConcreteCluster:
		return pod.Namespace == h.Namespace && pod.Name == h.WorkloadName
	case KindCluster:
		return pod.Namespace == h.Namespace && labelsSubsetOf(h.PodLabels, pod.Labels)
	case KindGenericCluster:
		nsLabels := resolveNamespaceLabels(pod.Namespace)
		return labelsSubsetOf(h.NamespaceLabels, nsLabels) && labelsSubsetOf(h.PodLabels, pod.Labels)
	default:
		return false
	}
}

// MatchesService reports whether svc is addressed by h.
func (h Host) MatchesService(svc *corev1.Service, resolveNamespaceLabels func(name string) Labels) bool {
	switch h.Kind {
	case KindConcreteCluster:
		return svc.Namespace == h.Namespace && svc.Name == h.WorkloadName
	case KindCluster:
		return svc.Namespace == h.Namespace && labelsSubsetOf(h.PodLabels, svc.Spec.Selector)
	case KindGenericCluster:
		nsLabels := resolveNamespaceLabels(svc.Namespace)
		return labelsSubsetOf(h.NamespaceLabels, nsLabels) && labelsSubsetOf(h.PodLabels, svc.Spec.Selector)
	default:
		return false
	}
}

// MatchesNamespace reports whether ns is addressed by h.
func (h Host) MatchesNamespace(ns *corev1.Namespace) bool {
	switch h.Kind {
	case KindConcreteCluster, KindCluster:
		return ns.Name == h.Namespace
	case KindGenericCluster:
		return labelsSubsetOf(h.NamespaceLabels, ns.Labels)
	default:
		return false
	}
}

func labelsSubsetOf(want Labels, have map[string]string) bool {
	if len(want) == 0 {
		return true
	}
	if have == nil {
		return false
	}
	for k, v := range want {
		if hv, ok := have[k]; !ok || hv != v {
			return false
		}
	}
	return true
}

// Overlap reports whether two label selectors overlap: they share at
// least one k=v pair, or either is empty (an empty selector matches
// everything, so it overlaps any selector) — spec §4.2 step 3a.
func Overlap(a, b Labels) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	for k, v := range a {
		if bv, ok := b[k]; ok && bv == v {
			return true
		}
	}
	return false
}

// PortString renders a numeric port or the "*" sentinel.
func PortString(port int, wildcard bool) string {
	if wildcard {
		return "*"
	}
	return strconv.Itoa(port)
}
