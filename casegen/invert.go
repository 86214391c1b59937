package casegen

import (
	"github.com/pkg/errors"

	"github.com/inovex/illuminatio-go/host"
)

// InvertedPrefix is the reserved label/namespace-name prefix used to
// build negative senders (spec §4.3, glossary "Inversion").
const InvertedPrefix = "illuminatio-inverted-"

// ErrInvertUniversalHost is returned when asked to invert the wildcard
// GenericClusterHost({}, {}) — a programmer error per spec §7.
var ErrInvertUniversalHost = errors.New("illuminatio: cannot invert the universal host")

// Invert computes the inversion forms of h used to construct negative
// senders (spec §4.3). The returned slice has a fixed order; for a
// ClusterHost with labels it is (invertedNs, labels), (invertedNs,
// invertedLabels), (ns, invertedLabels).
func Invert(h host.Host) ([]host.Host, error) {
	switch h.Kind {
	case host.KindCluster:
		return invertCluster(h), nil
	case host.KindGenericCluster:
		return invertGenericCluster(h)
	default:
		return nil, errors.Errorf("illuminatio: host of kind %d is not invertible", h.Kind)
	}
}

func invertCluster(h host.Host) []host.Host {
	invertedNs := InvertedPrefix + h.Namespace
	if len(h.PodLabels) == 0 {
		return []host.Host{host.Cluster(invertedNs, host.Labels{})}
	}
	return []host.Host{
		host.Cluster(invertedNs, h.PodLabels),
		host.Cluster(invertedNs, invertLabels(h.PodLabels)),
		host.Cluster(h.Namespace, invertLabels(h.PodLabels)),
	}
}

func invertGenericCluster(h host.Host) ([]host.Host, error) {
	if h.IsUniversal() {
		return nil, ErrInvertUniversalHost
	}
	if len(h.NamespaceLabels) == 0 {
		return []host.Host{host.GenericCluster(host.Labels{}, invertLabels(h.PodLabels))}, nil
	}
	return []host.Host{
		host.GenericCluster(h.NamespaceLabels, invertLabels(h.PodLabels)),
		host.GenericCluster(invertLabels(h.NamespaceLabels), h.PodLabels),
		host.GenericCluster(invertLabels(h.NamespaceLabels), invertLabels(h.PodLabels)),
	}, nil
}

func invertLabels(labels host.Labels) host.Labels {
	inverted := make(host.Labels, len(labels))
	for k, v := range labels {
		inverted[InvertedPrefix+k] = v
	}
	return inverted
}
