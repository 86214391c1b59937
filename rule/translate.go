package rule

import (
	"github.com/pkg/errors"

	"github.com/inovex/illuminatio-go/host"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ErrUnsupportedSelector is returned when a policy peer or pod selector
// uses set-membership match expressions, which this system does not
// support (spec §4.1, §7).
var ErrUnsupportedSelector = errors.New("illuminatio: set-membership selector expressions are not supported")

// Translate converts one declared NetworkPolicy into a Rule (spec §4.1).
func Translate(policy *networkingv1.NetworkPolicy) (Rule, error) {
	podLabels, err := labelsFromSelector(&policy.Spec.PodSelector)
	if err != nil {
		return Rule{}, err
	}

	r := Rule{
		Namespace: policy.Namespace,
		PodLabels: podLabels,
	}

	types := policyTypes(policy)
	if types[networkingv1.PolicyTypeIngress] {
		for _, entry := range policy.Spec.Ingress {
			conns, err := translateEntry(Incoming, entry.From, entry.Ports, policy.Namespace)
			if err != nil {
				return Rule{}, err
			}
			r.Allowed = append(r.Allowed, conns...)
		}
	}
	if types[networkingv1.PolicyTypeEgress] {
		for _, entry := range policy.Spec.Egress {
			conns, err := translateEntry(Outgoing, entry.To, entry.Ports, policy.Namespace)
			if err != nil {
				return Rule{}, err
			}
			r.Allowed = append(r.Allowed, conns...)
		}
	}

	return r, nil
}

func translateEntry(dir Direction, peers []networkingv1.NetworkPolicyPeer, ports []networkingv1.NetworkPolicyPort, ownNamespace string) ([]Connection, error) {
	portSpecs := portSpecsFrom(ports)

	if len(peers) == 0 {
		return []Connection{{Direction: dir, Target: host.GenericCluster(host.Labels{}, host.Labels{}), Ports: portSpecs}}, nil
	}

	var conns []Connection
	for _, peer := range peers {
		if peer.IPBlock != nil && peer.PodSelector == nil && peer.NamespaceSelector == nil {
			// IP-block peers are dropped: egress to external endpoints
			// is an explicit non-goal (spec §1, §4.1).
			continue
		}

		target, err := targetFromPeer(peer, ownNamespace)
		if err != nil {
			return nil, err
		}

		conns = append(conns, Connection{Direction: dir, Target: target, Ports: portSpecs})
	}
	return conns, nil
}

func targetFromPeer(peer networkingv1.NetworkPolicyPeer, ownNamespace string) (host.Host, error) {
	switch {
	case peer.PodSelector != nil && peer.NamespaceSelector != nil:
		nsLabels, err := labelsFromSelector(peer.NamespaceSelector)
		if err != nil {
			return host.Host{}, err
		}
		podLabels, err := labelsFromSelector(peer.PodSelector)
		if err != nil {
			return host.Host{}, err
		}
		return host.GenericCluster(nsLabels, podLabels), nil

	case peer.NamespaceSelector != nil:
		nsLabels, err := labelsFromSelector(peer.NamespaceSelector)
		if err != nil {
			return host.Host{}, err
		}
		return host.GenericCluster(nsLabels, host.Labels{}), nil

	case peer.PodSelector != nil:
		podLabels, err := labelsFromSelector(peer.PodSelector)
		if err != nil {
			return host.Host{}, err
		}
		return host.Cluster(ownNamespace, podLabels), nil

	default:
		return host.Host{}, errors.New("illuminatio: peer has no selector")
	}
}

func labelsFromSelector(sel *metav1.LabelSelector) (host.Labels, error) {
	if sel == nil {
		return host.Labels{}, nil
	}
	if len(sel.MatchExpressions) > 0 {
		return nil, ErrUnsupportedSelector
	}
	labels := host.Labels{}
	for k, v := range sel.MatchLabels {
		labels[k] = v
	}
	return labels, nil
}

func policyTypes(policy *networkingv1.NetworkPolicy) map[networkingv1.PolicyType]bool {
	result := map[networkingv1.PolicyType]bool{}
	if len(policy.Spec.PolicyTypes) == 0 {
		result[networkingv1.PolicyTypeIngress] = true
		if len(policy.Spec.Egress) > 0 {
			result[networkingv1.PolicyTypeEgress] = true
		}
		return result
	}
	for _, t := range policy.Spec.PolicyTypes {
		result[t] = true
	}
	return result
}
