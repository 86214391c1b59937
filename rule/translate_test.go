package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inovex/illuminatio-go/host"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

func TestTranslateDefaultDeny(t *testing.T) {
	policy := &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default"},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{},
			Ingress:     nil,
		},
	}

	r, err := Translate(policy)
	require.NoError(t, err)
	assert.True(t, r.IsDefaultDeny())
	assert.Equal(t, host.Cluster("default", host.Labels{}), r.Concerns())
}

func TestTranslateAllowAll(t *testing.T) {
	policy := &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default"},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{},
			Ingress:     []networkingv1.NetworkPolicyIngressRule{{}},
		},
	}

	r, err := Translate(policy)
	require.NoError(t, err)
	require.Len(t, r.Allowed, 1)
	assert.Equal(t, Incoming, r.Allowed[0].Direction)
	assert.True(t, r.Allowed[0].Target.IsUniversal())
	assert.Equal(t, []PortSpec{AllPorts}, r.Allowed[0].Ports)
}

func TestTranslateLabelGatedIngress(t *testing.T) {
	policy := &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default"},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{MatchLabels: map[string]string{"app": "web"}},
			Ingress: []networkingv1.NetworkPolicyIngressRule{{
				From: []networkingv1.NetworkPolicyPeer{{
					PodSelector: &metav1.LabelSelector{MatchLabels: map[string]string{"role": "api"}},
				}},
			}},
		},
	}

	r, err := Translate(policy)
	require.NoError(t, err)
	require.Len(t, r.Allowed, 1)
	assert.Equal(t, host.Cluster("default", host.Labels{"role": "api"}), r.Allowed[0].Target)
	assert.Equal(t, []PortSpec{AllPorts}, r.Allowed[0].Ports)
}

func TestTranslateNamedPort(t *testing.T) {
	port := intstr.FromString("mynamedport")
	policy := &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default"},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{MatchLabels: map[string]string{"app": "web"}},
			Ingress: []networkingv1.NetworkPolicyIngressRule{{
				From:  []networkingv1.NetworkPolicyPeer{{PodSelector: &metav1.LabelSelector{MatchLabels: map[string]string{"role": "api"}}}},
				Ports: []networkingv1.NetworkPolicyPort{{Port: &port}},
			}},
		},
	}

	r, err := Translate(policy)
	require.NoError(t, err)
	require.Len(t, r.Allowed, 1)
	assert.Equal(t, []PortSpec{{Port: "mynamedport"}}, r.Allowed[0].Ports)
}

func TestTranslateDropsIPBlockPeers(t *testing.T) {
	policy := &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default"},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{MatchLabels: map[string]string{"app": "web"}},
			Ingress: []networkingv1.NetworkPolicyIngressRule{{
				From: []networkingv1.NetworkPolicyPeer{{
					IPBlock: &networkingv1.IPBlock{CIDR: "10.0.0.0/24"},
				}},
			}},
		},
	}

	r, err := Translate(policy)
	require.NoError(t, err)
	assert.Empty(t, r.Allowed)
}

func TestTranslateUnsupportedSelector(t *testing.T) {
	policy := &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default"},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{
				MatchExpressions: []metav1.LabelSelectorRequirement{
					{Key: "app", Operator: metav1.LabelSelectorOpIn, Values: []string{"web"}},
				},
			},
		},
	}

	_, err := Translate(policy)
	assert.ErrorIs(t, err, ErrUnsupportedSelector)
}

func TestTranslateNamespaceAndPodSelector(t *testing.T) {
	policy := &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default"},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{MatchLabels: map[string]string{"app": "web"}},
			Ingress: []networkingv1.NetworkPolicyIngressRule{{
				From: []networkingv1.NetworkPolicyPeer{{
					NamespaceSelector: &metav1.LabelSelector{MatchLabels: map[string]string{"team": "platform"}},
					PodSelector:       &metav1.LabelSelector{MatchLabels: map[string]string{"role": "api"}},
				}},
			}},
		},
	}

	r, err := Translate(policy)
	require.NoError(t, err)
	require.Len(t, r.Allowed, 1)
	assert.Equal(t, host.GenericCluster(host.Labels{"team": "platform"}, host.Labels{"role": "api"}), r.Allowed[0].Target)
}
