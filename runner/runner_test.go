package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestMatchLocalPodFindsByNamespaceAndName(t *testing.T) {
	pods := []corev1.Pod{
		{ObjectMeta: metav1.ObjectMeta{Name: "web-1", Namespace: "default"}},
		{ObjectMeta: metav1.ObjectMeta{Name: "web-2", Namespace: "other"}},
	}

	found := matchLocalPod("default:web-1", pods)
	if assert.NotNil(t, found) {
		assert.Equal(t, "web-1", found.Name)
	}

	assert.Nil(t, matchLocalPod("default:missing", pods))
}

func TestMatchLocalPodIgnoresNonConcreteIdentifiers(t *testing.T) {
	pods := []corev1.Pod{{ObjectMeta: metav1.ObjectMeta{Name: "web-1", Namespace: "default"}}}
	assert.Nil(t, matchLocalPod("app=web", pods))
}

func TestDNSNameForBuildsClusterLocalName(t *testing.T) {
	assert.Equal(t, "target-svc.default", dnsNameFor("default:target-svc"))
	assert.Equal(t, "target-svc.default", dnsNameFor(":target-svc"))
	assert.Equal(t, "10.0.0.1", dnsNameFor("10.0.0.1"))
}
