package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestIdentifierRoundTrip(t *testing.T) {
	cases := []Host{
		Local(),
		External("10.0.0.1"),
		External("example.com"),
		ConcreteCluster("default", "web-0"),
		Cluster("default", Labels{"app": "web"}),
		Cluster("default", Labels{}),
		GenericCluster(Labels{"team": "platform"}, Labels{"app": "web"}),
		GenericCluster(Labels{}, Labels{}),
		GenericCluster(Labels{"team": "platform"}, Labels{}),
	}

	for _, h := range cases {
		id := h.ToIdentifier()
		got := FromIdentifier(id)
		require.Equal(t, h, got, "round trip for identifier %q", id)
	}
}

func TestFromIdentifierGrammar(t *testing.T) {
	tests := []struct {
		identifier string
		want       Host
	}{
		{"localhost", Local()},
		{"10.0.0.1", External("10.0.0.1")},
		{"example.com", External("example.com")},
		{"default:web-0", ConcreteCluster("default", "web-0")},
		{"web-0", ConcreteCluster("default", "web-0")},
		{"default:app=web", Cluster("default", Labels{"app": "web"})},
		{"default:*", Cluster("default", Labels{})},
		{"team=platform:app=web", GenericCluster(Labels{"team": "platform"}, Labels{"app": "web"})},
		{"*:*", GenericCluster(Labels{}, Labels{})},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FromIdentifier(tt.identifier), "identifier %q", tt.identifier)
	}
}

func TestMatchesPod(t *testing.T) {
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{
		Namespace: "default",
		Name:      "web-0",
		Labels:    map[string]string{"app": "web", "role": "api"},
	}}

	resolve := func(name string) Labels {
		if name == "default" {
			return Labels{"team": "platform"}
		}
		return Labels{}
	}

	assert.True(t, Cluster("default", Labels{"app": "web"}).MatchesPod(pod, resolve))
	assert.False(t, Cluster("default", Labels{"app": "other"}).MatchesPod(pod, resolve))
	assert.True(t, Cluster("default", Labels{}).MatchesPod(pod, resolve))
	assert.True(t, ConcreteCluster("default", "web-0").MatchesPod(pod, resolve))
	assert.True(t, GenericCluster(Labels{"team": "platform"}, Labels{"app": "web"}).MatchesPod(pod, resolve))
	assert.False(t, GenericCluster(Labels{"team": "other"}, Labels{}).MatchesPod(pod, resolve))
}

func TestOverlap(t *testing.T) {
	assert.True(t, Overlap(Labels{}, Labels{"a": "b"}))
	assert.True(t, Overlap(Labels{"a": "b"}, Labels{}))
	assert.True(t, Overlap(Labels{"a": "b", "c": "d"}, Labels{"c": "d"}))
	assert.False(t, Overlap(Labels{"a": "b"}, Labels{"a": "c"}))
}

func TestIsUniversal(t *testing.T) {
	assert.True(t, GenericCluster(Labels{}, Labels{}).IsUniversal())
	assert.False(t, GenericCluster(Labels{"a": "b"}, Labels{}).IsUniversal())
	assert.False(t, Cluster("default", Labels{}).IsUniversal())
}
