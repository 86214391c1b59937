package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"github.com/inovex/illuminatio-go/host"
)

func TestPodReady(t *testing.T) {
	ready := &corev1.Pod{
		Status: corev1.PodStatus{
			Phase:      corev1.PodRunning,
			Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}},
		},
	}
	assert.True(t, podReady(ready))

	notRunning := &corev1.Pod{Status: corev1.PodStatus{Phase: corev1.PodPending}}
	assert.False(t, podReady(notRunning))

	noReadyCondition := &corev1.Pod{Status: corev1.PodStatus{Phase: corev1.PodRunning}}
	assert.False(t, podReady(noReadyCondition))
}

func TestMergeResultsUnionsDistinctKeys(t *testing.T) {
	dst := ResultMap{
		"a": {"b": {"80": Outcome{Success: true}}},
	}
	src := ResultMap{
		"a": {"b": {"443": Outcome{Success: false}}},
		"c": {"d": {"22": Outcome{Success: true}}},
	}
	mergeResults(dst, src)

	require.Len(t, dst["a"]["b"], 2)
	assert.True(t, dst["a"]["b"]["80"].Success)
	assert.False(t, dst["a"]["b"]["443"].Success)
	assert.True(t, dst["c"]["d"]["22"].Success)
}

func TestReverseMapTranslatesConcreteToAbstract(t *testing.T) {
	from := host.ConcreteCluster("default", "sender")
	to := host.ConcreteCluster("default", "target")

	mappings := Mappings{
		FromHostMapping: map[string]string{from.ToIdentifier(): "default:sender-pod"},
		ToHostMapping: map[string]map[string]string{
			from.ToIdentifier(): {to.ToIdentifier(): "default:target-svc"},
		},
		PortMappings: []PortMapping{
			{From: from, To: to, Abstract: []string{"80"}, Concrete: []string{"8080"}},
		},
	}

	raw := ResultMap{
		"default:sender-pod": {
			"default:target-svc": {"8080": Outcome{Success: true, NmapState: "open"}},
		},
	}

	result := reverseMap(raw, mappings)

	outcome := result[from.ToIdentifier()][to.ToIdentifier()]["80"]
	assert.True(t, outcome.Success)
	assert.Equal(t, "open", outcome.NmapState)
}

func TestReverseMapFallsBackToVerbatimOnMissingPort(t *testing.T) {
	from := host.ConcreteCluster("default", "sender")
	to := host.ConcreteCluster("default", "target")

	mappings := Mappings{
		FromHostMapping: map[string]string{from.ToIdentifier(): "default:sender-pod"},
		ToHostMapping: map[string]map[string]string{
			from.ToIdentifier(): {to.ToIdentifier(): "default:target-svc"},
		},
		PortMappings: []PortMapping{
			{From: from, To: to, Abstract: []string{"80", "443"}, Concrete: []string{"8080", "9443"}},
		},
	}

	// Only one of the two concrete ports is present in the raw results.
	raw := ResultMap{
		"default:sender-pod": {
			"default:target-svc": {"8080": Outcome{Success: true}},
		},
	}

	result := reverseMap(raw, mappings)

	entry := result[from.ToIdentifier()][to.ToIdentifier()]
	_, hasAbstractKey := entry["80"]
	assert.False(t, hasAbstractKey, "partial match must fall back to the verbatim concrete-keyed map, not a mixed one")
	_, hasConcreteKey := entry["8080"]
	assert.True(t, hasConcreteKey)
}
