package orchestrator

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

func svcPort(port, targetPort int32) corev1.ServicePort {
	return corev1.ServicePort{Port: port, TargetPort: intstr.FromInt(int(targetPort))}
}

func TestRewritePortsWildcardPicksFirstServicePort(t *testing.T) {
	out, err := rewritePorts([]string{"*"}, []corev1.ServicePort{svcPort(8080, 8080), svcPort(9090, 9090)})
	require.NoError(t, err)
	assert.Equal(t, []string{"8080"}, out)
}

func TestRewritePortsNumericMustMatchExactly(t *testing.T) {
	out, err := rewritePorts([]string{"8080"}, []corev1.ServicePort{svcPort(8080, 8080), svcPort(9090, 9090)})
	require.NoError(t, err)
	assert.Equal(t, []string{"8080"}, out)

	_, err = rewritePorts([]string{"1234"}, []corev1.ServicePort{svcPort(8080, 8080), svcPort(9090, 9090)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingPort))
}

func TestRewritePortsNegativeGetsFreshExcludedPort(t *testing.T) {
	out, err := rewritePorts([]string{"-80"}, []corev1.ServicePort{svcPort(8080, 8080)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NotEqual(t, "8080", out[0][1:])
	assert.Equal(t, byte('-'), out[0][0])
}

func TestRewritePortsMatchesOnTargetPortReturnsServicePort(t *testing.T) {
	// A pre-existing service fronting a target whose container listens
	// on 8080 but is exposed to callers as 80 (spec §8 S6): the request
	// names the container's port, the rewrite must return the caller-
	// facing one.
	out, err := rewritePorts([]string{"8080"}, []corev1.ServicePort{svcPort(80, 8080)})
	require.NoError(t, err)
	assert.Equal(t, []string{"80"}, out)
}

func TestFreshPortsPreservesSignsAndIsMutuallyDistinct(t *testing.T) {
	out, err := freshPorts([]string{"*", "-80", "443"})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.NotEqual(t, byte('-'), out[0][0])
	assert.Equal(t, byte('-'), out[1][0])
	assert.NotEqual(t, byte('-'), out[2][0])

	seen := map[string]bool{}
	for _, p := range out {
		raw := p
		if raw[0] == '-' {
			raw = raw[1:]
		}
		require.False(t, seen[raw], "port %s reused across requests", raw)
		seen[raw] = true
	}
}

func TestPositivePortsExtractsOnlyPositiveNumeric(t *testing.T) {
	ports := positivePorts([]string{"80", "-443", "8080"})
	assert.ElementsMatch(t, []int32{80, 8080}, ports)
}
