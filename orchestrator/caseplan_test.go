package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inovex/illuminatio-go/host"
)

func TestBuildCasePlanKeysByConcreteIdentifiers(t *testing.T) {
	from := host.ConcreteCluster("default", "sender")
	to := host.ConcreteCluster("default", "target")

	portMappings := []PortMapping{
		{From: from, To: to, Abstract: []string{"80"}, Concrete: []string{"8080"}},
		{From: from, To: to, Abstract: []string{"-443"}, Concrete: []string{"-9443"}},
	}
	fromHostMapping := map[string]string{from.ToIdentifier(): "default:sender"}
	toHostMapping := map[string]map[string]string{
		from.ToIdentifier(): {to.ToIdentifier(): "default:target-svc"},
	}

	plan := buildCasePlan(portMappings, fromHostMapping, toHostMapping)

	require.Contains(t, plan, "default:sender")
	require.Contains(t, plan["default:sender"], "default:target-svc")
	assert.ElementsMatch(t, []string{"8080", "-9443"}, plan["default:sender"]["default:target-svc"])
}

func TestBuildCasePlanSkipsUnmappedSenders(t *testing.T) {
	from := host.ConcreteCluster("default", "sender")
	to := host.ConcreteCluster("default", "target")

	portMappings := []PortMapping{
		{From: from, To: to, Abstract: []string{"80"}, Concrete: []string{"8080"}},
	}

	plan := buildCasePlan(portMappings, map[string]string{}, map[string]map[string]string{})
	assert.Empty(t, plan)
}
