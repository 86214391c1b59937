package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTouchedNamespacesIncludesRunnerAndMappedNamespaces(t *testing.T) {
	mappings := Mappings{
		FromHostMapping: map[string]string{
			"default:app=web": "default:web-1",
			"*:team=payments": "team-payments:sender-1",
		},
		ToHostMapping: map[string]map[string]string{
			"default:app=web": {
				"default:target": "default:target-1",
				"*:app=api":      "role-api:target-2",
			},
		},
	}

	got := touchedNamespaces(mappings, "illuminatio-runner")
	assert.ElementsMatch(t, []string{"illuminatio-runner", "default", "team-payments", "role-api"}, got)
}

func TestTouchedNamespacesDedupesAndKeepsRunnerFirst(t *testing.T) {
	mappings := Mappings{
		FromHostMapping: map[string]string{"default:app=web": "default:web-1"},
	}

	got := touchedNamespaces(mappings, "default")
	assert.Equal(t, []string{"default"}, got)
}
