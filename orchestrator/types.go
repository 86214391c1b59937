package orchestrator

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/inovex/illuminatio-go/host"
)

// Role labels applied to every object this system creates (spec §6).
const (
	RoleLabel = "illuminatio-role"

	RoleRunnerServiceAccount = "runner-service-account"
	RoleRunnerRoleBinding    = "runner-rb"
	RoleTestTargetPod        = "test_target_pod"
	RoleTestTargetSvc        = "test_target_svc"
	RoleFromHostDummy        = "from_host_dummy"
	RoleTestingNamespace     = "testing_namespace"
	RoleDaemonRunnerNS       = "daemon-runner-namespace"
	RoleCasePlanConfigMap    = "case-plan"
	RoleResultConfigMap      = "result"
	RoleRunnerDaemonSet      = "runner-daemonset"
)

// Snapshot is the cluster state fetched in P1, the matching substrate
// for the rest of reconciliation.
type Snapshot struct {
	Pods       []corev1.Pod
	Services   []corev1.Service
	Namespaces []corev1.Namespace
}

// NamespaceLabels resolves namespace-label look-asides the Host
// matcher methods need for GenericClusterHost selectors (Design
// Note §9's injected resolveNamespaceLabels capability).
func (s Snapshot) NamespaceLabels(name string) host.Labels {
	for _, ns := range s.Namespaces {
		if ns.Name == name {
			return ns.Labels
		}
	}
	return nil
}

// PortMapping records how one (from, to) pair's symbolic ports were
// rewritten onto concrete service ports, retained for the collector's
// reverse-mapping pass (spec §4.4).
type PortMapping struct {
	From     host.Host
	To       host.Host
	Abstract []string // original signed port strings
	Concrete []string // rewritten signed port strings, index-aligned with Abstract
}

// Outcome is one probe's observed result (spec §3 Result artifact).
type Outcome struct {
	Success   bool   `json:"success"`
	NmapState string `json:"nmapState,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ResultMap is from-identifier -> to-identifier -> port-string -> Outcome.
type ResultMap map[string]map[string]map[string]Outcome

// CasePlan is from-identifier -> to-identifier -> list of rewritten
// port strings (spec §3 Case plan, §6 case-plan artifact).
type CasePlan map[string]map[string][]string

// Mappings bundles the reconciliation tables produced by P2/P3, needed
// both to publish the case plan (P4) and to reverse-map results (P7/C6).
type Mappings struct {
	// FromHostMapping is abstract sender identifier -> "namespace:podName".
	FromHostMapping map[string]string
	// ToHostMapping is abstract sender identifier -> abstract target
	// identifier -> "namespace:podOrSvcName".
	ToHostMapping map[string]map[string]string
	// PortMappings retains the per-(from,to) symbolic->concrete port
	// correspondence for reverse mapping.
	PortMappings []PortMapping
}
