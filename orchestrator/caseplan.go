package orchestrator

import (
	"context"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/inovex/illuminatio-go/k8sutil"
)

// CasePlanArtifactName is the fixed name of the case-plan config map P4
// publishes and the runner reads (spec §6: "published as cluster
// configuration data under key cases.yaml").
const CasePlanArtifactName = "illuminatio-case-plan"

// CasePlanDataKey is the config map key the case plan's YAML is stored
// under.
const CasePlanDataKey = "cases.yaml"

// buildCasePlan assembles the two-level concrete-identifier map P4
// publishes (spec §4.4 P4: "keyed by the concrete identifiers and
// rewritten ports").
func buildCasePlan(portMappings []PortMapping, fromHostMapping map[string]string, toHostMapping map[string]map[string]string) CasePlan {
	plan := make(CasePlan)

	for _, pm := range portMappings {
		fromAbstract := pm.From.ToIdentifier()
		toAbstract := pm.To.ToIdentifier()

		fromConcrete, ok := fromHostMapping[fromAbstract]
		if !ok {
			continue
		}
		toConcrete, ok := toHostMapping[fromAbstract][toAbstract]
		if !ok {
			continue
		}

		if plan[fromConcrete] == nil {
			plan[fromConcrete] = map[string][]string{}
		}
		plan[fromConcrete][toConcrete] = append(plan[fromConcrete][toConcrete], pm.Concrete...)
	}

	return plan
}

// publishCasePlan is P4: serialize plan as YAML and upsert it as a
// config map in the runner namespace. Idempotent by construction
// (UpsertConfigMap patches an existing object).
func (o *Orchestrator) publishCasePlan(ctx context.Context, plan CasePlan) error {
	body, err := yaml.Marshal(plan)
	if err != nil {
		return errors.Wrap(err, "marshaling case plan")
	}

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      CasePlanArtifactName,
			Namespace: o.Config.RunnerNamespace,
			Labels: map[string]string{
				k8sutil.CleanupLabel: k8sutil.CleanupAlways.String(),
				RoleLabel:            RoleCasePlanConfigMap,
			},
		},
		Data: map[string]string{
			CasePlanDataKey: string(body),
		},
	}

	return o.Client.UpsertConfigMap(ctx, o.Config.RunnerNamespace, cm)
}
