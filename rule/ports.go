package rule

import networkingv1 "k8s.io/api/networking/v1"

// portSpecsFrom converts a policy entry's port list to PortSpecs. An
// omitted list means "all ports" (spec §4.1); otherwise each entry is
// carried through verbatim — named ports are resolved, if at all, only
// by best-effort string match downstream (spec §1 non-goal).
func portSpecsFrom(ports []networkingv1.NetworkPolicyPort) []PortSpec {
	if len(ports) == 0 {
		return []PortSpec{AllPorts}
	}

	specs := make([]PortSpec, 0, len(ports))
	for _, p := range ports {
		if p.Port == nil {
			specs = append(specs, AllPorts)
			continue
		}
		specs = append(specs, PortSpec{Port: p.Port.String()})
	}
	return specs
}
