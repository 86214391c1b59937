package orchestrator

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/inovex/illuminatio-go/casegen"
	"github.com/inovex/illuminatio-go/host"
	"github.com/inovex/illuminatio-go/k8sutil"
)

// targetGroup is every case sharing one (from, to) pair, collected so
// ports can be rewritten together against the same concrete target.
type targetGroup struct {
	from     host.Host
	to       host.Host
	requests []string // signed port strings, in case order
}

// materializeTargets is P3: for every distinct (from, to) pair, find
// or create the target's backing service (and pod, if none exists),
// rewrite each case's symbolic port onto a concrete one, and retain
// the mapping for the collector's reverse-mapping pass.
func (o *Orchestrator) materializeTargets(ctx context.Context, cases []casegen.Case, snapshot Snapshot, fromHostMapping map[string]string) (map[string]map[string]string, []PortMapping, error) {
	toHostMapping := make(map[string]map[string]string)
	var portMappings []PortMapping

	groups, order := groupByFromTo(cases)

	for _, key := range order {
		g := groups[key]
		target := rewriteGenericTarget(g.to)

		existing, svcNamespace := findTargetService(target, snapshot)

		var svc *corev1.Service
		var concrete []string
		var err error

		if existing != nil {
			svc = existing
			concrete, err = rewritePorts(g.requests, existing.Spec.Ports)
		} else {
			concrete, err = freshPorts(g.requests)
			if err == nil {
				svc, svcNamespace, err = o.createTargetPodAndService(ctx, target, svcNamespace, positivePorts(concrete))
			}
		}
		if err != nil {
			return nil, nil, err
		}

		if toHostMapping[g.from.ToIdentifier()] == nil {
			toHostMapping[g.from.ToIdentifier()] = map[string]string{}
		}
		toHostMapping[g.from.ToIdentifier()][g.to.ToIdentifier()] = svcNamespace + ":" + svc.Name

		portMappings = append(portMappings, PortMapping{
			From:     g.from,
			To:       g.to,
			Abstract: g.requests,
			Concrete: concrete,
		})
	}

	return toHostMapping, portMappings, nil
}

func groupByFromTo(cases []casegen.Case) (map[string]*targetGroup, []string) {
	groups := map[string]*targetGroup{}
	var order []string
	for _, c := range cases {
		key := hostKey(c.From) + ">" + hostKey(c.To)
		g, ok := groups[key]
		if !ok {
			g = &targetGroup{from: c.From, to: c.To}
			groups[key] = g
			order = append(order, key)
		}
		g.requests = append(g.requests, c.PortString())
	}
	return groups, order
}

// rewriteGenericTarget applies spec §4.4 P3's hard simplification:
// GenericClusterHost targets are rewritten to a ClusterHost in the
// default namespace carrying the same pod labels.
func rewriteGenericTarget(h host.Host) host.Host {
	if h.Kind == host.KindGenericCluster {
		return host.Cluster("default", h.PodLabels)
	}
	return h
}

// findTargetService locates a service whose selector is a subset of
// target's pod labels (spec §4.4 P3: "Match services whose selector is
// a subset of the target's pod labels"). Returns nil if none exists.
func findTargetService(target host.Host, snapshot Snapshot) (*corev1.Service, string) {
	namespace := target.Namespace
	if namespace == "" {
		namespace = "default"
	}

	for i := range snapshot.Services {
		svc := &snapshot.Services[i]
		if svc.Namespace != namespace {
			continue
		}
		if labelsSubsetOfMap(svc.Spec.Selector, target.PodLabels) {
			return svc, namespace
		}
	}
	return nil, namespace
}

func labelsSubsetOfMap(want, have map[string]string) bool {
	for k, v := range want {
		if hv, ok := have[k]; !ok || hv != v {
			return false
		}
	}
	return true
}

// createTargetPodAndService synthesizes a target pod and a service
// exposing exactly the ports the freshly rewritten positive requests
// need (spec §4.4 P3: "a target service (TCP, targetPort 80) covering
// every numeric port requested").
func (o *Orchestrator) createTargetPodAndService(ctx context.Context, target host.Host, namespace string, exposePorts []int32) (*corev1.Service, string, error) {
	suffix := shortUUID()
	podName := "illuminatio-target-" + suffix
	svcName := "illuminatio-target-svc-" + suffix

	podLabels := mergeLabels(target.PodLabels, map[string]string{
		k8sutil.CleanupLabel: k8sutil.CleanupAlways.String(),
		RoleLabel:            RoleTestTargetPod,
	})

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: podName, Namespace: namespace, Labels: podLabels},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name:  "target",
				Image: o.Config.TargetPodImage,
			}},
			AutomountServiceAccountToken: boolPtr(false),
		},
	}
	if _, err := o.Client.Clientset.CoreV1().Pods(namespace).Create(ctx, pod, metav1.CreateOptions{}); err != nil {
		return nil, "", errors.Wrapf(err, "creating target pod for %s", target.ToIdentifier())
	}

	if len(exposePorts) == 0 {
		exposePorts = []int32{80}
	}
	svcPorts := make([]corev1.ServicePort, 0, len(exposePorts))
	for _, p := range exposePorts {
		svcPorts = append(svcPorts, corev1.ServicePort{
			Name:       "p" + strconv.Itoa(int(p)),
			Port:       p,
			TargetPort: intstr.FromInt(80),
			Protocol:   corev1.ProtocolTCP,
		})
	}

	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      svcName,
			Namespace: namespace,
			Labels: map[string]string{
				k8sutil.CleanupLabel: k8sutil.CleanupAlways.String(),
				RoleLabel:            RoleTestTargetSvc,
			},
		},
		Spec: corev1.ServiceSpec{
			Selector: target.PodLabels,
			Ports:    svcPorts,
		},
	}
	created, err := o.Client.Clientset.CoreV1().Services(namespace).Create(ctx, svc, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return nil, "", errors.Wrapf(err, "creating target service for %s", target.ToIdentifier())
	}
	if created == nil {
		created = svc
	}
	return created, namespace, nil
}

// rewritePorts maps a group's signed symbolic port requests onto the
// target's concrete service ports (spec §4.4 "Port rewriting"). A
// numeric positive request matches against each service port's
// targetPort — what the target container actually listens on — and
// rewrites to that service port's own port number, the value a caller
// actually dials (spec.md:136; mirrors
// original_source/src/illuminatio/test_orchestrator.py's
// _rewrite_ports_for_host, which matches on target_port and returns
// .port). The exclusion set used for wildcard/negative requests is
// likewise keyed on targetPort, since that is what the target serves.
func rewritePorts(requests []string, svcPorts []corev1.ServicePort) ([]string, error) {
	excluded := make(map[string]bool, len(svcPorts))
	byTargetPort := make(map[string]int32, len(svcPorts))
	for _, p := range svcPorts {
		key := strconv.Itoa(p.TargetPort.IntValue())
		excluded[key] = true
		byTargetPort[key] = p.Port
	}

	out := make([]string, len(requests))
	for i, req := range requests {
		port, positive := casegen.FromPortString(req)

		if port == "*" {
			if len(svcPorts) == 0 {
				p, err := casegen.DefaultRandPort(excluded)
				if err != nil {
					return nil, err
				}
				out[i] = signPort(p, positive)
				continue
			}
			out[i] = signPort(strconv.Itoa(int(svcPorts[0].Port)), positive)
			continue
		}

		if positive {
			svcPort, ok := byTargetPort[port]
			if !ok {
				return nil, errors.Wrapf(ErrMissingPort, "port %s on target", port)
			}
			out[i] = strconv.Itoa(int(svcPort))
			continue
		}

		p, err := casegen.DefaultRandPort(excluded)
		if err != nil {
			return nil, err
		}
		out[i] = "-" + p
	}
	return out, nil
}

func signPort(port string, positive bool) string {
	if positive {
		return port
	}
	return "-" + port
}

// freshPorts assigns every request a distinct random port (spec §4.4:
// "when the target has no existing service, each port is mapped to a
// distinct random port in [1, 65535], preserving the negation sign"),
// growing the exclusion set as ports are handed out so no two requests
// in the group collide.
func freshPorts(requests []string) ([]string, error) {
	excluded := make(map[string]bool, len(requests)+1)
	excluded["0"] = true
	out := make([]string, len(requests))
	for i, req := range requests {
		_, positive := casegen.FromPortString(req)

		p, err := casegen.DefaultRandPort(excluded)
		if err != nil {
			return nil, err
		}
		excluded[p] = true
		out[i] = signPort(p, positive)
	}
	return out, nil
}

// positivePorts extracts the numeric value of every positive-signed
// entry in concrete, used to build the synthesized service's exposed
// port list.
func positivePorts(concrete []string) []int32 {
	var ports []int32
	for _, c := range concrete {
		port, positive := casegen.FromPortString(c)
		if !positive {
			continue
		}
		n, err := strconv.Atoi(port)
		if err != nil {
			continue
		}
		ports = append(ports, int32(n))
	}
	return ports
}

func boolPtr(b bool) *bool { return &b }
