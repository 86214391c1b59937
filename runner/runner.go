// Package runner implements C5: the per-node agent that reads the
// published case plan, enters local sender pods' network namespaces,
// probes each target with a port scanner, and publishes one result
// artifact per runner (spec §4.5).
package runner

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/inovex/illuminatio-go/config"
	"github.com/inovex/illuminatio-go/host"
	"github.com/inovex/illuminatio-go/k8sutil"
	"github.com/inovex/illuminatio-go/log"
)

// ErrUnsupportedRuntime is returned when config.RuntimeAdapter names a
// runtime this runner has no adapter for (spec §4.5 step 3: "unknown
// runtime -> UnsupportedRuntime").
var ErrUnsupportedRuntime = errors.New("illuminatio: unsupported container runtime adapter")

// criSocketPath is where the daemon set's volume mount (see
// orchestrator/daemonset.go) places the container runtime socket
// inside the runner container.
const criSocketPath = "/run/containerd/containerd.sock"

// resultRoleLabel/resultRoleValue tag this runner's own result config
// map with the same role-label vocabulary the orchestrator applies to
// everything else it creates (spec §6), without the runner importing
// the orchestrator package.
const (
	resultRoleLabel = "illuminatio-role"
	resultRoleValue = "result"
)

// NamespaceResolver resolves a pod's network-namespace path, the
// capability CRIAdapter and DockerAdapter both implement.
type NamespaceResolver interface {
	ResolveNetns(ctx context.Context, namespace, name string) (string, error)
}

// outcome mirrors the orchestrator's Outcome shape so runner and
// orchestrator agree on the result artifact's wire format without
// importing one another.
type outcome struct {
	Success   bool   `json:"success"`
	NmapState string `json:"nmapState,omitempty"`
	Error     string `json:"error,omitempty"`
}

// casePlan is the from-identifier -> to-identifier -> port-string list
// map the orchestrator publishes under the cases.yaml key.
type casePlan map[string]map[string][]string

// Runner is one per-node agent instance.
type Runner struct {
	Client   *k8sutil.Client
	Resolver NamespaceResolver
	Config   config.Config

	NodeName string // this node's name, from the downward API
	PodName  string // this runner pod's own name, from the downward API
}

// New builds a Runner. resolver is chosen by the caller according to
// cfg.RuntimeAdapter (NewCRIAdapter or NewDockerAdapter) — see
// ErrUnsupportedRuntime for the failure mode when neither applies.
func New(client *k8sutil.Client, resolver NamespaceResolver, cfg config.Config, nodeName, podName string) *Runner {
	return &Runner{Client: client, Resolver: resolver, Config: cfg, NodeName: nodeName, PodName: podName}
}

// Run executes the full per-runner protocol once: list local pods,
// read the case plan, probe every local sender's targets, and publish
// the merged result artifact (spec §4.5 steps 1-5). Step 6 ("idle
// indefinitely") is the caller's responsibility, not this function's —
// Run returns once the artifact is published.
func (r *Runner) Run(ctx context.Context, casePlanPath string) error {
	localPods, err := r.Client.ListPodsOnNode(ctx, r.NodeName)
	if err != nil {
		return errors.Wrap(err, "listing local pods")
	}

	plan, err := r.readCasePlan(casePlanPath)
	if err != nil {
		return err
	}

	results := make(map[string]map[string]map[string]outcome)
	runtimes := make(map[string]map[string]string)

	for fromIdentifier, targets := range plan {
		pod := matchLocalPod(fromIdentifier, localPods)
		if pod == nil {
			continue
		}

		log.Printf("[runner] probing for local sender %s", fromIdentifier)
		senderResults, senderRuntimes, err := r.runTestsForSender(ctx, pod, targets)
		if err != nil {
			return errors.Wrapf(err, "probing sender %s", fromIdentifier)
		}
		results[fromIdentifier] = senderResults
		runtimes[fromIdentifier] = senderRuntimes
	}

	return r.publishResults(ctx, results, runtimes)
}

func (r *Runner) readCasePlan(path string) (casePlan, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading case plan at %s", path)
	}
	var plan casePlan
	if err := yaml.Unmarshal(body, &plan); err != nil {
		return nil, errors.Wrap(err, "parsing case plan")
	}
	return plan, nil
}

// matchLocalPod reports whether fromIdentifier (a concrete ns:name
// identifier) names one of localPods, returning it if so.
func matchLocalPod(fromIdentifier string, localPods []corev1.Pod) *corev1.Pod {
	h := host.FromIdentifier(fromIdentifier)
	if h.Kind != host.KindConcreteCluster {
		return nil
	}
	for i := range localPods {
		pod := &localPods[i]
		if pod.Namespace == h.Namespace && pod.Name == h.WorkloadName {
			return pod
		}
	}
	return nil
}

// runTestsForSender probes every target for one local sender pod,
// returning its per-target port results and elapsed wall times.
func (r *Runner) runTestsForSender(ctx context.Context, pod *corev1.Pod, targets map[string][]string) (map[string]map[string]outcome, map[string]string, error) {
	netnsPath, err := r.Resolver.ResolveNetns(ctx, pod.Namespace, pod.Name)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "resolving network namespace for %s/%s", pod.Namespace, pod.Name)
	}

	results := make(map[string]map[string]outcome)
	runtimes := make(map[string]string)

	for target, ports := range targets {
		start := time.Now()
		results[target] = r.runTestsForTarget(ctx, netnsPath, target, ports)
		runtimes[target] = time.Since(start).String()
	}
	return results, runtimes, nil
}

// runTestsForTarget enters the sender's network namespace, scans
// target on the requested ports, and classifies each result (spec
// §4.5 step 4).
func (r *Runner) runTestsForTarget(ctx context.Context, netnsPath, target string, ports []string) map[string]outcome {
	portOnNums := make(map[string]string, len(ports))
	absPorts := make([]string, 0, len(ports))
	for _, p := range ports {
		abs := strings.TrimPrefix(p, "-")
		portOnNums[abs] = p
		absPorts = append(absPorts, abs)
	}
	portString := strings.Join(absPorts, ",")

	release, err := enterNamespace(netnsPath)
	if err != nil {
		return map[string]outcome{portString: {Success: false, Error: err.Error()}}
	}
	defer func() {
		if rerr := release(); rerr != nil {
			log.Printf("[runner] releasing network namespace scope: %v", rerr)
		}
	}()

	scanned, err := scanPorts(ctx, dnsNameFor(target), absPorts)
	if err != nil {
		return map[string]outcome{portString: {Success: false, Error: err.Error()}}
	}

	out := make(map[string]outcome, len(scanned))
	for _, s := range scanned {
		signed, ok := portOnNums[s.Port]
		if !ok {
			continue
		}
		expectedBlocked := strings.HasPrefix(signed, "-")
		observedBlocked := s.State == "filtered"
		out[signed] = outcome{
			Success:   expectedBlocked == observedBlocked,
			NmapState: s.State,
		}
	}
	return out
}

// dnsNameFor turns a "namespace:serviceName" identifier into the
// cluster-local DNS name "serviceName.namespace" nmap can resolve. An
// empty namespace part (":serviceName") becomes "default"; an
// identifier without ':' is returned unchanged.
func dnsNameFor(identifier string) string {
	if !strings.Contains(identifier, ":") {
		return identifier
	}
	idx := strings.Index(identifier, ":")
	ns, name := identifier[:idx], identifier[idx+1:]
	if ns == "" {
		ns = "default"
	}
	return name + "." + ns
}

// publishResults upserts this runner's result config map, named after
// its own pod name plus "-results" (spec §4.5 step 5).
func (r *Runner) publishResults(ctx context.Context, results map[string]map[string]map[string]outcome, runtimes map[string]map[string]string) error {
	resultsBody, err := yaml.Marshal(results)
	if err != nil {
		return errors.Wrap(err, "marshaling results")
	}
	runtimesBody, err := yaml.Marshal(runtimes)
	if err != nil {
		return errors.Wrap(err, "marshaling runtimes")
	}

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      r.PodName + "-results",
			Namespace: r.Config.RunnerNamespace,
			Labels: map[string]string{
				k8sutil.CleanupLabel: k8sutil.CleanupAlways.String(),
				resultRoleLabel:      resultRoleValue,
			},
		},
		Data: map[string]string{
			"results":  string(resultsBody),
			"runtimes": string(runtimesBody),
		},
	}
	return r.Client.UpsertConfigMap(ctx, r.Config.RunnerNamespace, cm)
}

// NewResolver builds the NamespaceResolver named by cfg.RuntimeAdapter.
func NewResolver(ctx context.Context, cfg config.Config, k8sClient *k8sutil.Client) (NamespaceResolver, error) {
	switch cfg.RuntimeAdapter {
	case "containerd", "cri":
		return NewCRIAdapter(ctx, "unix://"+criSocketPath)
	case "docker":
		return NewDockerAdapter(k8sClient)
	default:
		return nil, errors.Wrapf(ErrUnsupportedRuntime, "runtime adapter %q", cfg.RuntimeAdapter)
	}
}
