package orchestrator

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/inovex/illuminatio-go/casegen"
	"github.com/inovex/illuminatio-go/host"
	"github.com/inovex/illuminatio-go/k8sutil"
	"github.com/inovex/illuminatio-go/log"
)

// materializeSenders is P2: find or create the sender pod for every
// distinct sender host across cases. Cases whose sender is not a
// cluster-local host are dropped with ErrUnsupportedSender logged, not
// aborting the run (spec §7).
func (o *Orchestrator) materializeSenders(ctx context.Context, cases []casegen.Case, snapshot Snapshot) ([]casegen.Case, map[string]string, error) {
	fromHostMapping := make(map[string]string)
	var order []host.Host
	seen := map[string]bool{}
	usable := make([]casegen.Case, 0, len(cases))

	for _, c := range cases {
		key := hostKey(c.From)
		if c.From.Kind != host.KindCluster && c.From.Kind != host.KindGenericCluster {
			if !seen[key] {
				seen[key] = true
				log.Printf("[orchestrator] %v: sender %s is not cluster-local, dropping its cases", ErrUnsupportedSender, c.From.ToIdentifier())
			}
			continue
		}
		usable = append(usable, c)
		if !seen[key] {
			seen[key] = true
			order = append(order, c.From)
		}
	}

	for _, h := range order {
		ns, err := o.ensureSenderNamespace(ctx, h, snapshot)
		if err != nil {
			return nil, nil, err
		}

		if pod := firstMatchingPod(h, ns, snapshot); pod != nil {
			fromHostMapping[h.ToIdentifier()] = ns + ":" + pod.Name
			continue
		}

		podName, err := o.createDummySenderPod(ctx, h, ns)
		if err != nil {
			return nil, nil, err
		}
		fromHostMapping[h.ToIdentifier()] = ns + ":" + podName
	}

	return usable, fromHostMapping, nil
}

// hostKey is an equality proxy for Host values, matching casegen's
// rationale: Host carries an uncomparable map field, so set/dedup
// operations key on Kind+identifier instead of raw equality.
func hostKey(h host.Host) string {
	return string(rune('0'+h.Kind)) + "|" + h.ToIdentifier()
}

// ensureSenderNamespace resolves h's target namespace, creating it
// (with the host's namespace labels, for GenericClusterHost) if it
// doesn't already exist in the snapshot.
func (o *Orchestrator) ensureSenderNamespace(ctx context.Context, h host.Host, snapshot Snapshot) (string, error) {
	var name string
	var labels host.Labels

	switch h.Kind {
	case host.KindCluster:
		name = h.Namespace
	case host.KindGenericCluster:
		name = canonicalizeSelectorName(h.NamespaceLabels)
		labels = h.NamespaceLabels
	default:
		return "", errors.Errorf("illuminatio: host %s has no namespace resolution", h.ToIdentifier())
	}

	for _, ns := range snapshot.Namespaces {
		if ns.Name == name {
			return name, nil
		}
	}

	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: mergeLabels(labels, map[string]string{
				k8sutil.CleanupLabel: k8sutil.CleanupAlways.String(),
				RoleLabel:            RoleTestingNamespace,
			}),
		},
	}
	_, err := o.Client.Clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return "", errors.Wrapf(err, "creating namespace %s", name)
	}
	snapshot.Namespaces = append(snapshot.Namespaces, *ns)
	return name, nil
}

func firstMatchingPod(h host.Host, namespace string, snapshot Snapshot) *corev1.Pod {
	for i := range snapshot.Pods {
		pod := &snapshot.Pods[i]
		if pod.Namespace != namespace {
			continue
		}
		if h.MatchesPod(pod, snapshot.NamespaceLabels) {
			return pod
		}
	}
	return nil
}

func (o *Orchestrator) createDummySenderPod(ctx context.Context, h host.Host, namespace string) (string, error) {
	name := "illuminatio-sender-" + shortUUID()
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    mergeLabels(h.PodLabels, map[string]string{k8sutil.CleanupLabel: k8sutil.CleanupAlways.String(), RoleLabel: RoleFromHostDummy}),
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name:  "sender",
				Image: o.Config.TargetPodImage,
			}},
		},
	}

	_, err := o.Client.Clientset.CoreV1().Pods(namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "creating dummy sender pod for %s", h.ToIdentifier())
	}
	return name, nil
}

// canonicalizeSelectorName turns a label selector into a DNS-safe
// namespace name (spec §4.4 P2): ":" -> "-", "," and "=" removed, "*"
// -> "any". Keys are sorted first, mirroring host.go's
// sortedLabelString, so the same selector always canonicalizes to the
// same name — map iteration order is randomized per process, and
// ensureSenderNamespace's find-or-create relies on this being stable
// across runs.
func canonicalizeSelectorName(labels host.Labels) string {
	if len(labels) == 0 {
		return "any"
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	joined := strings.Join(parts, ",")
	replacer := strings.NewReplacer(":", "-", ",", "", "=", "", "*", "any")
	return strings.ToLower(replacer.Replace(joined))
}

func mergeLabels(base host.Labels, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func shortUUID() string {
	return uuid.New().String()[:8]
}
