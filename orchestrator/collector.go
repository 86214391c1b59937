package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go/v3"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/inovex/illuminatio-go/log"
)

// resultArtifact is one runner's published result config map body
// (spec §6: "Mapping from-identifier -> to-identifier -> port-string ->
// {success, nmapState?, error?}" under key results, with a sibling
// runtimes key).
type resultArtifact struct {
	Results  ResultMap                    `json:"results"`
	Runtimes map[string]map[string]string `json:"runtimes,omitempty"`
}

// waitForDaemonReady is P6: poll until every pod matching selector in
// the runner namespace is Ready, within the bounded retry budget in
// config.PollConfig.
func (o *Orchestrator) waitForDaemonReady(ctx context.Context) error {
	cfg := o.Config.DaemonReadiness

	attempt := func() error {
		list, err := o.Client.Clientset.CoreV1().Pods(o.Config.RunnerNamespace).List(ctx, metav1.ListOptions{
			LabelSelector: selectorString(map[string]string{RoleLabel: RoleRunnerDaemonSet}),
		})
		if err != nil {
			return errors.Wrap(err, "listing runner daemon set pods")
		}
		if len(list.Items) == 0 {
			return errors.New("runner daemon set has no pods yet")
		}
		for _, pod := range list.Items {
			if !podReady(&pod) {
				return errors.Errorf("pod %s not ready yet", pod.Name)
			}
		}
		return nil
	}

	err := retry.Do(attempt,
		retry.Context(ctx),
		retry.Attempts(uint(cfg.MaxAttempts)),
		retry.Delay(time.Duration(cfg.IntervalSeconds)*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[orchestrator] P6 attempt %d: %v", n+1, err)
		}),
	)
	if err != nil {
		return errors.Wrap(ErrDaemonNotReady, err.Error())
	}
	return nil
}

func podReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

func selectorString(labels map[string]string) string {
	var parts []string
	for k, v := range labels {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

// collectResults is P7: list the runner pods matching selector, poll-
// read each pod's "<podName>-results" config map until every one is
// readable, and union their raw sender->target->port maps (spec §4.6).
func (o *Orchestrator) collectResults(ctx context.Context, selector map[string]string) (ResultMap, error) {
	list, err := o.Client.Clientset.CoreV1().Pods(o.Config.RunnerNamespace).List(ctx, metav1.ListOptions{
		LabelSelector: selectorString(selector),
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing runner pods")
	}

	expected := make([]string, 0, len(list.Items))
	for _, pod := range list.Items {
		expected = append(expected, pod.Name+"-results")
	}

	raw := make(ResultMap)
	cfg := o.Config.ResultCollection
	pending := expected

	attempt := func() error {
		var stillPending []string
		for _, name := range pending {
			cm, err := o.Client.GetConfigMap(ctx, o.Config.RunnerNamespace, name)
			if err != nil {
				return errors.Wrapf(err, "reading result artifact %s", name)
			}
			if cm == nil {
				stillPending = append(stillPending, name)
				continue
			}
			body, ok := cm.Data["results"]
			if !ok {
				stillPending = append(stillPending, name)
				continue
			}
			var artifact resultArtifact
			if err := yaml.Unmarshal([]byte(body), &artifact.Results); err != nil {
				return errors.Wrapf(err, "parsing result artifact %s", name)
			}
			mergeResults(raw, artifact.Results)
		}
		pending = stillPending
		if len(pending) > 0 {
			return errors.Errorf("%d result artifact(s) not yet readable", len(pending))
		}
		return nil
	}

	err = retry.Do(attempt,
		retry.Context(ctx),
		retry.Attempts(uint(cfg.MaxAttempts)),
		retry.Delay(time.Duration(cfg.IntervalSeconds)*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[orchestrator] P7 attempt %d: %v", n+1, err)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(ErrArtifactUnreadable, err.Error())
	}

	return raw, nil
}

func mergeResults(dst, src ResultMap) {
	for from, targets := range src {
		if dst[from] == nil {
			dst[from] = map[string]map[string]Outcome{}
		}
		for to, ports := range targets {
			if dst[from][to] == nil {
				dst[from][to] = map[string]Outcome{}
			}
			for port, outcome := range ports {
				dst[from][to][port] = outcome
			}
		}
	}
}

// reverseMap translates the runner-reported raw result map (keyed by
// concrete identifiers) back into abstract identifiers, using the
// mappings P2/P3 produced (spec §4.6 step 4). If a concrete port can't
// be found, the whole target-level entry is copied verbatim under the
// abstract from/to pair (the MissingPort fallback).
func reverseMap(raw ResultMap, mappings Mappings) ResultMap {
	result := make(ResultMap)

	for _, pm := range mappings.PortMappings {
		fromAbstract := pm.From.ToIdentifier()
		toAbstract := pm.To.ToIdentifier()

		fromConcrete, ok := mappings.FromHostMapping[fromAbstract]
		if !ok {
			continue
		}
		toConcrete, ok := mappings.ToHostMapping[fromAbstract][toAbstract]
		if !ok {
			continue
		}

		rawTargets, ok := raw[fromConcrete]
		if !ok {
			continue
		}
		rawPorts, ok := rawTargets[toConcrete]
		if !ok {
			continue
		}

		if result[fromAbstract] == nil {
			result[fromAbstract] = map[string]map[string]Outcome{}
		}

		complete := true
		for i, abstractPort := range pm.Abstract {
			concretePort := pm.Concrete[i]
			if _, ok := rawPorts[concretePort]; !ok {
				complete = false
				break
			}
			if result[fromAbstract][toAbstract] == nil {
				result[fromAbstract][toAbstract] = map[string]Outcome{}
			}
			result[fromAbstract][toAbstract][abstractPort] = rawPorts[concretePort]
		}

		if !complete {
			result[fromAbstract][toAbstract] = rawPorts
		}
	}

	return result
}
