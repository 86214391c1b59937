// Package orchestrator implements C4/C6: reconciling abstract test
// cases against live cluster state, publishing the case plan the
// runner reads, and collecting/reverse-mapping the runners' results.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/inovex/illuminatio-go/casegen"
	"github.com/inovex/illuminatio-go/config"
	"github.com/inovex/illuminatio-go/k8sutil"
	"github.com/inovex/illuminatio-go/log"
	"github.com/inovex/illuminatio-go/metrics"
)

const (
	phaseRefresh            = "P1_refresh"
	phaseMaterializeSenders = "P2_materialize_senders"
	phaseMaterializeTargets = "P3_materialize_targets"
	phasePublishCasePlan    = "P4_publish_case_plan"
	phaseEnsureDaemonSet    = "P5_ensure_rbac_daemonset"
	phaseWaitDaemonReady    = "P6_wait_daemon_ready"
	phaseCollectResults     = "P7_collect_results"
)

// Orchestrator reconciles cases against one cluster. It holds no
// mutable run-scoped state across calls to Run — each run builds its
// own Snapshot and Mappings (Design Note §9: no process-wide
// singletons).
type Orchestrator struct {
	Client  *k8sutil.Client
	Cleaner *k8sutil.Cleaner
	Config  config.Config
}

// New builds an Orchestrator over client, using cfg for its namespace,
// image and polling settings.
func New(client *k8sutil.Client, cfg config.Config) *Orchestrator {
	return &Orchestrator{
		Client:  client,
		Cleaner: k8sutil.NewCleaner(client),
		Config:  cfg,
	}
}

// Run executes the full P1-P7 phase sequence for one abstract case set
// and returns the merged, reverse-mapped result map.
func (o *Orchestrator) Run(ctx context.Context, cases []casegen.Case) (ResultMap, Mappings, error) {
	metrics.CasesGenerated.Set(float64(len(cases)))
	countByExpectation(cases)

	log.Printf("[orchestrator] P1: refreshing cluster snapshot")
	p1Start := time.Now()
	snapshot, err := o.refresh(ctx)
	observePhase(phaseRefresh, p1Start)
	if err != nil {
		return nil, Mappings{}, errors.Wrap(err, "P1 refresh")
	}

	log.Printf("[orchestrator] P2: materializing %d senders", len(cases))
	p2Start := time.Now()
	usable, fromHostMapping, err := o.materializeSenders(ctx, cases, snapshot)
	observePhase(phaseMaterializeSenders, p2Start)
	if err != nil {
		return nil, Mappings{}, errors.Wrap(err, "P2 materialize senders")
	}

	log.Printf("[orchestrator] P3: materializing targets")
	p3Start := time.Now()
	toHostMapping, portMappings, err := o.materializeTargets(ctx, usable, snapshot, fromHostMapping)
	observePhase(phaseMaterializeTargets, p3Start)
	if err != nil {
		return nil, Mappings{}, errors.Wrap(err, "P3 materialize targets")
	}

	mappings := Mappings{
		FromHostMapping: fromHostMapping,
		ToHostMapping:   toHostMapping,
		PortMappings:    portMappings,
	}

	log.Printf("[orchestrator] P4: publishing case plan")
	p4Start := time.Now()
	plan := buildCasePlan(portMappings, fromHostMapping, toHostMapping)
	err = o.publishCasePlan(ctx, plan)
	observePhase(phasePublishCasePlan, p4Start)
	if err != nil {
		return nil, mappings, errors.Wrap(err, "P4 publish case plan")
	}

	log.Printf("[orchestrator] P5: ensuring RBAC and daemon set")
	p5Start := time.Now()
	selector, err := o.ensureRBACAndDaemonSet(ctx)
	observePhase(phaseEnsureDaemonSet, p5Start)
	if err != nil {
		return nil, mappings, errors.Wrap(err, "P5 ensure RBAC/daemon set")
	}

	log.Printf("[orchestrator] P6: waiting for daemon readiness")
	p6Start := time.Now()
	err = o.waitForDaemonReady(ctx)
	p6Elapsed := time.Since(p6Start)
	metrics.DaemonReadyWait.Observe(p6Elapsed.Seconds())
	metrics.PhaseDuration.WithLabelValues(phaseWaitDaemonReady).Observe(p6Elapsed.Seconds())
	if err != nil {
		return nil, mappings, errors.Wrap(err, "P6 daemon readiness")
	}

	log.Printf("[orchestrator] P7: collecting results")
	p7Start := time.Now()
	raw, err := o.collectResults(ctx, selector)
	p7Elapsed := time.Since(p7Start)
	metrics.ResultCollectWait.Observe(p7Elapsed.Seconds())
	metrics.PhaseDuration.WithLabelValues(phaseCollectResults).Observe(p7Elapsed.Seconds())
	if err != nil {
		return nil, mappings, errors.Wrap(err, "P7 collect results")
	}

	result := reverseMap(raw, mappings)
	recordMatchMetrics(cases, result)

	namespaces := touchedNamespaces(mappings, o.Config.RunnerNamespace)
	if o.Config.Toggles.HardCleanupOnExit {
		log.Printf("[orchestrator] running hard cleanup pass across %v", namespaces)
		if err := o.Cleaner.Hard(ctx, namespaces); err != nil {
			log.Printf("[orchestrator] hard cleanup failed: %v", err)
		}
	} else if err := o.Cleaner.Soft(ctx, namespaces); err != nil {
		log.Printf("[orchestrator] soft cleanup failed: %v", err)
	}

	return result, mappings, nil
}

func (o *Orchestrator) refresh(ctx context.Context) (Snapshot, error) {
	pods, err := o.Client.ListPods(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	services, err := o.Client.ListServices(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	namespaces, err := o.Client.ListNamespaces(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Pods: pods, Services: services, Namespaces: namespaces}, nil
}

// observePhase records how long a P-phase took against the
// phase_duration_seconds summary, labeled by phase name.
func observePhase(phase string, start time.Time) {
	metrics.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

// touchedNamespaces collects every namespace this run found or created
// sender/target resources in, plus the runner namespace itself, so the
// cleanup pass can be scoped to exactly what this run touched rather
// than just the runner namespace (spec §8 "Cleanup completeness").
func touchedNamespaces(mappings Mappings, runnerNamespace string) []string {
	seen := map[string]bool{runnerNamespace: true}
	out := []string{runnerNamespace}

	add := func(identifier string) {
		namespace := identifier
		if idx := strings.Index(identifier, ":"); idx >= 0 {
			namespace = identifier[:idx]
		}
		if !seen[namespace] {
			seen[namespace] = true
			out = append(out, namespace)
		}
	}

	for _, v := range mappings.FromHostMapping {
		add(v)
	}
	for _, targets := range mappings.ToHostMapping {
		for _, v := range targets {
			add(v)
		}
	}

	return out
}

func countByExpectation(cases []casegen.Case) {
	var positive, negative float64
	for _, c := range cases {
		if c.ShouldConnect {
			positive++
		} else {
			negative++
		}
	}
	metrics.CasesPositive.Set(positive)
	metrics.CasesNegative.Set(negative)
}

func recordMatchMetrics(cases []casegen.Case, result ResultMap) {
	var matched, mismatched float64
	for _, c := range cases {
		outcomes, ok := result[c.From.ToIdentifier()][c.To.ToIdentifier()]
		if !ok {
			continue
		}
		outcome, ok := outcomes[c.PortString()]
		if !ok {
			continue
		}
		if outcome.Success {
			matched++
		} else {
			mismatched++
		}
	}
	metrics.CasesMatched.Set(matched)
	metrics.CasesMismatched.Set(mismatched)
}
