// Command illuminatio-runner is the per-node agent (component C5):
// it reads the published case plan, probes its local pods' targets,
// publishes its result artifact once, then idles so the daemon set
// keeps reporting ready without restarting (spec §4.5 step 6).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/inovex/illuminatio-go/config"
	"github.com/inovex/illuminatio-go/k8sutil"
	"github.com/inovex/illuminatio-go/orchestrator"
	"github.com/inovex/illuminatio-go/runner"
)

const (
	casePlanMountDir  = "/etc/illuminatio"
	nodeNameEnv       = "NODE_NAME"
	podNameEnv        = "POD_NAME"
	runnerNSEnv       = "ILLUMINATIO_RUNNER_NAMESPACE"
	runtimeAdapterEnv = "ILLUMINATIO_RUNTIME_ADAPTER"
)

func main() {
	cobra.OnInitialize(func() { viper.AutomaticEnv() })
	cobra.CheckErr(newRunnerCmd().Execute())
}

func newRunnerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "illuminatio-runner",
		Short: "Per-node agent that probes local pods against the published case plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return startRunner(cmd.Context(), cfg)
		},
	}
}

func startRunner(ctx context.Context, cfg config.Config) error {
	if ns := os.Getenv(runnerNSEnv); ns != "" {
		cfg.RunnerNamespace = ns
	}
	if adapter := os.Getenv(runtimeAdapterEnv); adapter != "" {
		cfg.RuntimeAdapter = adapter
	}

	nodeName := os.Getenv(nodeNameEnv)
	podName := os.Getenv(podNameEnv)
	if nodeName == "" || podName == "" {
		return fmt.Errorf("illuminatio-runner requires %s and %s from the downward API", nodeNameEnv, podNameEnv)
	}

	klog.Infof("starting on node %s as pod %s, runtime adapter %s", nodeName, podName, cfg.RuntimeAdapter)

	client, err := k8sutil.NewClient("")
	if err != nil {
		return fmt.Errorf("building cluster client: %w", err)
	}

	resolver, err := runner.NewResolver(ctx, cfg, client)
	if err != nil {
		return fmt.Errorf("building namespace resolver: %w", err)
	}

	r := runner.New(client, resolver, cfg, nodeName, podName)

	casePlanPath := filepath.Join(casePlanMountDir, orchestrator.CasePlanDataKey)
	if err := r.Run(ctx, casePlanPath); err != nil {
		return fmt.Errorf("running probes: %w", err)
	}

	klog.Infof("results published, idling")
	select {}
}
