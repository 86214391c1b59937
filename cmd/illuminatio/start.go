package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	networkingv1 "k8s.io/api/networking/v1"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/inovex/illuminatio-go/casegen"
	"github.com/inovex/illuminatio-go/config"
	"github.com/inovex/illuminatio-go/k8sutil"
	"github.com/inovex/illuminatio-go/log"
	"github.com/inovex/illuminatio-go/metrics"
	"github.com/inovex/illuminatio-go/orchestrator"
	"github.com/inovex/illuminatio-go/rule"
)

func newStartCmd() *cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Generates connectivity test cases from live NetworkPolicies and runs them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			flags := config.Flags{
				KubeConfigPath: viper.GetString(flagKubeConfigPath),
				PolicyFile:     viper.GetString(flagPolicyFile),
			}

			return start(cmd.Context(), cfg, flags)
		},
	}

	startCmd.Flags().String(flagKubeConfigPath, flagDefaults[flagKubeConfigPath], "path to kubeconfig; empty uses in-cluster config")
	startCmd.Flags().String(flagPolicyFile, flagDefaults[flagPolicyFile], "path to a YAML file of NetworkPolicy objects; empty reads policies from the cluster")

	return startCmd
}

func start(ctx context.Context, cfg config.Config, flags config.Flags) error {
	if err := initLogging(); err != nil {
		return err
	}
	klog.Infof("loaded config: %+v", cfg)

	metrics.InitializeAll()
	if cfg.Toggles.EnablePrometheusMetrics {
		shutdown := metrics.StartHTTP()
		defer shutdown(ctx) //nolint:errcheck
	}

	client, err := k8sutil.NewClient(flags.KubeConfigPath)
	if err != nil {
		return fmt.Errorf("building cluster client: %w", err)
	}

	policies, err := loadPolicies(ctx, client, flags.PolicyFile)
	if err != nil {
		return fmt.Errorf("loading network policies: %w", err)
	}

	rules := make([]rule.Rule, 0, len(policies))
	for i := range policies {
		r, err := rule.Translate(&policies[i])
		if err != nil {
			return fmt.Errorf("translating policy %s/%s: %w", policies[i].Namespace, policies[i].Name, err)
		}
		rules = append(rules, r)
	}

	namespaces, err := client.ListNamespaces(ctx)
	if err != nil {
		return fmt.Errorf("listing namespaces: %w", err)
	}
	catalogEntries := make([]casegen.Namespace, 0, len(namespaces))
	for _, ns := range namespaces {
		catalogEntries = append(catalogEntries, casegen.Namespace{Name: ns.Name, Labels: ns.Labels})
	}
	catalog := casegen.NewCatalog(catalogEntries)

	cases, err := casegen.Generate(rules, catalog, casegen.DefaultRandPort)
	if err != nil {
		return fmt.Errorf("generating test cases: %w", err)
	}
	log.Printf("[illuminatio] generated %d test cases from %d network policies", len(cases), len(policies))

	orch := orchestrator.New(client, cfg)
	result, _, err := orch.Run(ctx, cases)
	if err != nil {
		return fmt.Errorf("running test cases: %w", err)
	}

	body, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	_, err = os.Stdout.Write(body)
	return err
}

// loadPolicies reads NetworkPolicy objects from policyFile if non-empty
// (a multi-document YAML file), otherwise lists them from the cluster.
func loadPolicies(ctx context.Context, client *k8sutil.Client, policyFile string) ([]networkingv1.NetworkPolicy, error) {
	if policyFile == "" {
		return client.ListNetworkPolicies(ctx)
	}

	f, err := os.Open(policyFile)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", policyFile, err)
	}
	defer f.Close()

	decoder := utilyaml.NewYAMLOrJSONDecoder(bufio.NewReader(f), 4096)
	var policies []networkingv1.NetworkPolicy
	for {
		var policy networkingv1.NetworkPolicy
		if err := decoder.Decode(&policy); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decoding %s: %w", policyFile, err)
		}
		if policy.Name == "" {
			continue
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

func initLogging() error {
	log.SetName("illuminatio")
	log.SetLevel(log.LevelInfo)
	if err := log.SetTarget(log.TargetStdout); err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}
	return nil
}
