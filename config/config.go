// Package config defines the viper-backed configuration for both
// illuminatio binaries, following the DefaultConfig-literal-plus-
// env-override idiom the teacher's npm/config package uses.
package config

const (
	defaultPollIntervalSeconds = 5
	defaultPollMaxAttempts     = 30
	defaultTargetImage         = "busybox:1.35"

	// ConfigEnvPath is the viper key used to locate an on-disk config
	// file, mirroring npmconfig.ConfigEnvPath.
	ConfigEnvPath = "ILLUMINATIO_CONFIG"
)

// DefaultConfig is the configuration the orchestrator runs with when no
// config file is supplied.
var DefaultConfig = Config{
	RunnerNamespace: "illuminatio",

	DaemonReadiness: PollConfig{
		IntervalSeconds: defaultPollIntervalSeconds,
		MaxAttempts:     defaultPollMaxAttempts,
	},
	ResultCollection: PollConfig{
		IntervalSeconds: defaultPollIntervalSeconds,
		MaxAttempts:     defaultPollMaxAttempts,
	},

	TargetPodImage: defaultTargetImage,
	RunnerImage:    "illuminatio/runner:latest",
	RuntimeAdapter: "containerd",

	Toggles: Toggles{
		EnablePrometheusMetrics: true,
		HardCleanupOnExit:       false,
	},
}

// PollConfig bounds one of the orchestrator's two retry loops (P6
// daemon readiness, P7 result collection).
type PollConfig struct {
	IntervalSeconds int `json:"IntervalSeconds,omitempty"`
	MaxAttempts     int `json:"MaxAttempts,omitempty"`
}

// Toggles are feature switches that don't warrant their own flag.
type Toggles struct {
	EnablePrometheusMetrics bool
	HardCleanupOnExit       bool
}

// Config is the orchestrator's full runtime configuration.
type Config struct {
	// RunnerNamespace is where the runner DaemonSet, its RBAC and the
	// case-plan/result config maps live.
	RunnerNamespace string `json:"RunnerNamespace,omitempty"`

	DaemonReadiness  PollConfig `json:"DaemonReadiness,omitempty"`
	ResultCollection PollConfig `json:"ResultCollection,omitempty"`

	// TargetPodImage is used for synthesized target pods that have no
	// matching existing workload.
	TargetPodImage string `json:"TargetPodImage,omitempty"`
	// RunnerImage is the runner DaemonSet's container image.
	RunnerImage string `json:"RunnerImage,omitempty"`
	// RuntimeAdapter selects which CRI client the runner builds:
	// "docker" or "containerd".
	RuntimeAdapter string `json:"RuntimeAdapter,omitempty"`

	Toggles Toggles `json:"Toggles,omitempty"`
}

// Flags holds command-line-only settings that never belong in a config
// file (per-invocation paths), mirroring npmconfig.Flags.
type Flags struct {
	KubeConfigPath string `json:"KubeConfigPath"`
	PolicyFile     string `json:"PolicyFile"`
}
