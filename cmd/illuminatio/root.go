package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/inovex/illuminatio-go/config"
)

// NewRootCmd returns the illuminatio root cobra command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "illuminatio",
		Short: "Tests Kubernetes NetworkPolicy connectivity assertions against live cluster state",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			viper.AutomaticEnv()
			viper.SetDefault(config.ConfigEnvPath, "")
			cfgFile := viper.GetString(config.ConfigEnvPath)
			if cfgFile != "" {
				viper.SetConfigFile(cfgFile)
			}

			if cfgFile != "" {
				if err := viper.ReadInConfig(); err == nil {
					klog.Infof("using config file: %s", viper.ConfigFileUsed())
					return nil
				}
			}

			klog.Infof("no config file at %s=%q, using default config", config.ConfigEnvPath, cfgFile)
			b, err := json.Marshal(config.DefaultConfig) //nolint:errchkjson
			if err != nil {
				return fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err := viper.ReadConfig(bytes.NewBuffer(b)); err != nil {
				return fmt.Errorf("failed to read in default config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(newStartCmd())

	return rootCmd
}
