package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	flagKubeConfigPath = "kubeconfig"
	flagPolicyFile     = "policy-file"
)

var flagDefaults = map[string]string{
	flagKubeConfigPath: "",
	flagPolicyFile:     "",
}

// version is empty unless set at link time (-ldflags -X).
var version string

func main() {
	rootCmd := NewRootCmd()

	if version != "" {
		viper.Set("version", version)
	}

	cobra.OnInitialize(func() {
		viper.AutomaticEnv()
		initCommandFlags(rootCmd.Commands())
	})

	cobra.CheckErr(rootCmd.Execute())
}

func initCommandFlags(commands []*cobra.Command) {
	for _, cmd := range commands {
		err := viper.BindPFlags(cmd.Flags())
		cobra.CheckErr(err)

		c := cmd
		c.Flags().VisitAll(func(flag *pflag.Flag) {
			if viper.IsSet(flag.Name) && viper.GetString(flag.Name) != "" {
				err := c.Flags().Set(flag.Name, viper.GetString(flag.Name))
				cobra.CheckErr(err)
			}
		})

		if cmd.HasSubCommands() {
			initCommandFlags(cmd.Commands())
		}
	}
}
