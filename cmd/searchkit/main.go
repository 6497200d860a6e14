package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/searchkit/internal/config"
	"github.com/kailas-cloud/searchkit/internal/version"
)

var (
	env        string
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "searchkit",
		Short:         "Build, run and serve search engine queries",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", config.GetEnv(), "Environment (selects config/<env>.yaml)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Explicit config file path")

	rootCmd.AddCommand(newServeCmd(), newCompileCmd(), newSearchCmd(), newIndexCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath) //nolint:wrapcheck // config errors name the file
	}
	return config.Load(env) //nolint:wrapcheck // config errors name the file
}
