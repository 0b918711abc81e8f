package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "aegisctl",
		Short: "Inspect and exercise aegis traffic governance rules",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "engine configuration file")

	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newSimulateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
