// Package main provides the waagent command line interface: a WhatsApp Web
// automation agent that watches conversations for incoming documents, hands
// them to a processing pipeline, and sends notifications back.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	// Local overrides live in .env during development; absence is fine.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "waagent",
		Short:         "WhatsApp Web document automation agent",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", defaultConfigPath(), "path to the YAML configuration file")

	root.AddCommand(runCmd())
	root.AddCommand(sendCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
