package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docuflow/waagent/pkg/agent"
	"github.com/docuflow/waagent/pkg/config"
	"github.com/docuflow/waagent/pkg/driver"
	"github.com/docuflow/waagent/pkg/driver/chromium"
)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".waagent", "config.yaml")
}

// loadConfig reads the config file named by the persistent flag and applies
// command line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("headless") {
		cfg.Headless, _ = cmd.Flags().GetBool("headless")
	}
	if cmd.Flags().Changed("profile") {
		cfg.ProfileDir, _ = cmd.Flags().GetString("profile")
	}
	if cmd.Flags().Changed("downloads") {
		cfg.DownloadsDir, _ = cmd.Flags().GetString("downloads")
	}
	if cmd.Flags().Changed("sender-filter") {
		cfg.SenderFilter, _ = cmd.Flags().GetString("sender-filter")
	}

	return cfg, cfg.EnsureDirs()
}

// launcher adapts the chromium driver to the agent's launch contract.
func launcher(cfg config.Config) agent.LaunchFunc {
	return func() (driver.Page, func() error, error) {
		browser, err := chromium.Launch(chromium.LaunchOptions{
			ProfileDir: cfg.ProfileDir,
			Headless:   cfg.Headless,
			UserAgent:  cfg.UserAgent,
		})
		if err != nil {
			return nil, nil, err
		}
		return browser.Page(), browser.Close, nil
	}
}

func newAgent(cmd *cobra.Command) (*agent.Agent, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	return agent.New(agent.Options{
		Config: cfg,
		Launch: launcher(cfg),
		Status: func(msg string) {
			fmt.Println(msg)
		},
	})
}

func addBrowserFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("headless", true, "run the browser without a visible window")
	cmd.Flags().String("profile", "", "browser profile directory (persists the login session)")
	cmd.Flags().String("downloads", "", "directory for retrieved attachments")
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the agent and listen for inbound documents",
		Long: `Start the agent: it opens WhatsApp Web in a persistent browser
profile, waits for authentication (scan the QR code on first run), then
polls for unread conversations and retrieves their attachments.

Examples:
  waagent run                         # headless, default profile
  waagent run --headless=false        # visible browser for debugging
  waagent run --sender-filter "Acme"  # only process matching senders`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAgent(cmd)
			if err != nil {
				return err
			}

			if err := a.Start(); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh

			fmt.Println("\nShutting down...")
			a.Stop()
			return nil
		},
	}

	addBrowserFlags(cmd)
	cmd.Flags().String("sender-filter", "", "only process conversations matching this name or number")
	return cmd
}
