package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docuflow/waagent/pkg/agent"
)

const authWaitInterval = 500 * time.Millisecond

func sendCmd() *cobra.Command {
	var (
		text    string
		file    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <phone>",
		Short: "Send a message, optionally with a file, to a phone number",
		Long: `Send a one-off message through the authenticated session. The
number is in international format without the plus sign.

Examples:
  waagent send 966501234567 --text "Your invoice was processed."
  waagent send 966501234567 --file invoice.pdf --text "Attached."`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" && file == "" {
				return fmt.Errorf("nothing to send: provide --text, --file, or both")
			}

			a, err := newAgent(cmd)
			if err != nil {
				return err
			}

			if err := a.Start(); err != nil {
				return err
			}
			defer a.Stop()

			if err := waitForListening(a, timeout); err != nil {
				return err
			}

			ok, status := a.SendTo(args[0], text, file)
			fmt.Println(status)
			if !ok {
				return fmt.Errorf("send failed")
			}
			return nil
		},
	}

	addBrowserFlags(cmd)
	cmd.Flags().StringVarP(&text, "text", "t", "", "message text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "path of a file to attach")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for authentication")
	return cmd
}

// waitForListening blocks until the session is authenticated or the
// deadline passes. First runs need a QR scan, so the default is generous.
func waitForListening(a *agent.Agent, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		switch a.State() {
		case agent.StateListening:
			return nil
		case agent.StateCrashed:
			return fmt.Errorf("browser session failed to start")
		}
		time.Sleep(authWaitInterval)
	}
	return fmt.Errorf("timed out waiting for authentication after %s", timeout)
}
