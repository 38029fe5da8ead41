package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/bouncer/internal/http"
)

const healthTimeout = 5 * time.Second

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check bouncerd server health",
		Long: `Check the health status of a bouncerd server.

Examples:
  # Check the default server
  bouncer health

  # Check another server
  bouncer health --server http://localhost:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := strings.TrimRight(opts.server(), "/") + "/api/health"

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			client := &http.Client{Timeout: healthTimeout}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", url, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return decodeServerError(resp)
			}

			var health httpserver.HealthResponse
			if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}

			if opts.output != outputText {
				return writeStructured(cmd.OutOrStdout(), opts.output, health)
			}

			status := healthyStyle.Render(health.Status)
			if health.Status != "healthy" {
				status = warningStyle.Render(health.Status)
			}
			provider := health.Provider
			if !health.ServiceConfigured {
				provider = warningStyle.Render("none (local rules only)")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, field("Server", opts.server()))
			fmt.Fprintln(out, field("Status", status))
			fmt.Fprintln(out, field("Version", health.Version))
			fmt.Fprintln(out, field("Provider", provider))
			fmt.Fprintln(out, field("Environment", health.Environment))
			fmt.Fprintln(out, field("Timestamp", dimStyle.Render(health.Timestamp)))
			return nil
		},
	}
}
