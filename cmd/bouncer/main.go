// Package main implements the bouncer CLI.
//
// Rewrites run against the local rule engine by default, or against a
// bouncerd server when --server is given.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:3000"

// version information (set via ldflags during build)
var version = "dev"

// options holds flags shared by every command.
type options struct {
	// serverURL is the bouncerd base URL; empty means offline for rewrite.
	serverURL string
	output    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "bouncer",
		Short: "Rewrite text so it reads as neutral to a given audience",
		Long: `bouncer rewrites text for a described audience, replacing charged
terminology with neutral phrasing and optionally adding aligned language.

It runs the local rule engine by default. Point --server at a bouncerd
instance to use its configured text generation provider.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputText, outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("invalid --output %q: must be text, json, or yaml", opts.output)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.serverURL, "server", "", "bouncerd server URL (rewrite runs offline when empty)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text, json, or yaml")

	root.AddCommand(
		newRewriteCmd(opts),
		newHealthCmd(opts),
		newRulesCmd(opts),
		newClassifyCmd(opts),
	)
	return root
}

// server returns the configured server URL or the default.
func (o *options) server() string {
	if o.serverURL == "" {
		return defaultServerURL
	}
	return o.serverURL
}
