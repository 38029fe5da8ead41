package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/bouncer/internal/engine"
	httpserver "github.com/fyrsmithlabs/bouncer/internal/http"
	"github.com/fyrsmithlabs/bouncer/internal/logging"
	"github.com/fyrsmithlabs/bouncer/internal/sanitize"
)

const (
	rewriteTimeout = 60 * time.Second
	// maxInputBytes bounds what rewrite reads from a file or stdin.
	maxInputBytes = 4 << 20
)

type rewriteOptions struct {
	context   string
	ambiguity int
	noise     int
	quiet     bool
}

func newRewriteCmd(opts *options) *cobra.Command {
	ro := &rewriteOptions{}

	cmd := &cobra.Command{
		Use:   "rewrite [file|-]",
		Short: "Rewrite text from a file or stdin",
		Long: `Rewrite text for the audience described by --context.

The rewritten text goes to stdout. In text output mode the change summary
goes to stderr, so the command can sit in a pipeline.

Examples:
  # Rewrite a file for a grant panel
  bouncer rewrite --context "NSF grant proposal" -a 6 -n 4 abstract.txt

  # Rewrite stdin and print JSON
  cat post.md | bouncer rewrite --context "company blog" -o json

  # Use a running bouncerd and its provider
  bouncer rewrite --server http://localhost:3000 --context "journal" paper.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			req := sanitize.Request{
				Context:   ro.context,
				Text:      text,
				Ambiguity: ro.ambiguity,
				Noise:     ro.noise,
			}

			var res engine.Result
			if opts.serverURL != "" {
				res, err = rewriteRemote(cmd.Context(), opts.serverURL, req)
			} else {
				res, err = rewriteLocal(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			return writeRewrite(cmd, opts.output, ro.quiet, res)
		},
	}

	cmd.Flags().StringVarP(&ro.context, "context", "c", "", "audience description, e.g. \"NSF grant proposal\" (required)")
	cmd.Flags().IntVarP(&ro.ambiguity, "ambiguity", "a", 5, "terminology neutralization level, 0-10")
	cmd.Flags().IntVarP(&ro.noise, "noise", "n", 5, "aligned phrasing level, 0-10")
	cmd.Flags().BoolVarP(&ro.quiet, "quiet", "q", false, "suppress the summary in text output")
	_ = cmd.MarkFlagRequired("context")
	return cmd
}

// readInput reads the named file, or stdin for no argument or "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	var r io.Reader
	name := "stdin"
	if len(args) == 0 || args[0] == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
		defer f.Close()
		r, name = f, args[0]
	}

	content, err := io.ReadAll(io.LimitReader(r, maxInputBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read from %s: %w", name, err)
	}
	if len(content) > maxInputBytes {
		return "", fmt.Errorf("input from %s exceeds %d bytes", name, maxInputBytes)
	}
	return string(content), nil
}

// rewriteLocal runs the request through a provider-less service.
func rewriteLocal(ctx context.Context, req sanitize.Request) (engine.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := sanitize.NewService()
	if err != nil {
		return engine.Result{}, err
	}
	defer svc.Close()

	ctx = logging.WithOrigin(ctx, logging.OriginCLI)
	res, err := svc.Process(ctx, req)
	if err != nil {
		return engine.Result{}, err
	}
	return res.Result, nil
}

// rewriteRemote posts the request to a bouncerd server.
func rewriteRemote(ctx context.Context, serverURL string, req sanitize.Request) (engine.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	body, err := json.Marshal(map[string]any{
		"context":   req.Context,
		"text":      req.Text,
		"ambiguity": req.Ambiguity,
		"noise":     req.Noise,
	})
	if err != nil {
		return engine.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(serverURL, "/") + "/api/sanitize"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return engine.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: rewriteTimeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return engine.Result{}, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return engine.Result{}, decodeServerError(resp)
	}

	var res engine.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return engine.Result{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return res, nil
}

// decodeServerError turns a non-200 response into an error carrying the
// server's message when there is one.
func decodeServerError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, err)
	}
	var e httpserver.ErrorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}

func writeRewrite(cmd *cobra.Command, format string, quiet bool, res engine.Result) error {
	if format != outputText {
		return writeStructured(cmd.OutOrStdout(), format, res)
	}

	if _, err := fmt.Fprintln(cmd.OutOrStdout(), res.ProcessedText); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintln(cmd.ErrOrStderr())
		fmt.Fprintln(cmd.ErrOrStderr(), headerStyle.Render("Summary"))
		fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render(res.Summary))
	}
	return nil
}
