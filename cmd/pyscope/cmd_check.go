package main

import (
	"fmt"
	"time"

	"github.com/dhamidi/pyscope/lsp"
	"github.com/dhamidi/pyscope/textdoc"
	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Print the diagnostics the language server reports for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.loadProject()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, host, err := openSession(ctx, p, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			if wait == 0 {
				wait = p.Config.Server.RequestTimeout
			}
			var diags []lsp.Diagnostic
			select {
			case diags = <-host.diagnostics:
			case <-time.After(wait):
				return fmt.Errorf("check %s: no diagnostics after %s", args[0], wait)
			case <-ctx.Done():
				return ctx.Err()
			}

			doc := textdoc.New(host.Text())
			errors := 0
			for _, d := range diags {
				pos := doc.OffsetToPosition(d.From)
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%d:%d: %s: %s\n", args[0], pos.Line+1, pos.Character+1, d.Severity, d.Message)
				if d.Severity == lsp.SeverityError {
					errors++
				}
			}
			if errors > 0 {
				return fmt.Errorf("%d error(s) in %s", errors, args[0])
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "how long to wait for diagnostics (default server.request_timeout)")

	return cmd
}
