package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dhamidi/pyscope/lsp"
	"github.com/spf13/cobra"
)

func newCompleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <file> <line:col>",
		Short: "List completions at a position",
		Args:  cobra.ExactArgs(2),
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

			offset, err := parsePosition(host.Text(), args[1])
			if err != nil {
				return err
			}
			res, err := s.Complete(ctx, lsp.CompletionRequest{Offset: offset, Explicit: true})
			if err != nil {
				return err
			}
			if res == nil {
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, opt := range res.Options {
				fmt.Fprintf(w, "%s\t%s\t%s\n", opt.Label, opt.Type, opt.Detail)
			}
			return w.Flush()
		},
	}
}
