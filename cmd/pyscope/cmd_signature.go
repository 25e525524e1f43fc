package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSignatureCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signature <file> <line:col>",
		Short: "Show the signature of the call at a position",
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
			sig, err := s.SignatureHelp(ctx, offset)
			if err != nil {
				return err
			}
			if sig == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "no signature")
				return nil
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, sig.Label)
			if param := sig.ActiveParameter(); param != "" {
				fmt.Fprintf(w, "  active: %s\n", param)
			}
			if sig.Documentation != "" {
				fmt.Fprintf(w, "\n%s\n", sig.Documentation)
			}
			return nil
		},
	}
}
