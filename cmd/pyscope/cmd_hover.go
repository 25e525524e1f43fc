package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newHoverCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hover <file> <line:col>",
		Short: "Show hover information at a position",
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
			tip, err := s.Hover(ctx, offset)
			if err != nil {
				return err
			}
			if tip == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "no hover information")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(tip.Text, "\n"))
			return nil
		},
	}
}
