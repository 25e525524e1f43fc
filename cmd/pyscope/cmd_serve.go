package main

import (
	"github.com/dhamidi/pyscope/langserver"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Python language server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.loadProject()
			if err != nil {
				return err
			}
			files, err := p.BootstrapFiles()
			if err != nil {
				return err
			}
			server := langserver.New(version,
				langserver.WithFiles(files),
				langserver.WithSourceProvider(p.Provider()),
				langserver.WithRootDir(p.SearchPaths()[0]),
			)
			return server.RunStdio()
		},
	}
}
