package main

import (
	"os"

	"github.com/dhamidi/pyscope/project"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

var log = commonlog.GetLogger("pyscope")

type rootOptions struct {
	configPath string
	verbose    int
	logFile    string
}

func (o *rootOptions) configureLogging() {
	var path *string
	if o.logFile != "" {
		path = &o.logFile
	}
	commonlog.Configure(o.verbose, path)
}

func (o *rootOptions) loadProject() (*project.Project, error) {
	return project.LoadFrom(".", o.configPath)
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "pyscope",
		Short:        "Python module interface analyzer and language server bridge",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.configureLogging()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to pyscope.toml (default ./pyscope.toml)")
	rootCmd.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "increase log verbosity")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(newNamesCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newHoverCmd(opts))
	rootCmd.AddCommand(newCompleteCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newSignatureCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
