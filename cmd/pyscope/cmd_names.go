package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/dhamidi/pyscope/python"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type moduleReport struct {
	Module        string   `json:"module"`
	Names         []string `json:"names"`
	WildcardNames []string `json:"wildcard_names"`
	All           []string `json:"all,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

func newNamesCmd(opts *rootOptions) *cobra.Command {
	var asJSON, watch bool

	cmd := &cobra.Command{
		Use:   "names <module>...",
		Short: "Print the names modules bind and export by wildcard",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.loadProject()
			if err != nil {
				return err
			}
			provider := p.Provider()
			run := func(ctx context.Context) error {
				reports, err := analyzeModules(ctx, provider, args)
				if err != nil {
					return err
				}
				return printReports(cmd.OutOrStdout(), reports, asJSON)
			}

			if err := run(cmd.Context()); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			w, err := p.NewWatcher(func(paths []string) {
				log.Infof("%d files changed, analyzing again", len(paths))
				if err := run(ctx); err != nil {
					log.Errorf("names: %s", err)
				}
			})
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return w.Watch(ctx, p.SearchPaths())
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "analyze again when sources change")

	return cmd
}

// analyzeModules analyzes each module concurrently, each in its own
// environment.
func analyzeModules(ctx context.Context, provider python.SourceProvider, modules []string) ([]moduleReport, error) {
	reports := make([]moduleReport, len(modules))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, name := range modules {
		g.Go(func() error {
			env := python.NewEnvironment(provider, python.WithAnalysisCache())
			m, err := env.LoadModule(ctx, name)
			if err != nil {
				return err
			}
			res, err := m.Names(ctx)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", name, err)
			}
			report := moduleReport{
				Module:        name,
				Names:         res.Names.Sorted(),
				WildcardNames: res.WildcardNames.Sorted(),
				All:           res.All,
			}
			for _, rerr := range res.Errors {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", rerr.Span.Start, rerr.Error()))
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func printReports(w io.Writer, reports []moduleReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	for _, r := range reports {
		fmt.Fprintf(w, "%s\n", r.Module)
		fmt.Fprintf(w, "  names:    %s\n", strings.Join(r.Names, ", "))
		fmt.Fprintf(w, "  wildcard: %s\n", strings.Join(r.WildcardNames, ", "))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  error:    %s\n", e)
		}
	}
	return nil
}
