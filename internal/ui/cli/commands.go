package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	coreapp "depmatrix/internal/core/app"
	"depmatrix/internal/core/errors"
	"depmatrix/internal/core/ports"
	"depmatrix/internal/engine/analysis"
	"depmatrix/internal/engine/matrix"
	"depmatrix/internal/ui/report"

	"github.com/spf13/cobra"
)

type matrixFlags struct {
	depth   int
	sort    string
	reverse bool
	format  string
	output  string
}

func (f *matrixFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.depth, "depth", "d", 0, "matrix depth; 0 is the deepest, negative counts up from it")
	cmd.Flags().StringVarP(&f.sort, "sort", "s", "", "node order: group, name, export, import, import+export, similarity")
	cmd.Flags().BoolVarP(&f.reverse, "reverse", "r", false, "reverse the node order")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "output format: csv, json, dot, markdown")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write to this file instead of stdout")
}

// apply lets explicitly set flags override the configured output settings.
func (f *matrixFlags) apply(cmd *cobra.Command, rt *runtime) (ports.MatrixRequest, error) {
	out := &rt.cfg.Output
	if cmd.Flags().Changed("depth") {
		out.Depth = f.depth
	}
	if cmd.Flags().Changed("sort") {
		out.Sort = f.sort
	}
	if cmd.Flags().Changed("reverse") {
		out.Reverse = f.reverse
	}
	if cmd.Flags().Changed("format") {
		out.Format = strings.ToLower(f.format)
	}
	if cmd.Flags().Changed("output") {
		out.Path = f.output
	}
	criterion, err := matrix.ParseCriterion(out.Sort)
	if err != nil {
		return ports.MatrixRequest{}, err
	}
	return ports.MatrixRequest{Depth: out.Depth, Sort: criterion, Reverse: out.Reverse}, nil
}

func emit(cmd *cobra.Command, rt *runtime, m *matrix.Matrix, req coreapp.RenderRequest) error {
	if path := rt.cfg.Output.Path; path != "" {
		if err := rt.app.WriteOutput(m, req, path); err != nil {
			return err
		}
		rt.logger.Info("wrote matrix", "path", path, "depth", m.Depth, "nodes", m.Size())
		return nil
	}
	data, err := rt.app.Render(m, req)
	if err != nil {
		return err
	}
	// Terminals get a final newline; files keep the exact serialization.
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// logBuild reports what the last build parsed and resolved; visible with --verbose.
func logBuild(rt *runtime) {
	u := rt.app.CurrentUpdate()
	rt.logger.Debug("build details",
		"modules", u.Modules,
		"packages", u.Packages,
		"statements", u.Statements,
		"edges", u.Edges,
		"external", strings.Join(u.External, ","),
		"max_depth", u.MaxDepth,
	)
}

func newMatrixCmd(opts *globalOptions) *cobra.Command {
	flags := &matrixFlags{}
	var inject string

	cmd := &cobra.Command{
		Use:   "matrix [package...]",
		Short: "Build and print the dependency matrix at one depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd, args, false)
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			req, err := flags.apply(cmd, rt)
			if err != nil {
				return err
			}
			if _, err := rt.app.Build(cmd.Context()); err != nil {
				return err
			}
			logBuild(rt)
			m, err := rt.app.Matrix(cmd.Context(), req)
			if err != nil {
				return err
			}

			if inject != "" {
				file, marker, ok := strings.Cut(inject, "#")
				if !ok || file == "" || marker == "" {
					return errors.Newf(errors.CodeInvalidInput, "--inject expects FILE#MARKER, got %q", inject)
				}
				if err := rt.app.InjectMarkdown(m, file, marker); err != nil {
					return err
				}
				rt.logger.Info("updated markdown", "file", file, "marker", marker)
				return nil
			}
			return emit(cmd, rt, m, coreapp.RenderRequest{Format: rt.cfg.Output.Format})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&inject, "inject", "", "replace the depmatrix:MARKER block of a markdown file (FILE#MARKER)")
	return cmd
}

func newAnalyzeCmd(opts *globalOptions) *cobra.Command {
	var (
		depth  int
		format string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [package...]",
		Short: "Report cycles, layer violations and god modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd, args, false)
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			if !cmd.Flags().Changed("depth") {
				depth = rt.cfg.Output.Depth
			}
			if _, err := rt.app.Build(cmd.Context()); err != nil {
				return err
			}
			logBuild(rt)
			rep, err := rt.app.Analyze(cmd.Context(), depth)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "text":
				writeReportText(w, rep)
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
			case "markdown":
				m, err := rt.app.Matrix(cmd.Context(), ports.MatrixRequest{Depth: depth, Sort: matrix.ByName})
				if err != nil {
					return err
				}
				data, err := rt.app.Render(m, coreapp.RenderRequest{Format: coreapp.FormatMarkdown, Report: &rep})
				if err != nil {
					return err
				}
				if _, err := w.Write(data); err != nil {
					return err
				}
			default:
				return errors.Newf(errors.CodeNotSupported, "unsupported analyze format %q", format)
			}

			if strict && !rep.Clean() {
				return errors.Newf(errors.CodeConflict, "architecture checks failed at depth %d", rep.Depth)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "matrix depth to analyze")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, markdown")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any check reports a finding")
	return cmd
}

func writeReportText(w io.Writer, rep analysis.Report) {
	fmt.Fprintf(w, "depth %d: %d nodes\n", rep.Depth, rep.Nodes)
	if rep.Clean() {
		fmt.Fprintln(w, "no findings")
		return
	}
	for _, cycle := range rep.Cycles {
		fmt.Fprintf(w, "cycle: %s\n", strings.Join(cycle, ", "))
	}
	for _, v := range rep.Violations {
		fmt.Fprintf(w, "violation: %s\n", v.String())
	}
	for _, g := range rep.GodModules {
		fmt.Fprintf(w, "god module: %s (score=%d fan_in=%d fan_out=%d)\n", g.Name, g.Metrics.Score, g.Metrics.FanIn, g.Metrics.FanOut)
	}
}

func newChainCmd(opts *globalOptions) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "chain FROM TO",
		Short: "Print the shortest dependency path between two nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd, nil, false)
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			if _, err := rt.app.Build(cmd.Context()); err != nil {
				return err
			}
			chain, err := rt.app.ImportChain(depth, args[0], args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(chain, " -> "))
			return err
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "matrix depth the nodes belong to")
	return cmd
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch [package...]",
		Short: "Rebuild whenever a Python source changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.open(cmd, args, false)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			if cmd.Flags().Changed("metrics-addr") {
				rt.cfg.Observability.MetricsAddress = metricsAddr
			}
			if addr := rt.cfg.Observability.MetricsAddress; addr != "" {
				srv := NewObservabilityServer(addr, coreapp.NewHealthService(rt.app))
				if err := srv.Start(ctx); err != nil {
					return err
				}
				defer srv.Stop(context.WithoutCancel(ctx))
			}

			writeOutput := func() {
				if rt.cfg.Output.Path == "" {
					return
				}
				criterion, err := matrix.ParseCriterion(rt.cfg.Output.Sort)
				if err != nil {
					rt.logger.Warn("invalid sort", "error", err)
					return
				}
				m, err := rt.app.Matrix(ctx, ports.MatrixRequest{Depth: rt.cfg.Output.Depth, Sort: criterion, Reverse: rt.cfg.Output.Reverse})
				if err == nil {
					err = rt.app.WriteOutput(m, coreapp.RenderRequest{}, rt.cfg.Output.Path)
				}
				if err != nil {
					rt.logger.Warn("failed to write output", "error", err)
				}
			}

			rt.app.SetUpdateHandler(func(u coreapp.Update) {
				if u.Err != nil {
					return
				}
				if len(u.Cycles) > 0 {
					rt.logger.Warn("circular dependencies", "depth", u.Depth, "count", len(u.Cycles))
				}
				writeOutput()
			})

			if _, err := rt.app.Build(ctx); err != nil {
				return err
			}
			writeOutput()
			if err := rt.app.StartWatcher(ctx); err != nil {
				return err
			}
			rt.logger.Info("watching for changes", "paths", rt.cfg.Paths.Search)

			<-ctx.Done()
			rt.logger.Info("stopping watcher")
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
	return cmd
}

func newUICmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ui [package...]",
		Short: "Browse the matrix in a terminal UI that follows file changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			rt, err := opts.open(cmd, args, false)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			if _, err := rt.app.Build(ctx); err != nil {
				return err
			}
			if err := rt.app.StartWatcher(ctx); err != nil {
				return err
			}
			return runUI(ctx, rt.app, rt.cfg.Output)
		},
	}
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved builds",
	}

	var (
		limit      int
		listFormat string
		project    string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved builds, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd, nil, true)
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			if !cmd.Flags().Changed("project") {
				project = rt.cfg.History.Project
			}
			runs, err := rt.app.History().ListRuns(cmd.Context(), project, limit)
			if err != nil {
				return err
			}
			var data []byte
			switch strings.ToLower(listFormat) {
			case "tsv":
				data, err = report.RenderRunsTSV(runs)
			case "json":
				data, err = report.RenderRunsJSON(runs)
			default:
				return errors.Newf(errors.CodeNotSupported, "unsupported history format %q", listFormat)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs")
	list.Flags().StringVarP(&listFormat, "format", "f", "tsv", "output format: tsv, json")
	list.Flags().StringVar(&project, "project", "", "project key (defaults to history.project)")

	flags := &matrixFlags{}
	show := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Print a matrix from a saved build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd, nil, true)
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			req, err := flags.apply(cmd, rt)
			if err != nil {
				return err
			}
			run, matrices, err := rt.app.History().LoadRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			m, err := pickDepth(matrices, req.Depth)
			if err != nil {
				return errors.AddContext(err, "run_id", run.ID)
			}
			if err := m.Sort(req.Sort, req.Reverse); err != nil {
				return err
			}
			return emit(cmd, rt, m, coreapp.RenderRequest{Format: rt.cfg.Output.Format})
		},
	}
	flags.register(show)

	cmd.AddCommand(list, show)
	return cmd
}

// pickDepth applies the usual depth clamping to a saved run, whose
// matrices are ordered by depth starting at 1.
func pickDepth(matrices []*matrix.Matrix, depth int) (*matrix.Matrix, error) {
	maxDepth := len(matrices)
	if maxDepth == 0 {
		return nil, errors.New(errors.CodeNotFound, "run has no matrices")
	}
	switch {
	case depth == 0 || depth >= maxDepth:
		depth = maxDepth
	case depth < 0:
		depth = max(maxDepth+1+depth, 1)
	}
	return matrices[depth-1], nil
}
