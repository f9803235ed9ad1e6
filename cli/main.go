package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	pipeline "github.com/seoyhaein/pipeline-go"
	"github.com/seoyhaein/pipeline-go/debugonly"
	"github.com/seoyhaein/pipeline-go/manifest"
)

var (
	flagManifest string
	flagLogLevel string
	flagMermaid  bool
	flagFrames   int
	flagEngine   string
	flagWorkers  int
)

var (
	bold      = color.New(color.Bold).SprintFunc()
	dim       = color.New(color.Faint).SprintFunc()
	cyan      = color.New(color.FgCyan).SprintFunc()
	boldRed   = color.New(color.Bold, color.FgRed).SprintFunc()
	boldGreen = color.New(color.Bold, color.FgGreen).SprintFunc()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Compile and run frame pipelines described by a manifest",
		Long: `pipeline loads a YAML or TOML manifest of Lua-scripted tasks, compiles the
dependency graph into waves and runs it frame by frame on the selected engine.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(flagLogLevel)
			if err != nil {
				return err
			}
			pipeline.Log.SetLevel(lvl)
			if debugonly.Enabled() {
				pipeline.Log.Debug("debugger build")
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flagManifest, "manifest", "m", "", "Pipeline manifest (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warning", "Log level (trace, debug, info, warning, error)")
	_ = rootCmd.MarkPersistentFlagRequired("manifest")

	rootCmd.AddCommand(graphCmd())
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the compiled waves of a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(flagManifest)
			if err != nil {
				return err
			}
			p, err := m.Compile(manifest.WithEngine(manifest.EngineSequential))
			if err != nil {
				return err
			}
			defer p.Close()

			out := cmd.OutOrStdout()
			if flagMermaid {
				fmt.Fprint(out, p.Graph.ToMermaid())
				return nil
			}
			printWaves(cmd, p.Graph)
			return nil
		},
	}
	cmd.Flags().BoolVar(&flagMermaid, "mermaid", false, "Emit a Mermaid flowchart instead of the wave list")
	return cmd
}

func printWaves(cmd *cobra.Command, g *pipeline.Graph[*manifest.Blackboard]) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", bold("graph"), dim(g.ID))
	for i, wave := range g.Waves() {
		names := make([]string, 0, len(wave))
		for _, name := range wave {
			t, _ := g.Task(name)
			label := cyan(name)
			if t != nil && t.Exclusive {
				label = boldRed(name + "!")
			}
			if t != nil {
				label += dim("@" + t.Layer.String())
			}
			names = append(names, label)
		}
		fmt.Fprintf(out, "  wave %d: %s\n", i, strings.Join(names, "  "))
	}
	fmt.Fprintf(out, "%d tasks in %d waves\n", g.Len(), len(g.Waves()))
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a manifest for a number of frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(flagManifest)
			if err != nil {
				return err
			}
			p, err := m.Compile(manifest.WithEngine(flagEngine), manifest.WithWorkers(flagWorkers))
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			loop, err := p.Loop(flagFrames)
			if err != nil {
				return err
			}
			n, runErr := loop.Run(ctx)

			out := cmd.OutOrStdout()
			status := boldGreen("ok")
			if runErr != nil {
				status = boldRed("failed")
			}
			fmt.Fprintf(out, "%s %d frames on %s engine: %s\n", bold("run"), n, p.EngineName, status)

			snap := p.World().Snapshot()
			names := make([]string, 0, len(snap))
			for name := range snap {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %s = %v\n", cyan(name), snap[name])
			}

			if stats := p.Stats(); len(stats) > 0 {
				fmt.Fprintln(out, bold("tasks"))
				for _, s := range stats {
					fmt.Fprintf(out, "  %-16s runs=%d last=%s\n", s.Name, s.Runs, s.LastDuration)
				}
			}
			return runErr
		},
	}
	cmd.Flags().IntVarP(&flagFrames, "frames", "n", 1, "Number of frames to run (0 runs until interrupted)")
	cmd.Flags().StringVar(&flagEngine, "engine", "", "Override scheduler.engine (sequential, parallel, jobs)")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "Override scheduler.workers")
	return cmd
}
