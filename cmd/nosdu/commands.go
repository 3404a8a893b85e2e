package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gosuri/uilive"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"nithronos/nosdu/internal/crawler"
	"nithronos/nosdu/internal/jobs"
	"nithronos/nosdu/internal/metrics"
	"nithronos/nosdu/internal/server"
	"nithronos/nosdu/internal/storage/blk"
	"nithronos/nosdu/internal/storage/volumes"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newResolver() *volumes.Resolver {
	return volumes.NewResolver(volumes.Options{
		Devices: &blk.Sysfs{
			ClassPath:    cfg.Volumes.SysBlockPath,
			UdevDataPath: cfg.Volumes.UdevDataPath,
			Logger:       logger.Component("blk"),
		},
		MountsPath: cfg.Volumes.MountsPath,
		Denylist:   cfg.Volumes.Denylist,
		Verbose:    cfg.Verbose,
		Logger:     logger.Logger,
	})
}

func crawlOptions() crawler.Options {
	return crawler.Options{
		Workers:    cfg.Crawl.Workers,
		MaxDepth:   cfg.Crawl.MaxDepth,
		PruneRoots: cfg.Crawl.PruneRoots,
		Verbose:    cfg.Verbose,
		Logger:     logger.Logger,
	}
}

// newDrivesCmd creates the drives command
func newDrivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List local disks and network drives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			stop := spinner(cmd.ErrOrStderr(), "Resolving drives")
			drives, err := newResolver().Resolve(ctx)
			stop()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case outputJSON:
				return printJSON(out, drives)
			case outputYAML:
				return printYAML(out, drives)
			}
			renderDrives(out, drives)
			return nil
		},
	}
}

// newCrawlCmd creates the crawl command
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl PATH",
		Short: "Measure the size of everything directly below PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			run := crawler.New(crawlOptions()).Start(ctx, args[0])
			out := cmd.OutOrStdout()
			if !outputJSON && !outputYAML && isTerminal(out) {
				showProgress(out, run)
			}
			res := run.Result()
			if res.Failed() {
				return res.Err
			}
			switch {
			case outputJSON:
				return printJSON(out, res)
			case outputYAML:
				return printYAML(out, res)
			}
			renderCrawl(out, res)
			return nil
		},
	}
	cmd.Flags().Int("depth", 0, "stop descending below this depth (0 = unlimited)")
	cmd.Flags().Int("workers", 0, "parallel traversal workers (0 = one per CPU)")
	_ = viper.BindPFlag("crawl.max_depth", cmd.Flags().Lookup("depth"))
	_ = viper.BindPFlag("crawl.workers", cmd.Flags().Lookup("workers"))
	return cmd
}

// newServeCmd creates the serve command
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve drives and crawls over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			m := metrics.New(Version, GitCommit)
			topo := server.NewTopology(newResolver(), m, logger.Logger)
			if _, err := topo.Refresh(ctx); err != nil {
				logger.Warn().Err(err).Msg("Initial topology refresh failed")
			}
			if err := topo.StartSchedule(cfg.Volumes.RefreshSchedule); err != nil {
				return err
			}
			defer topo.Stop()

			mgr := jobs.NewManager(jobs.Options{
				Crawl:    crawlOptions(),
				TTL:      cfg.Crawl.JobTTL,
				OnFinish: func(_ jobs.Job, r crawler.Result) { m.ObserveCrawl(r) },
				Logger:   logger.Logger,
			})
			defer mgr.Close()

			r := server.NewRouter(server.Deps{
				Topology:    topo,
				Jobs:        mgr,
				Metrics:     m,
				Logger:      logger.Logger,
				CORSOrigins: cfg.HTTP.CORSOrigins,
				Version:     Version,
			})
			return server.ListenAndServe(ctx, cfg.HTTP.Bind, r, logger.Logger)
		},
	}
	cmd.Flags().String("bind", "", "listen address (default 127.0.0.1:9100)")
	_ = viper.BindPFlag("http.bind", cmd.Flags().Lookup("bind"))
	return cmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show nosdu version",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if outputJSON {
				return printJSON(out, map[string]string{"version": Version, "build_time": BuildTime, "git_commit": GitCommit})
			}
			fmt.Fprintf(out, "nosdu version %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// showProgress redraws the crawl counters in place until run finishes.
func showProgress(w io.Writer, run *crawler.Run) {
	live := uilive.New()
	live.Out = w
	live.Start()
	defer live.Stop()

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-run.Done():
			fmt.Fprintf(live, "%s\n", progressLine(run.Root(), run.Progress()))
			return
		case <-tick.C:
			fmt.Fprintf(live, "%s\n", progressLine(run.Root(), run.Progress()))
		}
	}
}

// spinner animates an indeterminate bar on a terminal until the returned
// func is called.
func spinner(w io.Writer, desc string) func() {
	if !isTerminal(w) {
		return func() {}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		tick := time.NewTicker(100 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-done:
				_ = bar.Finish()
				return
			case <-tick.C:
				_ = bar.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
