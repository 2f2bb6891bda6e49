package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"oceangateway/internal/gateway"
	"oceangateway/internal/reader/local"
	"oceangateway/internal/scheduler"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const (
	watchJob      = "gateway-run"
	debounceDelay = 500 * time.Millisecond
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the gateway on a schedule and when inputs change",
		Long: "Runs the gateway once, then again on every --cron tick (or every --every), " +
			"and whenever the configuration file or a file matched by a local source changes. " +
			"Each run re-reads the configuration.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cronExpr, _ := cmd.Flags().GetString("cron")
			every, _ := cmd.Flags().GetDuration("every")

			e, err := a.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			opts, err := runOptionsFromFlags(cmd, e)
			if err != nil {
				return err
			}
			return watch(cmd.Context(), e, opts, cronExpr, every, cmd.OutOrStdout())
		},
	}
	addRunFlags(cmd)
	cmd.Flags().String("cron", "", `five-field cron schedule, e.g. "*/30 * * * *"`)
	cmd.Flags().Duration("every", time.Hour, "run interval when --cron is not set")
	return cmd
}

func watch(ctx context.Context, e *env, opts runOptions, cronExpr string, every time.Duration, w io.Writer) error {
	logger := e.logger.With("component", "watch")

	sched, err := scheduler.New(e.logger)
	if err != nil {
		return err
	}
	defer func() { _ = sched.Stop() }()

	var outMu sync.Mutex
	job := func() {
		outMu.Lock()
		defer outMu.Unlock()
		if _, err := runOnce(ctx, e, opts, w); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("gateway run failed", "error", err)
		}
		if next, ok := nextRun(sched.Jobs(), watchJob); ok {
			logger.Info("next scheduled run", "at", next)
		}
	}
	if cronExpr != "" {
		err = sched.AddCron(watchJob, cronExpr, job)
	} else {
		err = sched.AddInterval(watchJob, every, job)
	}
	if err != nil {
		return err
	}
	sched.Start()
	if err := sched.RunNow(watchJob); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	patterns := localPatterns(ctx, e)
	for _, dir := range watchDirs(e.configPath, patterns) {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("failed to watch directory", "dir", dir, "error", err)
		}
	}

	var timer *time.Timer
	trigger := func() {
		if err := sched.RunNow(watchJob); err != nil {
			logger.Warn("triggered run failed", "error", err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watch stopping")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, e.configPath, patterns) {
				continue
			}
			logger.Debug("input changed", "path", event.Name, "op", event.Op.String())
			if event.Name == e.configPath {
				// The new configuration may name new local files.
				patterns = localPatterns(ctx, e)
				for _, dir := range watchDirs("", patterns) {
					_ = watcher.Add(dir)
				}
			}
			if timer == nil {
				timer = time.AfterFunc(debounceDelay, trigger)
			} else {
				timer.Reset(debounceDelay)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("fsnotify error", "error", err)
		}
	}
}

// localPatterns collects the filenames patterns of every local reader in
// the current configuration. Only the expansion runs, so a reader that would
// fail to build does not hide the local files. A configuration that fails
// to load or expand yields none; the run itself reports the error.
func localPatterns(ctx context.Context, e *env) []string {
	cfg, err := e.loadConfig(ctx)
	if err != nil {
		e.logger.Debug("no local patterns", "error", err)
		return nil
	}
	plans, err := gateway.Expand(cfg, e.table)
	if err != nil {
		e.logger.Debug("no local patterns", "error", err)
		return nil
	}
	var out []string
	for _, p := range plans {
		if p.Source != local.Name {
			continue
		}
		names, err := p.Spec.Strings(local.KeyFilenames)
		if err != nil {
			e.logger.Debug("ignoring local filenames", "error", err, slog.String("reader", planLabel(p)))
			continue
		}
		out = append(out, names...)
	}
	return out
}

// nextRun returns when the named job is next due.
func nextRun(jobs []scheduler.JobInfo, name string) (time.Time, bool) {
	for _, j := range jobs {
		if j.Name == name && !j.NextRun.IsZero() {
			return j.NextRun, true
		}
	}
	return time.Time{}, false
}

// watchDirs returns the configuration file's directory plus the static
// directories of the local patterns.
func watchDirs(configPath string, patterns []string) []string {
	dirs := local.WatchDirs(patterns)
	if configPath != "" {
		dirs = append(dirs, filepath.Dir(configPath))
	}
	return dirs
}

func relevant(event fsnotify.Event, configPath string, patterns []string) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	if configPath != "" && event.Name == configPath {
		return true
	}
	return local.Matches(event.Name, patterns)
}
