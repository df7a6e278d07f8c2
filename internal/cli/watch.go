package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/shelf/internal/config"
	"github.com/roach88/shelf/internal/syncer"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Interval    time.Duration
	AutoInstall bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check for updates periodically",
		Long: `Initialize the local dataset, then check the feed every poll interval
until interrupted. Each sync event is printed as it happens; with
--format json events are written one JSON object per line.

With --auto-install (or auto_install in the config file) newer releases
are installed as soon as they are found.

Example:
  shelf watch
  shelf watch --interval 10m --auto-install`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "poll interval (default from config)")
	cmd.Flags().BoolVar(&opts.AutoInstall, "auto-install", false, "install newer releases when found")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(opts.RootOptions, cmd, func(cfg *config.Config) {
		if opts.Interval > 0 {
			cfg.PollInterval = opts.Interval
		}
		if opts.AutoInstall {
			cfg.AutoInstall = true
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	printer := &eventPrinter{out: a.out}
	a.orch.AddEventListener(printer.listen)

	if err := a.orch.Initialize(ctx); err != nil {
		return a.out.Fail(ExitFailure, ErrCodeSync, "initialization failed", err)
	}
	a.orch.StartPeriodicChecks()
	a.logger.Info("watching for updates", "interval", a.cfg.PollInterval, "auto_install", a.cfg.AutoInstall)
	if !a.out.JSON() {
		fmt.Fprintf(a.out.GetErrWriter(), "Watching for updates every %s. Press Ctrl-C to stop.\n", a.cfg.PollInterval)
	}

	<-ctx.Done()
	a.logger.Info("watch stopped")
	return nil
}

// WatchEvent is one line of watch output in JSON format.
type WatchEvent struct {
	Type   string     `json:"type"`
	Seq    int64      `json:"seq"`
	Status SyncReport `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// eventPrinter writes events to the output writer. Listeners run on
// the orchestrator's goroutines, so writes are serialized.
type eventPrinter struct {
	out *OutputFormatter
	mu  sync.Mutex
}

func (p *eventPrinter) listen(ev syncer.Event) {
	if ev.Type == syncer.EventDownloadProgress {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	line := WatchEvent{Type: string(ev.Type), Seq: ev.Seq, Status: newSyncReport(ev.Status)}
	if ev.Err != nil {
		line.Error = ev.Err.Error()
	}
	if p.out.JSON() {
		_ = json.NewEncoder(p.out.Writer).Encode(line)
		return
	}

	fmt.Fprintf(p.out.Writer, "%s [%s] %s", time.Now().Format(time.TimeOnly), line.Type, line.Status.State)
	if line.Status.Message != "" {
		fmt.Fprintf(p.out.Writer, ": %s", line.Status.Message)
	}
	if line.Error != "" {
		fmt.Fprintf(p.out.Writer, " (%s)", line.Error)
	}
	fmt.Fprintln(p.out.Writer)
}
