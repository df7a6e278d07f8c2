package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/shelf/internal/store"
	"github.com/roach88/shelf/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Force bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Install the latest release if it is newer",
		Long: `Bring the local dataset up to date with the release feed.

On first run the latest release is downloaded, validated and installed.
Afterwards the feed is checked and a newer release replaces the local
dataset. --force reinstalls the latest release unconditionally.

Example:
  shelf sync
  shelf sync --force --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "reinstall the latest release even if it is installed")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	a.orch.AddEventListener(newProgressPrinter(a.out).listen)

	if opts.Force {
		if err := a.initStore(ctx); err != nil {
			return err
		}
		err = a.orch.DownloadAndInstall(ctx)
	} else {
		err = a.orch.Initialize(ctx)
		if err == nil {
			a.orch.Wait()
			st := a.orch.Status()
			switch {
			case st.State == syncer.StateError:
				err = st.Err
			case st.UpdateAvailable():
				err = a.orch.DownloadAndInstall(ctx)
			}
		}
	}

	report := newSyncReport(a.orch.Status())
	if err != nil {
		return a.out.Fail(ExitFailure, ErrCodeSync, "sync failed", err)
	}
	return a.out.Success(report, report.writeText)
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the feed for a newer release",
		Long: `Ask the release feed whether a newer release than the installed one
exists. Nothing is downloaded.

Example:
  shelf check
  shelf check --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd)
		},
	}
}

func runCheck(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.initStore(ctx); err != nil {
		return err
	}

	current, _, err := a.store.GetMetadata(ctx, store.MetaVersion)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeStore, "failed to read local store", err)
	}
	_, pending, err := a.store.GetMetadata(ctx, store.MetaPendingVersion)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeStore, "failed to read local store", err)
	}

	if current != "" && !pending {
		// Adopting the cached dataset starts the check in the background.
		if err := a.orch.Initialize(ctx); err != nil {
			return a.out.Fail(ExitFailure, ErrCodeSync, "update check failed", err)
		}
		a.orch.Wait()
	} else if _, err := a.orch.CheckForUpdates(ctx); err != nil {
		return a.out.Fail(ExitFailure, ErrCodeSync, "update check failed", err)
	}

	st := a.orch.Status()
	if st.State == syncer.StateError {
		return a.out.Fail(ExitFailure, ErrCodeSync, "update check failed", st.Err)
	}
	report := newSyncReport(st)
	return a.out.Success(report, report.writeText)
}

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Offline bool
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete local data and reinstall",
		Long: `Delete every stored record, cached asset and sync marker, then
install the latest release from scratch. --offline only deletes.

Example:
  shelf reset
  shelf reset --offline`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "clear local data without reinstalling")

	return cmd
}

func runReset(opts *ResetOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.initStore(ctx); err != nil {
		return err
	}

	if opts.Offline {
		if err := a.store.ClearAll(ctx); err != nil {
			return a.out.Fail(ExitCommandError, ErrCodeStore, "failed to clear local store", err)
		}
		return a.out.Success(map[string]bool{"cleared": true}, func(w io.Writer) {
			fmt.Fprintln(w, "Local data cleared.")
		})
	}

	a.orch.AddEventListener(newProgressPrinter(a.out).listen)
	if err := a.orch.ClearCacheAndResync(ctx); err != nil {
		return a.out.Fail(ExitFailure, ErrCodeSync, "resync failed", err)
	}
	report := newSyncReport(a.orch.Status())
	return a.out.Success(report, report.writeText)
}

// progressPrinter reports sync events on the diagnostic writer.
// Download progress is printed in steps of 10%.
type progressPrinter struct {
	out  *OutputFormatter
	last int // last printed tenth
}

func newProgressPrinter(out *OutputFormatter) *progressPrinter {
	return &progressPrinter{out: out, last: -1}
}

func (p *progressPrinter) listen(ev syncer.Event) {
	w := p.out.GetErrWriter()
	switch ev.Type {
	case syncer.EventDownloadProgress:
		if ev.Status.Progress == nil || p.out.JSON() {
			return
		}
		pct := int(ev.Status.Progress.Fraction() * 100)
		if pct/10 == p.last {
			return
		}
		p.last = pct / 10
		fmt.Fprintf(w, "Downloading: %s / %s (%d%%)\n",
			humanize.Bytes(uint64(ev.Status.Progress.Bytes)),
			humanize.Bytes(uint64(ev.Status.Progress.Total)),
			pct)
	case syncer.EventHashMismatch:
		fmt.Fprintln(w, "Warning: package content hash does not match its manifest")
	case syncer.EventInstalled:
		p.last = -1
		p.out.VerboseLog("installed %s", ev.Status.CurrentVersion)
	case syncer.EventStateChange:
		p.out.VerboseLog("%s: %s", ev.Status.State, ev.Status.Message)
	}
}
