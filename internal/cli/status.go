package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/shelf/internal/store"
	"github.com/roach88/shelf/internal/syncer"
)

// StatusReport describes the locally installed dataset.
type StatusReport struct {
	Version        string        `json:"version,omitempty"`
	PendingVersion string        `json:"pending_version,omitempty"`
	LastSync       *time.Time    `json:"last_sync,omitempty"`
	ContentHash    string        `json:"content_hash,omitempty"`
	Records        int           `json:"records"`
	Assets         int           `json:"assets"`
	Storage        StorageReport `json:"storage"`
	DataDir        string        `json:"data_dir"`
}

// StorageReport is the local storage usage.
type StorageReport struct {
	UsedBytes   int64   `json:"used_bytes"`
	QuotaBytes  int64   `json:"quota_bytes"`
	PercentUsed float64 `json:"percent_used"`
	NearQuota   bool    `json:"near_quota"`
}

// SyncReport is the orchestrator status after a sync or check.
type SyncReport struct {
	State            string     `json:"state"`
	DataSource       string     `json:"data_source"`
	CurrentVersion   string     `json:"current_version,omitempty"`
	AvailableVersion string     `json:"available_version,omitempty"`
	LastSync         *time.Time `json:"last_sync,omitempty"`
	Message          string     `json:"message,omitempty"`
	Error            string     `json:"error,omitempty"`
	RateLimitedUntil *time.Time `json:"rate_limited_until,omitempty"`
}

func newSyncReport(st syncer.Status) SyncReport {
	r := SyncReport{
		State:            string(st.State),
		DataSource:       string(st.DataSource),
		CurrentVersion:   st.CurrentVersion,
		AvailableVersion: st.AvailableVersion,
		LastSync:         timePtr(st.LastSync),
		Message:          st.Message,
		RateLimitedUntil: timePtr(st.RateLimitedUntil),
	}
	if st.Err != nil {
		r.Error = st.Err.Error()
	}
	return r
}

func (r SyncReport) writeText(w io.Writer) {
	version := r.CurrentVersion
	if version == "" {
		version = "none"
	}
	fmt.Fprintf(w, "State:     %s (%s)\n", r.State, r.DataSource)
	fmt.Fprintf(w, "Version:   %s\n", version)
	if r.AvailableVersion != "" {
		fmt.Fprintf(w, "Available: %s\n", r.AvailableVersion)
	}
	fmt.Fprintf(w, "Last sync: %s\n", relativeTime(r.LastSync))
	if r.RateLimitedUntil != nil {
		fmt.Fprintf(w, "Rate limited until %s\n", r.RateLimitedUntil.Local().Format(time.RFC1123))
	}
	if r.Message != "" {
		fmt.Fprintf(w, "%s\n", r.Message)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the installed dataset",
		Long: `Show the locally installed dataset without contacting the feed.

Reports the installed version, when it was synced, how many records
and assets are stored, and how much of the storage quota is in use.

Example:
  shelf status
  shelf status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.initStore(ctx); err != nil {
		return err
	}

	report, err := collectStatus(ctx, a)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeStore, "failed to read local store", err)
	}
	return a.out.Success(report, report.writeText)
}

func collectStatus(ctx context.Context, a *app) (StatusReport, error) {
	r := StatusReport{DataDir: a.cfg.DataDir}

	var err error
	if r.Version, _, err = a.store.GetMetadata(ctx, store.MetaVersion); err != nil {
		return r, err
	}
	if r.PendingVersion, _, err = a.store.GetMetadata(ctx, store.MetaPendingVersion); err != nil {
		return r, err
	}
	if r.ContentHash, _, err = a.store.GetMetadata(ctx, store.MetaContentHash); err != nil {
		return r, err
	}
	raw, ok, err := a.store.GetMetadata(ctx, store.MetaLastSync)
	if err != nil {
		return r, err
	}
	if ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			r.LastSync = &t
		}
	}

	if r.Records, err = a.store.CountRecords(ctx); err != nil {
		return r, err
	}
	if r.Assets, err = a.store.AssetCount(); err != nil {
		return r, err
	}

	q, err := a.store.GetStorageQuota(ctx)
	if err != nil {
		return r, err
	}
	near, err := a.store.IsNearQuota(ctx)
	if err != nil {
		return r, err
	}
	r.Storage = StorageReport{
		UsedBytes:   q.UsedBytes,
		QuotaBytes:  q.QuotaBytes,
		PercentUsed: q.PercentUsed,
		NearQuota:   near,
	}
	return r, nil
}

func (r StatusReport) writeText(w io.Writer) {
	if r.Version == "" {
		fmt.Fprintln(w, "No dataset installed. Run 'shelf sync' to install the latest release.")
	} else {
		fmt.Fprintf(w, "Version:   %s\n", r.Version)
		fmt.Fprintf(w, "Last sync: %s\n", relativeTime(r.LastSync))
		fmt.Fprintf(w, "Records:   %s\n", humanize.Comma(int64(r.Records)))
		fmt.Fprintf(w, "Assets:    %s\n", humanize.Comma(int64(r.Assets)))
	}
	if r.PendingVersion != "" {
		fmt.Fprintf(w, "Warning: install of %s was interrupted; the next sync reinstalls it\n", r.PendingVersion)
	}
	fmt.Fprintf(w, "Storage:   %s of %s (%.1f%%)\n",
		humanize.Bytes(uint64(r.Storage.UsedBytes)),
		humanize.Bytes(uint64(r.Storage.QuotaBytes)),
		r.Storage.PercentUsed)
	if r.Storage.NearQuota {
		fmt.Fprintln(w, "Warning: storage is nearly full")
	}
	fmt.Fprintf(w, "Data dir:  %s\n", r.DataDir)
}

func relativeTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", humanize.Time(*t), t.Local().Format(time.RFC3339))
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
