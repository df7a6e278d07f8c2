package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/roach88/shelf/internal/record"
)

// RecordsOptions holds flags for the records list command.
type RecordsOptions struct {
	*RootOptions
	Category string
}

// NewRecordsCommand creates the records command and its subcommands.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Read the installed records",
		Long: `Read records from the locally installed dataset. These commands never
contact the feed.`,
	}

	cmd.AddCommand(newRecordsListCommand(rootOpts))
	cmd.AddCommand(newRecordsSearchCommand(rootOpts))
	cmd.AddCommand(newRecordsGetCommand(rootOpts))

	return cmd
}

func newRecordsListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records ordered by id",
		Long: `List every installed record ordered by id.

Example:
  shelf records list
  shelf records list --category icon --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordsList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Category, "category", "", "only list records of this category")

	return cmd
}

func runRecordsList(opts *RecordsOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	if opts.Category != "" && !record.IsCategory(opts.Category) {
		out := newFormatter(opts.RootOptions, cmd)
		return out.Fail(ExitCommandError, ErrCodeGeneric,
			fmt.Sprintf("unknown category %q: must be one of %v", opts.Category, record.Categories), nil)
	}

	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.initStore(ctx); err != nil {
		return err
	}

	var recs []record.Record
	if opts.Category != "" {
		stored, err := a.store.GetRecordsByCategory(ctx, opts.Category)
		if err != nil {
			return a.out.Fail(ExitCommandError, ErrCodeStore, "failed to read records", err)
		}
		recs = record.StripAll(stored)
	} else if recs, err = a.orch.Records(ctx); err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeStore, "failed to read records", err)
	}
	return outputRecords(a.out, recs)
}

func newRecordsSearchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find records by name or id",
		Long: `Find records whose name or id contains the query, ignoring case.
Results are ordered by name.

Example:
  shelf records search arrow`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordsSearch(rootOpts, args[0], cmd)
		},
	}
}

func runRecordsSearch(opts *RootOptions, query string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.initStore(ctx); err != nil {
		return err
	}

	recs, err := a.orch.SearchRecords(ctx, query)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeStore, "search failed", err)
	}
	return outputRecords(a.out, recs)
}

func newRecordsGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one record",
		Long: `Print the record with the given id as JSON.

Example:
  shelf records get arrow-left`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordsGet(rootOpts, args[0], cmd)
		},
	}
}

func runRecordsGet(opts *RootOptions, id string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.initStore(ctx); err != nil {
		return err
	}

	rec, err := a.orch.Record(ctx, id)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeStore, "failed to read record", err)
	}
	if rec == nil {
		return a.out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("record %q not found", id), nil)
	}
	return a.out.Success(rec, func(w io.Writer) {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			fmt.Fprintf(w, "%s (%s)\n", rec.Name(), rec.ID())
			return
		}
		fmt.Fprintln(w, string(data))
	})
}

func outputRecords(out *OutputFormatter, recs []record.Record) error {
	if recs == nil {
		recs = []record.Record{}
	}
	return out.Success(recs, func(w io.Writer) {
		if len(recs) == 0 {
			fmt.Fprintln(w, "No records.")
			return
		}
		for _, rec := range recs {
			fmt.Fprintf(w, "%-32s %-13s %s\n", rec.ID(), rec.Category(), rec.Name())
		}
		fmt.Fprintf(w, "\n%d record(s)\n", len(recs))
	})
}

// AssetOptions holds flags for the asset command.
type AssetOptions struct {
	*RootOptions
	Output string
}

// AssetReport describes an asset written by the asset command.
type AssetReport struct {
	ID          string `json:"id"`
	Bytes       int    `json:"bytes"`
	ContentType string `json:"content_type"`
	Path        string `json:"path,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// NewAssetCommand creates the asset command.
func NewAssetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AssetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "asset <id>",
		Short: "Export a cached asset",
		Long: `Write the cached asset with the given id to a file, or to stdout when
no output file is given. In JSON format without -o the content is
base64-encoded in the response.

Example:
  shelf asset arrow-left -o arrow-left.svg
  shelf asset arrow-left > arrow-left.svg`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsset(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func runAsset(opts *AssetOptions, id string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.initStore(ctx); err != nil {
		return err
	}

	blob, err := a.orch.Asset(id)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeStore, "failed to read asset", err)
	}
	if blob == nil {
		return a.out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("asset %q not found", id), nil)
	}

	report := AssetReport{
		ID:          id,
		Bytes:       len(blob),
		ContentType: mimetype.Detect(blob).String(),
	}

	if opts.Output == "" {
		if a.out.JSON() {
			report.Data = blob
			return a.out.Success(report, nil)
		}
		_, err := a.out.Writer.Write(blob)
		return err
	}

	if err := os.WriteFile(opts.Output, blob, 0o644); err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeWrite, "failed to write asset", err)
	}
	report.Path = opts.Output
	return a.out.Success(report, func(w io.Writer) {
		fmt.Fprintf(w, "Wrote %s (%s, %s) to %s\n", id, humanize.Bytes(uint64(report.Bytes)), report.ContentType, report.Path)
	})
}
