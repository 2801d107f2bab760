package history

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/kws-go/internal/conf"
	"github.com/tphakala/kws-go/internal/datastore"
	"github.com/tphakala/kws-go/internal/errors"
)

// Command creates the history command listing stored detections.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		opts    datastore.ListOptions
		since   time.Duration
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored detections",
		Long:  "Print detections saved in the history database, newest first, or a per-label summary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if settings.Store.Type != conf.StoreMySQL && settings.Store.Path == "" {
				return errors.Newf("store.path is not configured").
					Component("history").
					Category(errors.CategoryConfiguration).
					Build()
			}
			store, err := datastore.OpenFromSettings(settings.Store)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if summary {
				return writeSummary(cmd.Context(), cmd.OutOrStdout(), store)
			}
			if since > 0 {
				opts.Since = time.Now().Add(-since)
			}
			return writeDetections(cmd.Context(), cmd.OutOrStdout(), store, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Label, "label", "", "Only list this label")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", datastore.DefaultListLimit, "Maximum number of detections")
	cmd.Flags().DurationVar(&since, "since", 0, "Only list detections newer than this, e.g. 24h")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print detection counts per label")

	return cmd
}

func writeDetections(ctx context.Context, w io.Writer, store datastore.Interface, opts datastore.ListOptions) error {
	rows, err := store.List(ctx, opts)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no detections")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tLABEL\tSCORE\tCONFIDENCE\tSOURCE")
	for _, d := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%s\n",
			d.DetectedAt.Local().Format(time.DateTime), d.Label, d.Score, d.Confidence, d.Source)
	}
	return tw.Flush()
}

func writeSummary(ctx context.Context, w io.Writer, store datastore.Interface) error {
	counts, err := store.Summary(ctx)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		_, err := fmt.Fprintln(w, "no detections")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tCOUNT\tLAST")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Label, c.Count, c.Last.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
