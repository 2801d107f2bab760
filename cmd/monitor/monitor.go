package monitor

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/kws-go/internal/conf"
	"github.com/tphakala/kws-go/internal/debugstream"
)

// Summary describes a decoded telemetry capture.
type Summary struct {
	Packets   int
	Skipped   int64
	Truncated bool
	Top       map[string]int // packets per top label
}

// Command creates the monitor command decoding a telemetry capture.
func Command(settings *conf.Settings) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "monitor <file|->",
		Short: "Decode a classifier telemetry capture",
		Long:  "Read telemetry packets written by the debug stream and print the top label of every packet.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := debugstream.OpenInput(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = in.Close() }()

			featureLen := settings.Features.SliceCount * settings.Features.SliceWidth
			_, err = Decode(cmd.OutOrStdout(), in, settings.Model.Labels, featureLen, verbose)
			return err
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also print feature range per packet")
	return cmd
}

// Decode prints one line per packet from r and a summary at the end. A
// packet cut off by the end of the stream is reported, not returned as an
// error.
func Decode(w io.Writer, r io.Reader, labels []string, featureLen int, verbose bool) (Summary, error) {
	dec := debugstream.NewDecoder(r, featureLen, len(labels))
	sum := Summary{Top: make(map[string]int, len(labels))}

	for {
		pkt, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			sum.Truncated = true
			break
		}
		if err != nil {
			sum.Skipped = dec.Skipped()
			return sum, err
		}

		top := pkt.Top()
		label := labels[top]
		sum.Top[label]++

		fmt.Fprintf(w, "%6d  %-10s %3d  %s", sum.Packets, label, pkt.Posteriors[top], formatScores(pkt.Posteriors))
		if verbose {
			lo, hi := featureRange(pkt.Features)
			fmt.Fprintf(w, "  features %d..%d", lo, hi)
		}
		fmt.Fprintln(w)
		sum.Packets++
	}

	sum.Skipped = dec.Skipped()
	fmt.Fprintf(w, "\n%d packets, %d bytes skipped", sum.Packets, sum.Skipped)
	if sum.Truncated {
		fmt.Fprint(w, ", last packet truncated")
	}
	fmt.Fprintln(w)
	for _, l := range labels {
		if n := sum.Top[l]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", l, n)
		}
	}
	return sum, nil
}

func formatScores(scores []uint8) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = fmt.Sprintf("%3d", s)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func featureRange(features []int8) (lo, hi int8) {
	if len(features) == 0 {
		return 0, 0
	}
	lo, hi = features[0], features[0]
	for _, f := range features[1:] {
		lo = min(lo, f)
		hi = max(hi, f)
	}
	return lo, hi
}
