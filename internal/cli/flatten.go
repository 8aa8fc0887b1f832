package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sile/magpies/internal/ingest"
	"github.com/sile/magpies/internal/record"
)

func newFlattenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "flatten [FILE]",
		Short:   "Print every metric leaf of every record, one per line",
		GroupID: "tools",
		Long: "flatten prints \"TARGET TIMESTAMP PATH KIND VALUE\" for each leaf, tab separated, " +
			"to check how records are split into metric paths.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ingest.Stdin
			if len(args) == 1 {
				path = args[0]
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			reader, err := ingest.Open(ctx, ingest.Options{Path: path}, cmd.InOrStdin())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			lineNo, rejected := 0, 0
			for line := range reader.Lines() {
				lineNo++
				s, err := record.Parse([]byte(line))
				if err != nil {
					rejected++
					fmt.Fprintf(a.stderr, "line %d: %v\n", lineNo, err)
					continue
				}
				for _, m := range s.Metrics {
					fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", s.Target, record.Numeric(s.Timestamp), m.Path, m.Value.Kind(), m.Value)
				}
				if leafErr := s.LeafError(); leafErr != nil {
					rejected++
					fmt.Fprintf(a.stderr, "line %d: %v\n", lineNo, leafErr)
				}
			}
			if err := reader.Err(); err != nil {
				return err
			}
			if rejected > 0 {
				return fmt.Errorf("%d of %d lines had errors", rejected, lineNo)
			}
			return nil
		},
	}
	return cmd
}
