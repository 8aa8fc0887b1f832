package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sile/magpies/internal/record"
)

func newTargetCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:     "target [--target NAME] COMMAND [ARGS...]",
		Short:   "Print a poll target descriptor for a command",
		GroupID: "core",
		Example: `  magpies target --target local redis-cli -p 6379 info >> targets.jsonl`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				name = defaultTargetName()
			}
			t := record.Target{Name: name, CommandPath: args[0], CommandArgs: args[1:]}
			if err := t.Validate(); err != nil {
				return err
			}
			b, err := json.Marshal(t)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	// flags after COMMAND belong to it
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&name, "target", "", "target name (default target-<random>)")
	return cmd
}

func defaultTargetName() string {
	return "target-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
