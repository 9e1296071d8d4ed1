package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/stl-revenue-crawler/internal/clock/system"
	"github.com/JakeFAU/stl-revenue-crawler/internal/hash/md5"
	"github.com/JakeFAU/stl-revenue-crawler/internal/identity"
)

// now is the clock used by the key command.
var now = func() time.Time { return system.New().Now() }

// newKeyCmd creates the 'key' subcommand.
func newKeyCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "key <item-url>...",
		Short: "Print the storage key of each item URL",
		Long: `Prints the key a record for each item URL is stored under, for the current
month or the month given with --month (YYYY-MM).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at := now()
			if month != "" {
				parsed, err := time.Parse("2006-01", month)
				if err != nil {
					return fmt.Errorf("parse --month %q: %w", month, err)
				}
				at = parsed
			}
			hasher := md5.New()
			for _, ref := range args {
				key, err := identity.KeyFor(hasher, ref, at)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, ref); err != nil {
					return fmt.Errorf("write key: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to compute keys for (YYYY-MM, default current UTC month)")
	return cmd
}
