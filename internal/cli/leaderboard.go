package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/cleanfi/internal/chains/evm"
	"github.com/pendergraft/cleanfi/internal/validation"
	"github.com/pendergraft/cleanfi/pkg/client"
)

func createLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show and manage the contributor leaderboard",
	}

	cmd.AddCommand(createLeaderboardListCmd())
	cmd.AddCommand(createLeaderboardGetCmd())
	cmd.AddCommand(createLeaderboardSetCmd())

	return cmd
}

func createLeaderboardListCmd() *cobra.Command {
	var limit int
	var full bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the top contributors",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				if config := loadProjectConfigSilent(); config != nil && config.Limit > 0 {
					limit = config.Limit
				}
			}
			return runLeaderboardList(cmd.Context(), cmd.OutOrStdout(), newClient(), limit, full)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of entries (default from server)")
	cmd.Flags().BoolVar(&full, "full", false, "show full addresses")

	return cmd
}

func createLeaderboardGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <address>",
		Short: "Show one contributor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboardGet(cmd.Context(), cmd.OutOrStdout(), newClient(), args[0])
		},
	}
}

func createLeaderboardSetCmd() *cobra.Command {
	var cleanups, votes int64
	var rewards string

	cmd := &cobra.Command{
		Use:   "set <address>",
		Short: "Replace a contributor's totals (requires an API key)",
		Long: `Replace a contributor's totals. Rewards are given in native units.

EXAMPLES:
  cleanfi leaderboard set 0x70997970C51812dc3A010C7d01b50e0d17dc79C8 --cleanups 12 --votes 30 --rewards 25.5
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboardSet(cmd.Context(), cmd.OutOrStdout(), newClient(), args[0], cleanups, votes, rewards)
		},
	}

	cmd.Flags().Int64Var(&cleanups, "cleanups", 0, "number of cleanups")
	cmd.Flags().Int64Var(&votes, "votes", 0, "number of votes received")
	cmd.Flags().StringVar(&rewards, "rewards", "0", "rewards in native units, e.g. 25.5")

	return cmd
}

func runLeaderboardList(ctx context.Context, out io.Writer, c *client.Client, limit int, full bool) error {
	resp, err := c.Leaderboard(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing leaderboard: %w", err)
	}
	if len(resp.Data) == 0 {
		fmt.Fprintln(out, "Leaderboard is empty")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tADDRESS\tCLEANUPS\tVOTES\tREWARDS")
	for _, e := range resp.Data {
		addr := e.Address
		if !full {
			addr = truncateAddress(addr)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", e.Rank, addr, e.Cleanups, e.Votes, e.Rewards)
	}
	return w.Flush()
}

func runLeaderboardGet(ctx context.Context, out io.Writer, c *client.Client, address string) error {
	if err := validation.ValidateAddress(address); err != nil {
		return err
	}

	e, err := c.GetLeaderboardEntry(ctx, address)
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("%s is not on the leaderboard", address)
		}
		return err
	}
	printEntry(out, e)
	return nil
}

func runLeaderboardSet(ctx context.Context, out io.Writer, c *client.Client, address string, cleanups, votes int64, rewards string) error {
	if err := validation.ValidateAddress(address); err != nil {
		return err
	}
	if cleanups < 0 || votes < 0 {
		return fmt.Errorf("cleanups and votes must not be negative")
	}
	wei, err := evm.ParseEther(rewards)
	if err != nil {
		return fmt.Errorf("invalid rewards %q: %w", rewards, err)
	}

	e, err := c.UpdateLeaderboardEntry(ctx, address, client.LeaderboardUpdate{
		Cleanups:   cleanups,
		Votes:      votes,
		RewardsWei: wei.String(),
	})
	if err != nil {
		if client.IsUnauthorized(err) {
			return fmt.Errorf("%w\n\nTIP: Run 'cleanfi auth login' or set CLEANFI_API_KEY", err)
		}
		return err
	}

	fmt.Fprintln(out, "✅ Updated leaderboard entry")
	printEntry(out, e)
	return nil
}

func printEntry(out io.Writer, e *client.LeaderboardEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Address:\t%s\n", e.Address)
	fmt.Fprintf(w, "Cleanups:\t%d\n", e.Cleanups)
	fmt.Fprintf(w, "Votes:\t%d\n", e.Votes)
	fmt.Fprintf(w, "Rewards:\t%s\n", e.Rewards)
	if e.UpdatedAt != "" {
		fmt.Fprintf(w, "Updated:\t%s\n", e.UpdatedAt)
	}
	w.Flush()
}
