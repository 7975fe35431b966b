package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pendergraft/cleanfi/internal/chains"
	"github.com/pendergraft/cleanfi/internal/config"
	"github.com/pendergraft/cleanfi/internal/leaderboard/domain"
)

// importFile is the layout of a leaderboard import:
//
//	entries:
//	  - address: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
//	    cleanups: 12
//	    votes: 30
//	    rewards: "25.5"
type importFile struct {
	Entries []domain.ImportEntry `yaml:"entries"`
}

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Seed and inspect the leaderboard",
	}
	cmd.AddCommand(newLeaderboardImportCmd())
	cmd.AddCommand(newLeaderboardListCmd())
	return cmd
}

func newLeaderboardImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Upsert leaderboard entries from a YAML file",
		Long: `Upsert leaderboard entries from a YAML file.

Rewards are given either in native units (rewards: "25.5") or in wei
(rewardsWei: "25500000000000000000"). Import stops at the first invalid
entry; entries before it are kept.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cfg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			symbol, err := nativeSymbol(cfg.Chain)
			if err != nil {
				return err
			}
			svc := domain.NewService(store, symbol)
			return runLeaderboardImport(ctx, cmd.OutOrStdout(), svc, args[0])
		},
	}
}

func newLeaderboardListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the top contributors",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cfg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			symbol, err := nativeSymbol(cfg.Chain)
			if err != nil {
				return err
			}
			svc := domain.NewService(store, symbol)
			return runLeaderboardList(ctx, cmd.OutOrStdout(), svc, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", domain.DefaultLimit, "number of entries")
	return cmd
}

func runLeaderboardImport(ctx context.Context, out io.Writer, svc domain.Service, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading import file: %w", err)
	}

	var f importFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing import file: %w", err)
	}
	if len(f.Entries) == 0 {
		return fmt.Errorf("import file %s has no entries", path)
	}

	n, err := svc.Import(ctx, f.Entries)
	if err != nil {
		return fmt.Errorf("imported %d of %d entries: %w", n, len(f.Entries), err)
	}
	fmt.Fprintf(out, "✅ Imported %d leaderboard entries\n", n)
	return nil
}

func runLeaderboardList(ctx context.Context, out io.Writer, svc domain.Service, limit int) error {
	entries, err := svc.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "Leaderboard is empty")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tADDRESS\tCLEANUPS\tVOTES\tREWARDS")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", e.Rank, e.Address, e.Cleanups, e.Votes, e.Rewards)
	}
	return w.Flush()
}

// nativeSymbol resolves the chain's symbol the way the server does: built-in
// chains first, overridden by the chains file when one is configured.
// Unknown chains yield "".
func nativeSymbol(cfg config.ChainConfig) (string, error) {
	registry := chains.DefaultRegistry()
	if cfg.ChainsFile != "" {
		if err := registry.LoadFile(cfg.ChainsFile); err != nil {
			return "", err
		}
	}
	if c, ok := registry.Get(cfg.ID); ok {
		return c.NativeSymbol, nil
	}
	return "", nil
}
