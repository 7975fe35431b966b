package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/cleanfi/internal/actions/domain"
	"github.com/pendergraft/cleanfi/internal/chains/evm"
	"github.com/pendergraft/cleanfi/internal/validation"
	"github.com/pendergraft/cleanfi/pkg/client"
)

// actionOptions are the flags shared by vote and stake
type actionOptions struct {
	describe bool
	raw      bool
}

func createVoteCmd() *cobra.Command {
	return createActionCmd(domain.KindVote, `Build a vote transaction for a cleanup.

The vote pays the flat vote fee to the CleanFi receiver. The transaction is
printed, not sent: sign it with your wallet.

EXAMPLES:
  # Like cleanup 7
  cleanfi vote 7 like

  # Show the action card instead of building the transaction
  cleanfi vote 7 --describe

  # Print the serialized transaction only (for piping into a signer)
  cleanfi vote 7 dislike --raw
`)
}

func createStakeCmd() *cobra.Command {
	return createActionCmd(domain.KindStake, `Build a stake transaction for a cleanup.

The stake calls vote(cleanupId, isUpvote) on the CleanFi contract with the
configured stake as value. The server must have a contract address.

EXAMPLES:
  cleanfi stake 7 like
  cleanfi stake 7 dislike --raw
`)
}

func createActionCmd(kind domain.Kind, long string) *cobra.Command {
	var opts actionOptions

	cmd := &cobra.Command{
		Use:   string(kind) + " <cleanupId> [like|dislike]",
		Short: fmt.Sprintf("Build a %s transaction", kind),
		Long:  long,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			voteType := ""
			if len(args) == 2 {
				voteType = args[1]
			} else if config := loadProjectConfigSilent(); config != nil {
				voteType = config.VoteType
			}
			if voteType == "" {
				voteType = string(domain.Like)
			}
			return runAction(cmd.Context(), cmd.OutOrStdout(), newClient(), kind, args[0], voteType, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.describe, "describe", false, "show the action card (GET) instead of building a transaction")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print only the serialized transaction")

	return cmd
}

func runAction(ctx context.Context, out io.Writer, c *client.Client, kind domain.Kind, cleanupID, voteType string, opts actionOptions) error {
	if _, err := validation.ParseCleanupID(cleanupID); err != nil {
		return fmt.Errorf("invalid cleanup ID: %w", err)
	}
	if _, ok := domain.ParseStrictVoteType(voteType); !ok {
		return fmt.Errorf("invalid vote type %q: must be like or dislike", voteType)
	}

	if opts.describe {
		md, err := c.DescribeAction(ctx, string(kind), cleanupID, voteType)
		if err != nil {
			return fmt.Errorf("describing %s: %w", kind, err)
		}
		printMetadata(out, md)
		return nil
	}

	resp, err := c.BuildAction(ctx, string(kind), cleanupID, voteType)
	if err != nil {
		return fmt.Errorf("building %s: %w", kind, err)
	}
	if opts.raw {
		fmt.Fprintln(out, resp.Transaction)
		return nil
	}

	tx, err := resp.DecodeTransaction()
	if err != nil {
		return err
	}
	wei, err := tx.WeiValue()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s\n\n", resp.Message)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "To:\t%s\n", tx.To)
	fmt.Fprintf(w, "Value:\t%s (%s wei)\n", evm.FormatEther(wei), wei)
	fmt.Fprintf(w, "Chain ID:\t%d\n", tx.ChainID)
	fmt.Fprintf(w, "Data:\t%s\n", tx.Data)
	return w.Flush()
}

func printMetadata(out io.Writer, md *client.ActionMetadata) {
	fmt.Fprintf(out, "%s\n", md.Title)
	fmt.Fprintf(out, "%s\n\n", md.Description)
	fmt.Fprintf(out, "Icon:  %s\n", md.Icon)
	fmt.Fprintf(out, "Label: %s\n", md.Label)
	if len(md.Links.Actions) > 0 {
		fmt.Fprintln(out, "\nButtons:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, a := range md.Links.Actions {
			fmt.Fprintf(w, "  %s\t%s\n", a.Label, a.Href)
		}
		w.Flush()
	}
}

func createActionsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Show the server's action rules and protocol headers",
		Long: `Fetch /actions.json and preflight the vote action to show which
chain and action version the server advertises.

EXAMPLES:
  cleanfi actions
  cleanfi actions --json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActions(cmd.Context(), cmd.OutOrStdout(), newClient(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the rules as JSON")

	return cmd
}

func runActions(ctx context.Context, out io.Writer, c *client.Client, asJSON bool) error {
	rules, err := c.ActionRules(ctx)
	if err != nil {
		return fmt.Errorf("fetching action rules: %w", err)
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rules)
	}

	headers, err := c.Preflight(ctx, string(domain.KindVote))
	if err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	fmt.Fprintf(out, "Blockchain: %s\n", headers.Get("X-Blockchain-Ids"))
	fmt.Fprintf(out, "Version:    %s\n", headers.Get("X-Action-Version"))
	fmt.Fprintf(out, "\nRules (%d):\n", len(rules.Rules))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, r := range rules.Rules {
		fmt.Fprintf(w, "  %s\t-> %s\n", r.PathPattern, r.APIPath)
	}
	return w.Flush()
}
