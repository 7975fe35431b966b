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

func createCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Read cleanups and prepare uploads",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <cleanupId>",
		Short: "Show a cleanup record from the contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanupGet(cmd.Context(), cmd.OutOrStdout(), newClient(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "upload <proofRef>",
		Short: "Build the uploadCleanup transaction for a proof",
		Long: `Build the uploadCleanup transaction for a proof that is already pinned,
usually an IPFS CID. The transaction is printed, not sent.

EXAMPLES:
  cleanfi cleanup upload QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanupUpload(cmd.Context(), cmd.OutOrStdout(), newClient(), args[0])
		},
	})

	return cmd
}

func runCleanupGet(ctx context.Context, out io.Writer, c *client.Client, id string) error {
	if _, err := validation.ParseCleanupID(id); err != nil {
		return fmt.Errorf("invalid cleanup ID: %w", err)
	}

	cleanup, err := c.GetCleanup(ctx, id)
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("cleanup #%s does not exist", id)
		}
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Cleanup:\t#%s\n", cleanup.ID)
	fmt.Fprintf(w, "Uploader:\t%s\n", cleanup.Uploader)
	fmt.Fprintf(w, "Proof:\t%s\n", cleanup.ProofRef)
	if cleanup.ProofURL != "" {
		fmt.Fprintf(w, "Proof URL:\t%s\n", cleanup.ProofURL)
	}
	fmt.Fprintf(w, "Votes:\t👍 %s  👎 %s\n", cleanup.Upvotes, cleanup.Downvotes)
	return w.Flush()
}

func runCleanupUpload(ctx context.Context, out io.Writer, c *client.Client, proofRef string) error {
	if err := validation.ValidateProofRef(proofRef); err != nil {
		return err
	}

	tx, err := c.PrepareUpload(ctx, proofRef)
	if err != nil {
		return fmt.Errorf("preparing upload: %w", err)
	}
	wei, err := tx.WeiValue()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "To:\t%s\n", tx.To)
	fmt.Fprintf(w, "Value:\t%s\n", evm.FormatEther(wei))
	fmt.Fprintf(w, "Chain ID:\t%d\n", tx.ChainID)
	fmt.Fprintf(w, "Data:\t%s\n", tx.Data)
	return w.Flush()
}
