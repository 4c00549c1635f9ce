package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-proof-must-flow/internal/cli"
	"github.com/Veraticus/the-proof-must-flow/internal/ledger"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and maintain the uniqueness ledger",
		Long: `The ledger holds the content hash of every accepted submission. A submission
whose hash is already recorded scores 0 uniqueness.`,
		Example: `  # Print the hash of a submission
  proof ledger hash data.json

  # Allow a submission to be scored as unique again
  proof ledger remove $(proof ledger hash data.json)`,
	}

	cmd.AddCommand(ledgerHashCmd())
	cmd.AddCommand(ledgerListCmd())
	cmd.AddCommand(ledgerCheckCmd())
	cmd.AddCommand(ledgerAddCmd())
	cmd.AddCommand(ledgerRemoveCmd())

	return cmd
}

func ledgerHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash FILE",
		Short: "Print the ledger digest of a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			digest, err := hashFile(args[0])
			if err != nil {
				return err
			}
			fmt.Println(digest)
			return nil
		},
	}
}

func ledgerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded digests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := initServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			hashes, err := svc.ledger.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list ledger: %w", err)
			}
			for _, h := range hashes {
				fmt.Println(h)
			}
			fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("%d digests recorded", len(hashes))))
			return nil
		},
	}
}

func ledgerCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Report whether a submission is already recorded, without recording it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := hashFile(args[0])
			if err != nil {
				return err
			}

			svc, err := initServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			found, err := svc.ledger.Contains(cmd.Context(), digest)
			if err != nil {
				return fmt.Errorf("failed to read ledger: %w", err)
			}
			if found {
				fmt.Println(cli.FormatWarning("Already recorded: " + digest))
			} else {
				fmt.Println(cli.FormatSuccess("Not recorded: " + digest))
			}
			return nil
		},
	}
}

func ledgerAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add DIGEST...",
		Short: "Record digests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := initServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			for _, digest := range args {
				changed, err := svc.ledger.Add(cmd.Context(), digest)
				if err != nil {
					return fmt.Errorf("failed to add %s: %w", digest, err)
				}
				printChange(changed, "Added", "Already recorded", digest)
			}
			return nil
		},
	}
}

func ledgerRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove DIGEST...",
		Short: "Forget digests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := initServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			for _, digest := range args {
				changed, err := svc.ledger.Remove(cmd.Context(), digest)
				if err != nil {
					return fmt.Errorf("failed to remove %s: %w", digest, err)
				}
				printChange(changed, "Removed", "Not recorded", digest)
			}
			return nil
		},
	}
}

func hashFile(path string) (string, error) {
	data, err := readInput(path)
	if err != nil {
		return "", err
	}
	return ledger.Hash(data)
}

func printChange(changed bool, did, skipped, digest string) {
	if changed {
		fmt.Println(cli.FormatSuccess(did + " " + digest))
		return
	}
	fmt.Println(cli.FormatInfo(skipped + " " + digest))
}
