package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-proof-must-flow/internal/cli"
)

func referenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Manage the planted-answer reference dataset",
		Long: `The reference dataset holds known answers planted among preference
questions. Submissions that disagree with it fail the poison check.`,
	}

	cmd.AddCommand(referenceUploadCmd())
	cmd.AddCommand(referenceShowCmd())

	return cmd
}

func referenceUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Validate and upload a reference dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}

			svc, err := initServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			n, err := svc.reference.Upload(cmd.Context(), data)
			if err != nil {
				return fmt.Errorf("failed to upload reference: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Uploaded %d reference answers to %s/%s",
				n, svc.cfg.Reference.Bucket, svc.cfg.Reference.Key)))
			return nil
		},
	}
}

func referenceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Fetch the reference dataset and print its answers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := initServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			answers, err := svc.reference.Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch reference: %w", err)
			}

			ids := make([]string, 0, len(answers))
			for id := range answers {
				ids = append(ids, id)
			}
			slices.Sort(ids)
			for _, id := range ids {
				fmt.Printf("%s\t%s\n", id, answers[id].Raw)
			}
			fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("%d reference answers", len(ids))))
			return nil
		},
	}
}
