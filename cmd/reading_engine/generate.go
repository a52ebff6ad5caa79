package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/visara/reading-engine/internal/reading"
)

var (
	generateKind    string
	generateAccount string
)

var generateCmd = &cobra.Command{
	Use:   "generate <subject-id>",
	Short: "Generate a reading synchronously and print it",
	Long:  `Run the generation pipeline for one subject without going through the job queue. Billed kinds require --account.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateKind, "kind", "teaser", "Reading kind: teaser, full or legacy")
	generateCmd.Flags().StringVar(&generateAccount, "account", "", "Account ID to bill for paid kinds")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	subjectID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid subject ID: %w", err)
	}

	kind := reading.Kind(generateKind)
	if !kind.Valid() {
		return fmt.Errorf("unknown reading kind %q", generateKind)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := buildApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.close()

	var result *reading.Reading
	switch kind {
	case reading.KindTeaser:
		result, err = a.manager.GenerateTeaserReading(ctx, subjectID)
	case reading.KindLegacy:
		result, err = a.manager.GenerateLegacyReading(ctx, subjectID)
	case reading.KindFull:
		if generateAccount == "" {
			return fmt.Errorf("--account is required for kind %q", kind)
		}
		accountID, parseErr := uuid.Parse(generateAccount)
		if parseErr != nil {
			return fmt.Errorf("invalid account ID: %w", parseErr)
		}
		result, err = a.manager.GeneratePaidReading(ctx, subjectID, accountID)
	}
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
