package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "Identify the person in a photo",
	Long: `Identify runs one photo through the full pipeline and prints the
result as JSON: the outcome, the matched identity (if any), the
similarity score and the quality assessment.

Examples:
  # Identify a single photo
  facegate identify selfie.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	imageData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	ctx := context.Background()
	svcs, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.close()

	if err := svcs.warmup(ctx); err != nil {
		return err
	}

	res, err := svcs.pipeline.Identify(ctx, imageData)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
