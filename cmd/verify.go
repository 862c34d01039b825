package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <image> <identity-id>",
	Short: "Verify that a photo shows the claimed identity",
	Long: `Verify runs a one-to-one check: is the face in the photo the person
the identity id claims? Prints the verdict and the similarity score.

Examples:
  # Check a photo against an enrolled identity
  facegate verify selfie.jpg alice`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	imageData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	identityID := args[1]

	ctx := context.Background()
	svcs, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.close()

	if err := svcs.warmup(ctx); err != nil {
		return err
	}

	res, err := svcs.pipeline.Verify(ctx, imageData, identityID)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))
	if !res.Verified {
		os.Exit(1)
	}
	return nil
}
