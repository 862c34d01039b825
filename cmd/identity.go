package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/identity"
	"github.com/facegate/facegate/internal/index/postgres"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage enrolled identities",
}

var identityDeleteCmd = &cobra.Command{
	Use:   "delete <identity-id|display-name>",
	Short: "Remove an identity and all its embeddings",
	Long: `Delete removes every enrolled embedding for the identity and, with the
postgres backend, its directory record. The argument is an identity id;
with the postgres backend a display name (diacritics and case ignored)
works too. Removal is immediate: the identity cannot match again once
the command returns.`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentityDelete,
}

var identityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List identities in the directory (postgres backend)",
	RunE:  runIdentityList,
}

func init() {
	rootCmd.AddCommand(identityCmd)
	identityCmd.AddCommand(identityDeleteCmd)
	identityCmd.AddCommand(identityListCmd)
}

func runIdentityDelete(cmd *cobra.Command, args []string) error {
	identityID := args[0]

	ctx := context.Background()
	svcs, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.close()

	if svcs.dbPool != nil {
		dir := postgres.NewDirectory(svcs.dbPool)
		if _, err := dir.GetIdentity(ctx, identityID); errors.Is(err, identity.ErrNotFound) {
			// Not an id; try it as a display name.
			rec, err := dir.FindByName(ctx, identityID)
			if errors.Is(err, identity.ErrNotFound) {
				return fmt.Errorf("no identity with id or name %q", identityID)
			}
			if err != nil {
				return fmt.Errorf("resolving identity: %w", err)
			}
			identityID = rec.ID
		}

		if err := svcs.index.Delete(ctx, identityID); err != nil {
			return fmt.Errorf("deleting embeddings: %w", err)
		}
		if err := dir.DeleteIdentity(ctx, identityID); err != nil {
			return fmt.Errorf("deleting directory record: %w", err)
		}
	} else {
		if err := svcs.index.Delete(ctx, identityID); err != nil {
			return fmt.Errorf("deleting embeddings: %w", err)
		}
	}

	fmt.Printf("Deleted %s\n", identityID)
	return nil
}

func runIdentityList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svcs, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.close()

	if svcs.dbPool == nil {
		return fmt.Errorf("identity list requires the postgres backend")
	}

	identities, err := postgres.NewDirectory(svcs.dbPool).ListIdentities(ctx)
	if err != nil {
		return err
	}
	if len(identities) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}

	for _, rec := range identities {
		status := "active"
		if !rec.Active {
			status = "inactive"
		}
		faceAuth := ""
		if !rec.CanUseFaceAuth {
			faceAuth = ", face auth disabled"
		}
		fmt.Printf("%-24s %s (%s%s)\n", rec.ID, rec.DisplayName, status, faceAuth)
	}
	return nil
}
