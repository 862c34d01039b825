package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/identity"
	"github.com/facegate/facegate/internal/index/postgres"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <identity-id> <photo>...",
	Short: "Enroll an identity from one or more photos",
	Long: `Enroll computes face embeddings for the given photos and stores them
under the identity id. Arguments may be image files or directories,
which are scanned for jpg/jpeg/png files.

Photos that fail the quality gate or do not contain exactly one face are
skipped with a reason; enrollment succeeds when at least one photo is
usable.

Examples:
  # Enroll from a directory of photos (5 concurrent workers)
  facegate enroll alice ./photos/alice/

  # Enroll from specific files with a display name
  facegate enroll alice --name "Alice Novak" a1.jpg a2.jpg`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Int("concurrency", 5, "Number of parallel workers")
	enrollCmd.Flags().String("name", "", "Display name stored in the identity directory (postgres backend)")
}

// collectPhotos expands files and directories into a flat list of image paths.
func collectPhotos(args []string) ([]string, error) {
	var photos []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			photos = append(photos, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".jpg", ".jpeg", ".png":
				photos = append(photos, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", arg, err)
		}
	}
	return photos, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	displayName := mustGetString(cmd, "name")
	identityID := args[0]

	photos, err := collectPhotos(args[1:])
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		return fmt.Errorf("no photos found")
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

	fmt.Printf("Enrolling %s from %d photos\n\n", identityID, len(photos))

	bar := progressbar.NewOptions(len(photos),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled int
	var skipped []string
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, path := range photos {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer bar.Add(1)

			imageData, err := os.ReadFile(path)
			if err != nil {
				mu.Lock()
				skipped = append(skipped, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
				return
			}

			res, err := svcs.pipeline.Enroll(ctx, identityID, [][]byte{imageData})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reason := err.Error()
				if res != nil && len(res.Skipped) > 0 {
					reason = res.Skipped[0]
				}
				skipped = append(skipped, fmt.Sprintf("%s: %s", path, reason))
				return
			}
			enrolled += res.Enrolled
		}(path)
	}
	wg.Wait()

	fmt.Printf("\n\nEnrolled %d embeddings for %s\n", enrolled, identityID)
	for _, s := range skipped {
		fmt.Printf("  skipped %s\n", s)
	}
	if enrolled == 0 {
		return fmt.Errorf("no usable photos, %s was not enrolled", identityID)
	}

	// The postgres backend also keeps a directory record for face login.
	if svcs.dbPool != nil {
		name := displayName
		if name == "" {
			name = identityID
		}
		dir := postgres.NewDirectory(svcs.dbPool)
		rec := identity.Identity{ID: identityID, DisplayName: name, Active: true, CanUseFaceAuth: true}
		if err := dir.Put(ctx, rec); err != nil {
			return fmt.Errorf("saving directory record: %w", err)
		}
	}
	return nil
}
