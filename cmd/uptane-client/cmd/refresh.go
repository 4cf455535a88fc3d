package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/uptane/go-uptane/verifier"
)

var updateRootFirst bool

var refreshCmd = &cobra.Command{
	Use:     "refresh",
	Aliases: []string{"r"},
	Short:   "Verify the repository's metadata and download its targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		if repositoryURL == "" {
			fmt.Println("Error: required flag(s) \"url\" not set")
			os.Exit(1)
		}
		return refresh()
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&updateRootFirst, "update-root", true, "fetch and re-anchor root before refreshing")
	rootCmd.AddCommand(refreshCmd)
}

func refresh() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	v, err := verifier.New(repoName, repositoryURL, cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}
	if updateRootFirst {
		if err := v.UpdateRoot(); err != nil {
			return fmt.Errorf("failed to update root: %w", err)
		}
	}
	if err := v.Refresh(); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	targets := v.Targets()
	if len(targets) == 0 {
		fmt.Println("Repository is up to date, no targets referenced")
		return nil
	}
	fmt.Printf("Verified %d target(s):\n", len(targets))
	for _, t := range targets {
		fmt.Printf("  %s\t%s\t%s\n", t.Name, humanize.Bytes(uint64(t.Length)), t.Hash)
	}
	return nil
}
