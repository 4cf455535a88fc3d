package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uptane/go-uptane/verifier"
)

var updateRootCmd = &cobra.Command{
	Use:   "update-root",
	Short: "Fetch the repository's root metadata and re-anchor trust",
	RunE: func(cmd *cobra.Command, args []string) error {
		if repositoryURL == "" {
			fmt.Println("Error: required flag(s) \"url\" not set")
			os.Exit(1)
		}
		return updateRoot()
	},
}

func init() {
	rootCmd.AddCommand(updateRootCmd)
}

func updateRoot() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	v, err := verifier.New(repoName, repositoryURL, cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}
	if err := v.UpdateRoot(); err != nil {
		return fmt.Errorf("failed to update root: %w", err)
	}
	fmt.Printf("Trusted root for %s updated\n", repoName)
	return nil
}
