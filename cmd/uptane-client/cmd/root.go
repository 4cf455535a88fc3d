package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/uptane/go-uptane/config"
)

var (
	verbosity     bool
	configFile    string
	repositoryURL string
	repoName      string
	metadataDir   string
)

var rootCmd = &cobra.Command{
	Use:   "uptane-client",
	Short: "uptane-client - a client-side CLI for Uptane repository verification",
	Long: `uptane-client fetches and cryptographically verifies the signed metadata
hierarchy of an Uptane repository (root, timestamp, snapshot, targets) and
downloads the referenced target files.

Run one verifier per repository: typically "director" and "image".`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}
	},
}

func Execute() {
	rootCmd.PersistentFlags().BoolVarP(&verbosity, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a configuration file")
	rootCmd.PersistentFlags().StringVarP(&repositoryURL, "url", "u", "", "base URL of the repository")
	rootCmd.PersistentFlags().StringVarP(&repoName, "repo", "r", "director", "repository name (director or image)")
	rootCmd.PersistentFlags().StringVarP(&metadataDir, "metadata-dir", "m", "", "directory to keep metadata and targets under")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration from the config file
// (if given) and command line overrides.
func loadConfig() (*config.Config, error) {
	if verbosity {
		log.SetLevel(log.DebugLevel)
	}
	cfg := config.New()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if metadataDir != "" {
		cfg.MetadataRoot = metadataDir
	}
	return cfg, nil
}
