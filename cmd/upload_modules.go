package cmd

import (
	"fmt"

	"pms-backup/internal/display"
	"pms-backup/internal/uploads"

	"github.com/spf13/cobra"
)

// uploadModulesCmd lists the modules accepted by --skip-upload-module
var uploadModulesCmd = &cobra.Command{
	Use:   "upload-modules",
	Short: "List upload based modules and their directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Uploads.Validate(); err != nil {
			return err
		}

		console := display.NewConsole(cfg.DisplayConfig(cmd.OutOrStdout()))
		directories := uploads.BuildDirectoryMap(cfg.Backup.PublicRoot, cfg.Uploads)

		items := make([]string, 0, directories.Len())
		for _, entry := range directories.Entries() {
			items = append(items, fmt.Sprintf("%s: %s", entry.Module, entry.Path))
		}

		console.Title("Upload modules")
		console.Listing(items)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadModulesCmd)
}
