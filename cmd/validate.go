package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/achene/infercast/internal/config"
)

// CreateValidateCmd creates the validate command: parse and validate a
// cameras file without starting anything. Exit code 0 means every
// camera passed.
func CreateValidateCmd() *cobra.Command {
	var camerasFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the cameras configuration file",
		Long: `Parses the cameras file and reports every validation error at once: ` +
			`missing fields, bad device strings, duplicate identifiers.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			cfg, err := config.LoadCameras(camerasFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid configuration %s:\n%v\n", camerasFile, err)
				os.Exit(1)
			}

			enabled := cfg.Enabled()
			fmt.Printf("%s: %d camera(s), %d enabled\n", camerasFile, len(cfg.Cameras), len(enabled))
			for _, cam := range cfg.Cameras {
				state := "enabled"
				if !cam.IsEnabled() {
					state = "disabled"
				}
				fmt.Printf("  %-12s %-24s -> %s (%s)\n", cam.ID, cam.Device, cam.URL, state)
			}
		},
	}

	cmd.Flags().StringVar(&camerasFile, "cameras", "cameras.toml", "Path to cameras configuration file")

	return cmd
}
