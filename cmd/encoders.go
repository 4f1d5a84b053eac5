package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/achene/infercast/internal/encoders"
)

// CreateEncodersCmd creates the encoders command: list the video
// encoders the local ffmpeg build offers, so the camera encoder
// setting can be filled with a name that actually exists.
func CreateEncodersCmd() *cobra.Command {
	var h264Only bool
	var hardwareOnly bool

	cmd := &cobra.Command{
		Use:   "encoders",
		Short: "List video encoders available in the local ffmpeg",
		Long: `Queries ffmpeg for its compiled-in video encoders. Hardware ` +
			`encoders are flagged; --h264 narrows the list to what the RTMP output accepts.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			list, err := encoders.Detect(cmd.Context())
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			if h264Only {
				list = encoders.H264(list)
			}

			for _, e := range list {
				if hardwareOnly && !e.Hardware {
					continue
				}
				kind := "software"
				if e.Hardware {
					kind = "hardware"
				}
				fmt.Printf("  %-20s %-8s %s\n", e.Name, kind, e.Description)
			}
		},
	}

	cmd.Flags().BoolVar(&h264Only, "h264", false, "Only encoders that produce H.264")
	cmd.Flags().BoolVar(&hardwareOnly, "hwaccel", false, "Only hardware encoders")

	return cmd
}
