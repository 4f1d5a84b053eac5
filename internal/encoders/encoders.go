// Package encoders discovers the video encoders the local ffmpeg build
// offers, so operators can pick a working value for a camera's encoder
// setting.
package encoders

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Encoder is one video encoder advertised by ffmpeg.
type Encoder struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Hardware    bool   `json:"hardware"`
}

var (
	encoderLine  = regexp.MustCompile(`^\s*([VASFXBD.]{6})\s+(\S+)\s+(.+)$`)
	hardwareHint = regexp.MustCompile(`(?i)(nvenc|qsv|amf|vaapi|videotoolbox|v4l2m2m|rkmpp|cuda|vulkan)`)
)

// Detect runs ffmpeg -encoders and returns the video encoders it
// advertises.
func Detect(ctx context.Context) ([]Encoder, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("encoders: ffmpeg not found in PATH: %w", err)
	}
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("encoders: listing encoders: %w", err)
	}
	return Parse(string(out)), nil
}

// Parse extracts the video encoders from ffmpeg -encoders output. The
// flag-legend banner ends with a dashed separator line; everything
// after it is one encoder per line.
func Parse(output string) []Encoder {
	var list []Encoder
	started := false

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !started {
			if strings.Contains(line, "------") {
				started = true
			}
			continue
		}
		m := encoderLine.FindStringSubmatch(line)
		if m == nil || !strings.HasPrefix(m[1], "V") {
			continue
		}
		desc := strings.TrimSpace(m[3])
		list = append(list, Encoder{
			Name:        m[2],
			Description: desc,
			Hardware:    hardwareHint.MatchString(m[2]) || hardwareHint.MatchString(desc),
		})
	}
	return list
}

// H264 filters the list down to encoders that produce H.264, the only
// codec the RTMP output accepts.
func H264(list []Encoder) []Encoder {
	var out []Encoder
	for _, e := range list {
		if strings.Contains(e.Name, "264") || strings.Contains(e.Description, "H.264") {
			out = append(out, e)
		}
	}
	return out
}
