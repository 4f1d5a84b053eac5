// Package ffmpeg builds argv vectors for ffmpeg subprocesses and
// parses their log output. Capture children write raw frames to
// stdout; encode children read raw frames from stdin and push H.264
// over RTMP.
package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// rtmpTimeoutMicros bounds a stalled RTMP connection; without it a
// dead endpoint blocks the muxer forever instead of failing the write.
const rtmpTimeoutMicros = 2_000_000

func base() []string {
	// level+info prefixes every line with [level] so ParseLogLevel
	// can map it onto slog levels.
	return []string{"ffmpeg", "-hide_banner", "-loglevel", "level+info"}
}

// BuildCaptureArgs builds the argv for a capture child. The child
// decodes the device (or a testsrc2 pattern) and writes tightly packed
// raw frames to stdout, one frame per Width*Height*bpp bytes.
func BuildCaptureArgs(p *CaptureParams) ([]string, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	pixFmt := p.PixelFormat
	if pixFmt == "" {
		pixFmt = "rgb24"
	}
	size := fmt.Sprintf("%dx%d", p.Width, p.Height)

	args := base()
	if p.TestPattern {
		// -re paces the pattern generator at the nominal rate; a
		// free-running testsrc2 floods the pipe.
		args = append(args,
			"-re",
			"-f", "lavfi",
			"-i", fmt.Sprintf("testsrc2=size=%s:rate=%d", size, p.FPS),
		)
	} else {
		args = append(args, "-f", "v4l2")
		if p.InputFormat != "" {
			args = append(args, "-input_format", p.InputFormat)
		}
		args = append(args,
			"-video_size", size,
			"-framerate", strconv.Itoa(p.FPS),
			"-i", p.DevicePath,
		)
	}

	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", pixFmt,
		"pipe:1",
	)
	return args, nil
}

// BuildEncodeArgs builds the argv for an encode child. The child reads
// raw frames from stdin, encodes H.264, and muxes FLV to the RTMP URL.
func BuildEncodeArgs(p *EncodeParams) ([]string, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	pixFmt := p.PixelFormat
	if pixFmt == "" {
		pixFmt = "yuv420p"
	}
	encoder := p.Encoder
	if encoder == "" {
		encoder = "libx264"
	}
	preset := p.Preset
	if preset == "" {
		preset = "ultrafast"
	}
	gop := p.GOP
	if gop <= 0 {
		gop = p.FPS
	}

	args := base()
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", pixFmt,
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", strconv.Itoa(p.FPS),
		"-i", "pipe:0",
		"-c:v", encoder,
	)

	if !isHardwareEncoder(encoder) {
		args = append(args,
			"-preset", preset,
			"-tune", "zerolatency",
		)
	}

	args = append(args,
		"-g", strconv.Itoa(gop),
		"-bf", "0",
		"-b:v", strconv.Itoa(p.Bitrate),
		"-pix_fmt", "yuv420p",
		"-flags", "+global_header",
	)

	if p.ProgressSocket != "" {
		args = append(args, "-progress", "unix://"+p.ProgressSocket)
	}
	if strings.HasPrefix(p.OutputURL, "rtmp://") {
		args = append(args, "-rw_timeout", strconv.Itoa(rtmpTimeoutMicros))
	}
	args = append(args, "-f", "flv", p.OutputURL)
	return args, nil
}

// isHardwareEncoder reports whether the codec name names a hardware
// encoder, which rejects x264-only flags like -preset and -tune.
func isHardwareEncoder(codec string) bool {
	for _, hw := range []string{"nvenc", "amf", "vaapi", "qsv", "videotoolbox", "rkmpp", "v4l2m2m"} {
		if strings.Contains(codec, hw) {
			return true
		}
	}
	return false
}
