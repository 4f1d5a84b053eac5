package encode

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/achene/infercast/internal/metrics"
)

// progressListener receives the encoder child's -progress output on a
// unix socket and publishes each committed block as encoder gauges.
// The child writes key=value lines and terminates every block with a
// progress= line.
type progressListener struct {
	cameraID string
	path     string
	metrics  *metrics.Recorder
	logger   *slog.Logger

	ln   net.Listener
	done chan struct{}
	wg   sync.WaitGroup
}

func newProgressListener(cameraID, path string, rec *metrics.Recorder, logger *slog.Logger) *progressListener {
	return &progressListener{
		cameraID: cameraID,
		path:     path,
		metrics:  rec,
		logger:   logger,
	}
}

// Start binds the socket and begins accepting connections.
func (l *progressListener) Start() error {
	if _, err := os.Stat(l.path); err == nil {
		return fmt.Errorf("encode: progress socket %s already exists", l.path)
	}
	ln, err := net.Listen("unix", l.path)
	if err != nil {
		return fmt.Errorf("encode: listening on progress socket: %w", err)
	}
	l.ln = ln
	l.done = make(chan struct{})
	l.wg.Add(1)
	go l.accept()
	return nil
}

// Stop closes the listener and unlinks the socket file. The caller
// stops the child first, so nothing is still writing.
func (l *progressListener) Stop() {
	if l.ln == nil {
		return
	}
	close(l.done)
	l.ln.Close()
	l.wg.Wait()
	os.Remove(l.path)
	l.ln = nil
}

func (l *progressListener) accept() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
				l.logger.Warn("Progress socket accept failed", "error", err)
				continue
			}
		}
		// The child holds one connection for its whole lifetime, so
		// connections are served one at a time.
		l.handle(conn)
	}
}

func (l *progressListener) handle(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	var cur metrics.EncoderProgress
	for scanner.Scan() {
		select {
		case <-l.done:
			return
		default:
		}

		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		if key == "progress" {
			l.metrics.SetEncoderProgress(l.cameraID, cur)
			cur = metrics.EncoderProgress{}
			continue
		}
		applyProgressField(&cur, key, strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		l.logger.Warn("Progress socket read failed", "error", err)
	}
}

func applyProgressField(p *metrics.EncoderProgress, key, value string) {
	switch key {
	case "frame":
		p.Frame = parseProgressNumber(value, "")
	case "fps":
		p.FPS = parseProgressNumber(value, "")
	case "bitrate":
		p.BitrateKbps = parseProgressNumber(value, "kbits/s")
	case "total_size":
		p.OutputBytes = parseProgressNumber(value, "")
	case "dup_frames":
		p.DupFrames = parseProgressNumber(value, "")
	case "drop_frames":
		p.DropFrames = parseProgressNumber(value, "")
	case "speed":
		p.Speed = parseProgressNumber(value, "x")
	}
}

// parseProgressNumber strips the unit suffix and parses the value.
// Unparsable values, including N/A, come back as zero.
func parseProgressNumber(value, suffix string) float64 {
	value = strings.TrimSpace(strings.TrimSuffix(value, suffix))
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return n
}
