package ffmpeg

import "strings"

// ParseLogLevel extracts the log level from an ffmpeg output line.
// With -loglevel level+info lines look like "[info] message" or
// "[flv @ 0x...] [error] message" for component logs. Returns the
// level and the message with the level tag stripped; a component
// prefix is kept.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	if tag := line[1:end]; isLogLevel(tag) {
		return tag, line[end+2:]
	}

	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if next := strings.Index(rest, "] "); next != -1 {
			if tag := rest[1:next]; isLogLevel(tag) {
				return tag, component + rest[next+2:]
			}
		}
	}

	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
