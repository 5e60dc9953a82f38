package logging

import (
	"io"
	"regexp"
	"strings"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBold    = "\x1b[1m"
	ansiBlue    = "\x1b[34m"
	ansiYellow  = "\x1b[33m"
	ansiMagenta = "\x1b[35m"
	ansiRed     = "\x1b[31m"
	ansiGray    = "\x1b[90m"
)

// severityPattern finds alert severity attributes rendered by the text handler.
var severityPattern = regexp.MustCompile(`\bseverity=(LOW|MEDIUM|HIGH|CRITICAL)\b`)

// colorLineWriter colors console lines by log level and highlights alert severity.
type colorLineWriter struct {
	dst io.Writer
}

// Write colors one rendered slog line.
// Params: payload is rendered slog line.
// Returns: payload length consumed or write error.
func (w *colorLineWriter) Write(payload []byte) (int, error) {
	line := string(payload)
	tone := levelColor(line)
	if tone == "" {
		return w.dst.Write(payload)
	}

	rendered := severityPattern.ReplaceAllStringFunc(line, func(token string) string {
		return severityColor(token) + token + ansiReset + tone
	})
	n, err := w.dst.Write([]byte(tone + rendered + ansiReset))
	if n > len(payload) {
		n = len(payload)
	}
	return n, err
}

func levelColor(line string) string {
	switch {
	case strings.Contains(line, "level=DEBUG"):
		return ansiGray
	case strings.Contains(line, "level=INFO"):
		return ansiBlue
	case strings.Contains(line, "level=WARN"):
		return ansiYellow
	case strings.Contains(line, "level=ERROR"):
		return ansiRed
	default:
		return ""
	}
}

func severityColor(token string) string {
	switch strings.TrimPrefix(token, "severity=") {
	case "CRITICAL":
		return ansiBold + ansiRed
	case "HIGH":
		return ansiMagenta
	case "MEDIUM":
		return ansiYellow
	default:
		return ansiGray
	}
}
