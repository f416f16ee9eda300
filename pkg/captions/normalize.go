// Package captions turns caption markup and timed caption entries into plain
// transcript text.
package captions

import (
	"strings"
	"unicode"

	"tubenote/pkg/domain"
)

// Format is a supported caption markup format.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

const (
	timingArrow = "-->"
	vttHeader   = "WEBVTT"
)

// ParseFormat validates a user supplied format tag.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatSRT:
		return FormatSRT, nil
	case FormatVTT:
		return FormatVTT, nil
	default:
		return "", domain.InvalidRequestError("unsupported caption format %q (use srt or vtt)", s)
	}
}

// Normalize strips cue indices, timing lines and headers from caption markup.
// Anything that is not SRT is treated as WebVTT.
func Normalize(raw string, f Format) string {
	if f == FormatSRT {
		return NormalizeSRT(raw)
	}
	return NormalizeVTT(raw)
}

// NormalizeSRT keeps the dialogue lines of an SRT document, one per line.
func NormalizeSRT(raw string) string {
	kept := make([]string, 0)
	for _, line := range splitLines(raw) {
		if line == "" || isNumeric(line) || strings.Contains(line, timingArrow) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// NormalizeVTT keeps the dialogue lines of a WebVTT document joined by spaces.
func NormalizeVTT(raw string) string {
	kept := make([]string, 0)
	for _, line := range splitLines(raw) {
		if line == "" || strings.Contains(line, timingArrow) || strings.HasPrefix(line, vttHeader) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, " ")
}

// splitLines splits on \n, \r\n and \r and trims every line.
func splitLines(s string) []string {
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
