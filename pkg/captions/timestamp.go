package captions

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tubenote/pkg/domain"
)

// FormatTimestamp renders an offset in seconds as an SRT timestamp
// (HH:MM:SS,mmm). Offsets are rounded to the nearest millisecond and
// negative offsets clamp to zero.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))

	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// BuildCues renders segments as numbered SRT cue blocks separated by a blank
// line. Each segment produces exactly one cue.
func BuildCues(segments []domain.Segment) string {
	blocks := make([]string, 0, len(segments))
	for i, seg := range segments {
		var b strings.Builder
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(FormatTimestamp(seg.Start))
		b.WriteString(" --> ")
		b.WriteString(FormatTimestamp(seg.Start + seg.Duration))
		b.WriteByte('\n')
		b.WriteString(seg.Text)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
