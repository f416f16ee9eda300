package captions

import (
	"regexp"
	"strings"

	"tubenote/pkg/domain"
)

// CleanPolicy selects how segment texts become the plain transcript.
type CleanPolicy string

const (
	// CleanRaw joins segment texts with newlines, untouched. It is the default.
	CleanRaw CleanPolicy = "raw"

	// CleanStrict keeps only letters, whitespace and . ! ? and collapses
	// whitespace runs.
	CleanStrict CleanPolicy = "strict"
)

var (
	strictDropRe = regexp.MustCompile(`[^a-zA-Z\s.!?]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ParseCleanPolicy validates a user supplied policy. Empty means CleanRaw.
func ParseCleanPolicy(s string) (CleanPolicy, error) {
	switch CleanPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CleanRaw:
		return CleanRaw, nil
	case CleanStrict:
		return CleanStrict, nil
	default:
		return "", domain.InvalidRequestError("unsupported clean policy %q (use raw or strict)", s)
	}
}

// JoinSegments builds the plain transcript from segments using policy.
func JoinSegments(segments []domain.Segment, policy CleanPolicy) string {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}

	if policy != CleanStrict {
		return strings.Join(texts, "\n")
	}
	return StrictClean(strings.Join(texts, " "))
}

// StrictClean applies the CleanStrict policy to s.
func StrictClean(s string) string {
	s = strictDropRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
