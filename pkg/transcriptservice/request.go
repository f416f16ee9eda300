package transcriptservice

import (
	"regexp"

	"tubenote/pkg/captions"
	"tubenote/pkg/domain"
)

// DefaultLanguage is used when a request names no language.
const DefaultLanguage = "en"

var (
	videoIDRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	languageRe = regexp.MustCompile(`^[A-Za-z0-9-]{1,16}$`)
)

// Request identifies the transcript a caller wants.
type Request struct {
	VideoID  string
	Language string

	// Format selects the caption file format of the caption-download strategy.
	Format captions.Format

	// Clean selects how the query-client strategy joins caption entries.
	Clean captions.CleanPolicy
}

// withDefaults fills empty fields and validates the result.
func (r Request) withDefaults() (Request, error) {
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.Format == "" {
		r.Format = captions.FormatVTT
	}
	if r.Clean == "" {
		r.Clean = captions.CleanRaw
	}

	if !videoIDRe.MatchString(r.VideoID) {
		return r, domain.InvalidRequestError("invalid video id %q", r.VideoID)
	}
	if !languageRe.MatchString(r.Language) {
		return r, domain.InvalidRequestError("invalid language %q", r.Language)
	}
	format, err := captions.ParseFormat(string(r.Format))
	if err != nil {
		return r, err
	}
	clean, err := captions.ParseCleanPolicy(string(r.Clean))
	if err != nil {
		return r, err
	}
	r.Format, r.Clean = format, clean
	return r, nil
}
