package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"tubenote/pkg/captions"
	"tubenote/pkg/domain"
	"tubenote/pkg/transcriptservice"
)

var (
	fetchLang     string
	fetchFormat   string
	fetchClean    string
	fetchFallback bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch VIDEO_ID",
	Short: "Fetch one transcript and print it as JSON",
	Long: `Fetch one transcript and print it as JSON. The default query-client
strategy is always live; --fallback downloads captions with yt-dlp and reads
through the transcript store.`,
	Example: `  tubenote fetch dQw4w9WgXcQ
  tubenote fetch dQw4w9WgXcQ --lang de --clean strict
  tubenote fetch dQw4w9WgXcQ --fallback --format srt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchLang, "lang", transcriptservice.DefaultLanguage, "transcript language")
	fetchCmd.Flags().StringVar(&fetchFormat, "format", string(captions.FormatVTT), "caption format for --fallback (srt or vtt)")
	fetchCmd.Flags().StringVar(&fetchClean, "clean", string(captions.CleanRaw), "text cleaning policy (raw or strict)")
	fetchCmd.Flags().BoolVar(&fetchFallback, "fallback", false, "use the caption-download strategy")
}

func runFetch(ctx context.Context, out io.Writer, videoID string) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	req := transcriptservice.Request{
		VideoID:  videoID,
		Language: fetchLang,
		Format:   captions.Format(fetchFormat),
		Clean:    captions.CleanPolicy(fetchClean),
	}

	var t *domain.Transcript
	if fetchFallback {
		t, err = a.service.FallbackTranscript(ctx, req)
	} else {
		t, err = a.service.Transcript(ctx, req)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}
