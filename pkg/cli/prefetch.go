package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tubenote/pkg/captions"
	"tubenote/pkg/db"
	"tubenote/pkg/feeds"
	"tubenote/pkg/filter"
	"tubenote/pkg/transcriptservice"
	"tubenote/pkg/worker"
)

var (
	prefetchChannels []string
	prefetchVideos   []string
	prefetchWorkers  int
	prefetchMax      int
	prefetchLang     string
	prefetchFormat   string
	prefetchSkip     bool
)

var prefetchCmd = &cobra.Command{
	Use:   "prefetch",
	Short: "Download and store caption transcripts for channels or video ids",
	Example: `  tubenote prefetch --channel UC_x5XG1OV2P6uZZ5FSM9Ttw --max 20
  tubenote prefetch --video abc123 --video def456 --format srt`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(prefetchChannels) == 0 && len(prefetchVideos) == 0 {
			return fmt.Errorf("at least one --channel or --video is required")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runPrefetch(ctx, cmd.OutOrStdout())
	},
}

func init() {
	prefetchCmd.Flags().StringSliceVar(&prefetchChannels, "channel", nil, "channel id or feed URL (repeatable)")
	prefetchCmd.Flags().StringSliceVar(&prefetchVideos, "video", nil, "video id (repeatable)")
	prefetchCmd.Flags().IntVar(&prefetchWorkers, "workers", 4, "parallel transcript fetches")
	prefetchCmd.Flags().IntVar(&prefetchMax, "max", 15, "videos taken from each channel feed (<=0 means all)")
	prefetchCmd.Flags().StringVar(&prefetchLang, "lang", transcriptservice.DefaultLanguage, "transcript language")
	prefetchCmd.Flags().StringVar(&prefetchFormat, "format", string(captions.FormatVTT), "caption format (srt or vtt)")
	prefetchCmd.Flags().BoolVar(&prefetchSkip, "skip-stored", true, "skip videos whose transcript is already stored")
}

func runPrefetch(ctx context.Context, out io.Writer) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	w := worker.NewWorker(a.service, transcriptservice.Request{
		Language: prefetchLang,
		Format:   captions.Format(prefetchFormat),
	})

	var filters []filter.Filter
	if prefetchSkip {
		f, err := storedFilter(ctx, a.store)
		if err != nil {
			return err
		}
		filters = append(filters, f)
	}

	var total worker.Stats
	if len(prefetchVideos) > 0 {
		ids, err := filter.FilterVideoIDs(ctx, prefetchVideos, append([]filter.Filter{filter.NewSeenFilter()}, filters...)...)
		if err != nil {
			return err
		}
		if skipped := len(prefetchVideos) - len(ids); skipped > 0 {
			a.logger.Info("skipping videos", "count", skipped)
		}
		stats, err := worker.NewManager(prefetchWorkers, w, a.logger).ProcessVideos(ctx, ids)
		total.Succeeded += stats.Succeeded
		total.Failed += stats.Failed
		if err != nil {
			return err
		}
	}

	if len(prefetchChannels) > 0 {
		m := worker.NewTwoLevelManager(worker.Config{
			FeedWorkers:  min(len(prefetchChannels), 4),
			VideoWorkers: prefetchWorkers,
			Lister:       feeds.NewChannelFeed("", nil),
			Worker:       w,
			MaxPerFeed:   prefetchMax,
			Filters:      filters,
			Logger:       a.logger,
		})
		stats, err := m.ProcessChannels(ctx, prefetchChannels)
		total.Succeeded += stats.Succeeded
		total.Failed += stats.Failed
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "prefetched %d transcripts, %d failed\n", total.Succeeded, total.Failed)
	return nil
}

// storedFilter loads the stored ids up front when the backend can list them,
// and falls back to one lookup per id otherwise.
func storedFilter(ctx context.Context, store db.TranscriptStore) (filter.Filter, error) {
	if c, ok := store.(*db.Client); ok {
		ids, err := c.GetAllVideoIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stored video ids: %w", err)
		}
		return filter.NewAlreadyFetchedFilter(ids), nil
	}
	return filter.NewStoredFilter(store), nil
}
