package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tubenote/pkg/db"
	"tubenote/pkg/replication"
)

var (
	replicateBatch   int
	replicateWorkers int
)

var replicateCmd = &cobra.Command{
	Use:   "replicate",
	Short: "Copy every stored transcript from MongoDB to Postgres",
	Long: `Copy every transcript in the MongoDB collection into the Postgres
transcript table (DATABASE_URL). Video ids already present are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplicate(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	replicateCmd.Flags().IntVar(&replicateBatch, "batch", 100, "transcripts per insert transaction")
	replicateCmd.Flags().IntVar(&replicateWorkers, "workers", 5, "parallel batches")
}

func runReplicate(ctx context.Context, out io.Writer) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.PostgresDSN == "" {
		return fmt.Errorf("replicate needs a postgres DSN (DATABASE_URL)")
	}

	a := &app{cfg: cfg, logger: logger}
	defer a.close(context.Background())

	mongoClient, err := a.connectMongo(ctx)
	if err != nil {
		return err
	}
	pg, err := a.connectPostgres(ctx)
	if err != nil {
		return err
	}

	r, err := replication.NewReplicator(replication.Config{
		Mongo:     mongoClient,
		Postgres:  db.NewSQLStore(pg),
		BatchSize: replicateBatch,
		Workers:   replicateWorkers,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	res, err := r.ReplicateTranscripts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "replicated %d transcripts (%d new)\n", res.Processed, res.Inserted)
	return nil
}
