package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"transit/gtfs-ingest/config"
	"transit/gtfs-ingest/ingest"
	"transit/gtfs-ingest/internal"
	"transit/gtfs-ingest/metrics"
	"transit/gtfs-ingest/publish"
	"transit/gtfs-ingest/store"
	"transit/gtfs-ingest/upload"
)

var cfgPath string

func main() {
	internal.InitLogging()

	root := &cobra.Command{
		Use:           "gtfs-ingest",
		Short:         "GTFS data ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file path")
	root.AddCommand(newIngestCmd(), newListFeedsCmd())

	if err := root.Execute(); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func newIngestCmd() *cobra.Command {
	var (
		feedType string
		once     bool
		interval int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest data from the configured feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch feedType {
			case "all", config.KindTripUpdates, config.KindVehiclePositions, config.KindStaticBundle:
			default:
				return fmt.Errorf("invalid --feed-type %q", feedType)
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var col *metrics.Collector
			var metricsSrv *http.Server
			if cfg.MetricsAddr != "" {
				col = metrics.NewCollector(len(cfg.Feeds))
				metricsSrv = col.Serve(cfg.MetricsAddr)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
					defer cancel()
					_ = metricsSrv.Shutdown(shutdownCtx)
				}()
			}

			st := store.New(cfg.Ingest.DataDir, cfg.Ingest.SaveRealtimeRaw, cfg.Ingest.SaveStaticRaw)
			ing := ingest.New(cfg, st, col)
			defer ing.Close()

			if cfg.NATSURL != "" {
				pub, err := publish.NewPublisher(cfg.NATSURL)
				if err != nil {
					return fmt.Errorf("nats: %w", err)
				}
				defer pub.Close()
				ing.Publisher = pub
			}
			if cfg.Upload.Destination != "" {
				up, err := upload.NewS3Uploader(cfg.Upload.Destination)
				if err != nil {
					return fmt.Errorf("upload: %w", err)
				}
				ing.Uploader = up
			}

			if once {
				var results ingest.Result
				if feedType == "all" {
					results = ing.IngestAll(ctx)
				} else {
					results = ing.IngestKind(ctx, feedType)
				}
				fmt.Printf("Ingestion completed: %d/%d feeds successful\n", results.Successes(), len(results))
				return nil
			}

			runInterval := cfg.Ingest.Interval()
			if interval > 0 {
				runInterval = time.Duration(interval) * time.Second
			}
			ing.RunForever(ctx, runInterval)
			return nil
		},
	}

	cmd.Flags().StringVar(&feedType, "feed-type", "all", "feed type to ingest: trip_updates|vehicle_positions|static_bundle|all")
	cmd.Flags().BoolVar(&once, "once", false, "run one ingestion pass instead of continuously")
	cmd.Flags().IntVar(&interval, "interval", 0, "seconds between cycles in continuous mode (0 = use config)")
	return cmd
}

func newListFeedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-feeds",
		Short: "List all configured feed sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			fmt.Println("Configured GTFS feeds:")
			for _, kind := range []string{config.KindStaticBundle, config.KindTripUpdates, config.KindVehiclePositions} {
				feeds := cfg.FeedsOfKind(kind)
				fmt.Printf("\n%s:\n", kind)
				if len(feeds) == 0 {
					fmt.Println("  (no feeds configured)")
					continue
				}
				for _, f := range feeds {
					if f.Name != "" {
						fmt.Printf("  - %s (%s)\n", f.URL, f.Name)
					} else {
						fmt.Printf("  - %s\n", f.URL)
					}
				}
			}
			return nil
		},
	}
}
