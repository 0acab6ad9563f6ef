package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fuelmap-ja/stations-cli/internal/enrich"
	"github.com/fuelmap-ja/stations-cli/internal/model"
	"github.com/fuelmap-ja/stations-cli/pkg/places"
)

var (
	enrichInput     string
	enrichChunkSize int
	enrichPhotos    bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run the enrichment pipeline over a scraped listing set",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Places.Key == "" {
			return eris.New("places API key is required (STATIONS_PLACES_KEY)")
		}

		records, err := loadRawStations(enrichInput)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return eris.Errorf("no records in %s", enrichInput)
		}

		// Flag overrides for a single run.
		if cmd.Flags().Changed("chunk-size") {
			cfg.Enrich.ChunkSize = enrichChunkSize
		}
		if cmd.Flags().Changed("photos") {
			cfg.Enrich.IncludePhotos = enrichPhotos
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		client := places.NewClient(cfg.Places.Key,
			places.WithBaseURL(cfg.Places.BaseURL),
			places.WithMinInterval(cfg.Places.MinInterval()),
			places.WithTimeout(cfg.Places.Timeout()),
			places.WithRetry(cfg.Retry.Resilience()),
			places.WithPhotos(cfg.Enrich.IncludePhotos),
		)

		orch := enrich.New(cfg, client, st)

		result, err := orch.Run(ctx, records)
		if err != nil {
			return eris.Wrap(err, "enrichment run")
		}

		zap.L().Info("enrichment complete",
			zap.String("run_id", result.Metadata.RunID),
			zap.Int("records", len(result.Records)),
			zap.Int("fallbacks", result.Metadata.TotalFallbacks),
		)

		fmt.Print(enrich.FormatReport(result.Metadata))
		return nil
	},
}

// loadRawStations reads the scraped listing set: a JSON array of raw
// station records produced by the upstream scrape step.
func loadRawStations(path string) ([]model.RawStation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open input %s", path)
	}
	defer f.Close() //nolint:errcheck

	var records []model.RawStation
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return nil, eris.Wrapf(err, "decode input %s", path)
	}
	return records, nil
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichInput, "input", "i", "stations.json", "JSON file of scraped station listings")
	enrichCmd.Flags().IntVar(&enrichChunkSize, "chunk-size", 0, "records per batch (max 25)")
	enrichCmd.Flags().BoolVar(&enrichPhotos, "photos", false, "request photo references for this run")
	rootCmd.AddCommand(enrichCmd)
}
