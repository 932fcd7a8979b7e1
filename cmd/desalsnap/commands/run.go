package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/desalination-map/internal/app"
	"github.com/couchcryptid/desalination-map/internal/config"
	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/couchcryptid/desalination-map/internal/export"
	"github.com/couchcryptid/desalination-map/internal/observability"
	"github.com/couchcryptid/desalination-map/internal/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	xlsxPath  *string
	imagePath *string
	jsonPath  *string
	palette   *string
)

func init() {
	xlsxPath = runCmd.Flags().String("xlsx", "", "Write aggregates, merged rows and rejected rows to this Excel workbook.")
	imagePath = runCmd.Flags().String("image", "", "Write a static choropleth to this path (.png, .svg, .pdf, .jpg).")
	jsonPath = runCmd.Flags().String("json", "", "Write cleaned records, rejections and aggregates as a JSON fixture.")
	palette = runCmd.Flags().String("palette", "", "Colour palette name, overriding PALETTE.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--xlsx <out.xlsx>] [--image <out.png>]",
	Short: "Fetches the plant table, merges it with country boundaries and writes the requested outputs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(*debug)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if *palette != "" {
			cfg.Palette = *palette
		}

		logger := observability.NewLogger(cfg)
		// Nothing scrapes a one-shot run.
		metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())

		p, closePublisher := app.NewPipeline(cfg, logger, metrics)
		defer func() {
			if err := closePublisher(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()

		snap, err := p.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("run pipeline: %w", err)
		}

		if *xlsxPath != "" {
			if err := export.SaveWorkbook(*xlsxPath, snap); err != nil {
				return err
			}
			logger.Info("workbook written", "path", *xlsxPath)
		}
		if *jsonPath != "" {
			if err := writeJSON(*jsonPath, newFixture(snap)); err != nil {
				return err
			}
			logger.Info("fixture written", "path", *jsonPath)
		}
		if *imagePath != "" {
			fig, err := render.NewFigure(snap.Rows, snap.Aggregates, cfg.Palette)
			if err != nil {
				return fmt.Errorf("build figure: %w", err)
			}
			if err := render.SaveImage(*imagePath, fig); err != nil {
				return err
			}
			logger.Info("image written", "path", *imagePath)
		}

		printSummary(cmd.OutOrStdout(), snap)
		return nil
	},
}

// fixture is the JSON form of a run, used to seed tests with real page data.
type fixture struct {
	SourceURL   string                    `json:"source_url"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Records     []domain.PlantRecord      `json:"records"`
	Rejected    []domain.RejectedRow      `json:"rejected"`
	Aggregates  []domain.CountryAggregate `json:"aggregates"`
	Unmatched   []string                  `json:"unmatched"`
}

func newFixture(snap domain.Snapshot) fixture {
	return fixture{
		SourceURL:   snap.SourceURL,
		GeneratedAt: snap.GeneratedAt.UTC(),
		Records:     snap.Records,
		Rejected:    snap.Rejected,
		Aggregates:  snap.Aggregates,
		Unmatched:   snap.Report.UnmatchedAggregates,
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func printSummary(w io.Writer, snap domain.Snapshot) {
	plants := 0
	for _, a := range snap.Aggregates {
		plants += a.Plants
	}
	unmatched := "none"
	if len(snap.Report.UnmatchedAggregates) > 0 {
		unmatched = strings.Join(snap.Report.UnmatchedAggregates, ", ")
	}

	fmt.Fprintf(w, "source:    %s\n", snap.SourceURL)
	fmt.Fprintf(w, "countries: %d\n", len(snap.Aggregates))
	fmt.Fprintf(w, "plants:    %d\n", plants)
	fmt.Fprintf(w, "rejected:  %d\n", len(snap.Rejected))
	fmt.Fprintf(w, "unmatched: %s\n", unmatched)
}
