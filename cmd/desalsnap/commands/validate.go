package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/desalination-map/internal/adapter/geometry"
	"github.com/couchcryptid/desalination-map/internal/app"
	"github.com/couchcryptid/desalination-map/internal/config"
	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/couchcryptid/desalination-map/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var errValidationFailed = errors.New("validation failed")

var strict *bool

func init() {
	strict = validateCmd.Flags().Bool("strict", false, "Fail when any plant row is rejected for an unparseable capacity.")
	rootCmd.AddCommand(validateCmd)
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

var validateCmd = &cobra.Command{
	Use:   "validate [--strict]",
	Short: "Checks the boundary dataset, the source table and how well the two join.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(*debug)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		// Validation never publishes.
		cfg.KafkaBrokers = nil

		logger := observability.NewLogger(cfg)
		metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
		p, _ := app.NewPipeline(cfg, logger, metrics)

		geoms, err := geometry.NewFileLoader(cfg.GeometryPath).Load(cmd.Context())
		geomPhase := validateGeometry(geoms, err)

		snap, err := p.Run(cmd.Context())
		runPhase := &phase{name: "Pipeline run"}
		if err != nil {
			runPhase.errorf("%v", err)
		}

		phases := []*phase{geomPhase, runPhase}
		if err == nil {
			phases = append(phases, validateJoin(snap), validateCapacities(snap.Rejected, *strict))
		}

		if !report(cmd.OutOrStdout(), phases) {
			return errValidationFailed
		}
		return nil
	},
}

func validateGeometry(geoms []domain.CountryGeometry, err error) *phase {
	p := &phase{name: "Boundary dataset"}
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if len(geoms) == 0 {
		p.errorf("dataset has no rows")
	}

	seen := make(map[string]int, len(geoms))
	for i, g := range geoms {
		if g.Country == "" {
			p.errorf("row %d: empty %s attribute", i+1, geometry.AttrAdmin)
			continue
		}
		if prev, ok := seen[g.Country]; ok {
			p.errorf("row %d: %s %q duplicates row %d", i+1, geometry.AttrAdmin, g.Country, prev)
		}
		seen[g.Country] = i + 1
		if len(g.Geometry) == 0 {
			p.notef("row %d: %q has no polygons", i+1, g.Country)
		}
	}
	return p
}

func validateJoin(snap domain.Snapshot) *phase {
	p := &phase{name: "Country join"}
	for _, c := range snap.Report.UnmatchedAggregates {
		if c == domain.MissingCountry {
			p.notef("placeholder country %q has no boundary", c)
			continue
		}
		p.errorf("country %q has no boundary row", c)
	}
	p.notef("%d of %d boundary rows have plant data", len(snap.Rows)-snap.Report.EmptyGeometries, len(snap.Rows))
	return p
}

func validateCapacities(rejected []domain.RejectedRow, strict bool) *phase {
	p := &phase{name: "Capacity parsing"}
	for _, r := range rejected {
		if strict {
			p.errorf("row %d (%s): %s", r.Row, r.Record.Name, r.Reason)
		} else {
			p.notef("row %d (%s): %s", r.Row, r.Record.Name, r.Reason)
		}
	}
	return p
}

// report prints a summary table followed by the details of each phase and
// returns whether every phase passed.
func report(w io.Writer, phases []*phase) bool {
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-24s %s\n", p.name, status)
	}

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.notes) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
		for _, n := range p.notes {
			fmt.Fprintf(w, "  note: %s\n", n)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
	} else {
		fmt.Fprintln(w, "\nValidation FAILED.")
	}
	return allPassed
}
