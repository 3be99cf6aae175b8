package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/ehrextract/pkg/analytics/cohort"
	"github.com/synaptica-ai/ehrextract/pkg/attributes"
	"github.com/synaptica-ai/ehrextract/pkg/common/config"
	"github.com/synaptica-ai/ehrextract/pkg/common/logger"
	"github.com/synaptica-ai/ehrextract/pkg/common/models"
	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/ingestion"
	"github.com/synaptica-ai/ehrextract/pkg/study"
)

func main() {
	logger.Init()
	logger.Log.SetOutput(os.Stderr)
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "phenoctl",
		Short: "Derive study attribute rows from patient records",
	}
	rootCmd.PersistentFlags().String("codelists", cfg.CodelistsPath, "Path to the code list table")
	rootCmd.PersistentFlags().String("dates", cfg.StudyDatesPath, "Path to the study reference dates")

	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(extractCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadEngine(cmd *cobra.Command) (*study.Engine, error) {
	codelists, _ := cmd.Flags().GetString("codelists")
	dates, _ := cmd.Flags().GetString("dates")
	return study.Load(codelists, dates)
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the code lists and study dates build an engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "reference dates: %d\n", len(engine.References().Names()))
			fmt.Fprintf(out, "dates fields: %d\n", engine.DatesSchema().Len())
			fmt.Fprintf(out, "cohort fields: %d\n", engine.CohortSchema().Len())
			fmt.Fprintf(out, "cohorts: %v\n", engine.Cohorts())
			return nil
		},
	}
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the fields of a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			dataset, _ := cmd.Flags().GetString("dataset")
			schema := engine.CohortSchema()
			if dataset == models.DatasetDates {
				schema = engine.DatesSchema()
			}
			for _, f := range schema.Fields() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", f.Name, f.Kind)
			}
			return nil
		},
	}
	cmd.Flags().String("dataset", models.DatasetDates, "Dataset to describe (dates or a cohort id)")
	return cmd
}

func extractCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Read JSON-lines patient records and write JSON-lines rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			datasets, _ := cmd.Flags().GetStringSlice("dataset")
			workers, _ := cmd.Flags().GetInt("workers")
			batchSize, _ := cmd.Flags().GetInt("batch-size")
			input, _ := cmd.Flags().GetString("input")

			in := io.Reader(cmd.InOrStdin())
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc := cohort.NewService(engine, ingestion.NewValidator(cfg.AllowedSexes), cohort.WithWorkers(workers))
			summary, err := runExtract(ctx, svc, in, cmd.OutOrStdout(), datasets, batchSize)
			logger.Log.WithFields(map[string]interface{}{
				"records":  summary.Records,
				"rows":     summary.Rows,
				"rejected": summary.Rejected,
				"skipped":  summary.Skipped,
			}).Info("extraction finished")
			return err
		},
	}
	cmd.Flags().StringSlice("dataset", nil, "Datasets to derive (default: dates and every cohort)")
	cmd.Flags().Int("workers", cfg.ExtractWorkers, "Patients extracted concurrently")
	cmd.Flags().Int("batch-size", 500, "Records read per batch")
	cmd.Flags().String("input", "-", "Input file, or - for stdin")
	return cmd
}

type extractSummary struct {
	Records  int
	Rows     int
	Rejected int
	Skipped  int
}

// outputLine rows keep schema field order.
type outputLine struct {
	Dataset string          `json:"dataset"`
	Row     *attributes.Row `json:"row"`
}

// runExtract streams records through the service batch by batch so memory
// stays bounded by batchSize.
func runExtract(ctx context.Context, svc *cohort.Service, in io.Reader, out io.Writer, datasets []string, batchSize int) (extractSummary, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	var summary extractSummary
	enc := json.NewEncoder(out)

	flush := func(records []*events.PatientRecord) error {
		batch, err := svc.ExtractBatch(ctx, records, datasets)
		if err != nil {
			return err
		}
		for _, rejected := range batch.Rejected() {
			logger.Log.WithField("patient_id", rejected.PatientID).Warn(rejected.Reason)
		}
		summary.Rejected += len(batch.Rejected())
		summary.Skipped += batch.Skipped()
		for _, dataset := range batch.Datasets {
			for _, row := range batch.Rows(dataset) {
				if err := enc.Encode(outputLine{Dataset: dataset, Row: row}); err != nil {
					return err
				}
				summary.Rows++
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1<<20), 64<<20)
	var pending []*events.PatientRecord
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var rec events.PatientRecord
		if err := json.Unmarshal(text, &rec); err != nil {
			return summary, fmt.Errorf("line %d: %w", line, err)
		}
		pending = append(pending, &rec)
		summary.Records++
		if len(pending) >= batchSize {
			if err := flush(pending); err != nil {
				return summary, err
			}
			pending = pending[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, err
	}
	if len(pending) > 0 {
		if err := flush(pending); err != nil {
			return summary, err
		}
	}
	return summary, nil
}
