package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	ansi "github.com/pynezz/pynezzentials"
	"github.com/spf13/cobra"

	"github.com/tcs-sec/vulncases/internal/config"
	"github.com/tcs-sec/vulncases/internal/database"
	"github.com/tcs-sec/vulncases/internal/database/models"
	"github.com/tcs-sec/vulncases/internal/schema"
)

// init-db bootstraps the store: it creates the test_cases table with its
// unique vuln_id index and, when a sample file is configured, validates and
// loads the sample records.
func newInitDBCmd(configPath *string) *cobra.Command {
	var skipDuplicates bool
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the test case schema and load sample data",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer database.Close(db)

			store := database.NewTestCaseStore(db)
			if err := store.EnsureSchema(); err != nil {
				return err
			}
			ansi.PrintSuccess("unique index ensured on vuln_id")

			if cfg.SampleFile == "" {
				return nil
			}
			if _, err := os.Stat(cfg.SampleFile); os.IsNotExist(err) {
				ansi.PrintInfo("sample file not found: " + cfg.SampleFile)
				return nil
			}

			buf, err := os.ReadFile(cfg.SampleFile)
			if err != nil {
				return err
			}
			var payload struct {
				TestCases []map[string]any `json:"test_cases"`
			}
			if err := json.Unmarshal(buf, &payload); err != nil {
				return fmt.Errorf("parse sample file %s: %w", cfg.SampleFile, err)
			}
			if len(payload.TestCases) == 0 {
				ansi.PrintInfo("no test cases found in sample file")
				return nil
			}

			docs, err := schema.ValidateBatch(payload.TestCases)
			if err != nil {
				return fmt.Errorf("sample data invalid: %w", err)
			}
			records := make([]models.TestCase, 0, len(docs))
			for _, doc := range docs {
				records = append(records, models.FromMap(doc))
			}

			var inserted int
			if skipDuplicates {
				inserted, err = store.InsertSkipDuplicates(cmd.Context(), records)
			} else {
				inserted, err = store.Insert(cmd.Context(), records)
			}
			if err != nil {
				return err
			}
			ansi.PrintSuccess(fmt.Sprintf("inserted %d sample test cases", inserted))
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipDuplicates, "skip-duplicates", false, "ignore records whose vuln_id already exists")
	return cmd
}
