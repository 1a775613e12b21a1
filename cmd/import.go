package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/records"
	"github.com/spigell/ses-matcher/internal/recordsource/sqlite"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load raw mails from a JSON array into the sqlite record source",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, a := setup()
		defer a.Close()

		category, _ := cmd.Flags().GetString("category")

		items, err := readRawRecords(args[0], records.Category(strings.TrimSpace(category)))
		if err != nil {
			a.logger.Fatal("reading records", zap.Error(err))
		}

		source, err := a.RecordSource()
		if err != nil {
			a.logger.Fatal("opening the record source", zap.Error(err))
		}
		store, ok := source.(*sqlite.Store)
		if !ok {
			a.logger.Fatal("import needs the sqlite record source", zap.String("hint", "set record-source.sqlite-path"))
		}

		if err := store.Import(ctx, items...); err != nil {
			a.logger.Fatal("import failed", zap.Error(err))
		}
		a.logger.Info("records imported", zap.Int("count", len(items)))
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("category", "", "category for records without 分類 (candidate or requisition)")
}

func readRawRecords(path string, category records.Category) ([]records.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	raw, err := records.DecodeRaw(items)
	if err != nil {
		return nil, err
	}

	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	for i := range raw {
		if raw[i].Category == "" {
			raw[i].Category = category
		}
	}
	return raw, nil
}
