package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/logger"
	"github.com/spigell/ses-matcher/internal/workflow"
)

var formatCandidatesCmd = &cobra.Command{
	Use:   "format-candidates",
	Short: "Structure raw candidate mails and write them back to the record source",
	Run: func(cmd *cobra.Command, _ []string) {
		index, _ := cmd.Flags().GetBool("index")
		runFlow(cmd, "format_candidates", index, func(ctx context.Context, w *workflow.Workflow, p workflow.Params) (workflow.Report, error) {
			p.Index = index
			return w.FormatCandidates(ctx, p)
		})
	},
}

var formatRequisitionsCmd = &cobra.Command{
	Use:   "format-requisitions",
	Short: "Structure raw requisition mails and write them back to the record source",
	Run: func(cmd *cobra.Command, _ []string) {
		runFlow(cmd, "format_requisitions", false, func(ctx context.Context, w *workflow.Workflow, p workflow.Params) (workflow.Report, error) {
			return w.FormatRequisitions(ctx, p)
		})
	},
}

var indexCandidatesCmd = &cobra.Command{
	Use:   "index-candidates",
	Short: "Embed structured candidates and upsert them into the vector store",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, a := setup()
		defer a.Close()

		w, err := a.IndexWorkflow(ctx, true)
		if err != nil {
			a.logger.Fatal("preparing the index flow", zap.Error(err))
		}

		report, err := w.IndexCandidates(ctx, paramsFromFlags(cmd))
		if err != nil {
			a.logger.Fatal("index_candidates failed", zap.Error(err))
		}
		printReport(a.logger, "index_candidates", report)
	},
}

func init() {
	for _, c := range []*cobra.Command{formatCandidatesCmd, formatRequisitionsCmd, indexCandidatesCmd} {
		addFilterFlags(c)
		rootCmd.AddCommand(c)
	}

	formatCandidatesCmd.Flags().Bool("index", false, "index the formatted candidates into the vector store")
}

func addFilterFlags(c *cobra.Command) {
	c.Flags().String("start-date", "", "first day to process (YYYY-MM-DD)")
	c.Flags().String("end-date", "", "last day to process (YYYY-MM-DD)")
	c.Flags().Int("limit", 0, "maximum number of records to fetch")
	c.Flags().Int("offset", 0, "number of records to skip")
}

func paramsFromFlags(c *cobra.Command) workflow.Params {
	var p workflow.Params
	p.StartDate, _ = c.Flags().GetString("start-date")
	p.EndDate, _ = c.Flags().GetString("end-date")
	p.Limit, _ = c.Flags().GetInt("limit")
	p.Offset, _ = c.Flags().GetInt("offset")
	return p
}

type flowFunc func(ctx context.Context, w *workflow.Workflow, p workflow.Params) (workflow.Report, error)

func runFlow(cmd *cobra.Command, name string, withIndex bool, flow flowFunc) {
	ctx, a := setup()
	defer a.Close()

	w, err := a.Workflow(ctx, withIndex)
	if err != nil {
		a.logger.Fatal("preparing the flow", logger.Flow(name), zap.Error(err))
	}

	report, err := flow(ctx, w, paramsFromFlags(cmd))
	if err != nil {
		a.logger.Fatal(name+" failed", zap.Error(err))
	}
	printReport(a.logger, name, report)
}

func printReport(logger *zap.Logger, name string, report workflow.Report) {
	// do not bother error since Report is a plain struct
	pretty, _ := json.MarshalIndent(report, "", "  ")
	logger.Info(name+" finished", zap.Int("processed", report.Processed), zap.Int("skipped", report.Skipped))
	writeOut(string(pretty))
}
