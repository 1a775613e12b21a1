package cmd

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete vector index entries received before a date",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, a := setup()
		defer a.Close()

		before, _ := cmd.Flags().GetString("before")
		yes, _ := cmd.Flags().GetBool("yes")

		if !yes {
			confirm := promptui.Prompt{
				Label:     fmt.Sprintf("Delete every %s entry received before %s", a.config.VectorStore.Type, before),
				IsConfirm: true,
			}
			if _, err := confirm.Run(); err != nil {
				if errors.Is(err, promptui.ErrAbort) {
					a.logger.Info("exiting", zap.String("reason", "got no from prompt"))
					return
				}
				a.logger.Fatal("exiting", zap.Error(err))
			}
		}

		w, err := a.IndexWorkflow(ctx, false)
		if err != nil {
			a.logger.Fatal("preparing the vector store", zap.Error(err))
		}

		removed, err := w.Prune(ctx, before)
		if err != nil {
			a.logger.Fatal("prune failed", zap.Error(err))
		}
		writeOut(fmt.Sprintf("removed %d entries", removed))
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().String("before", "", "cutoff date (YYYYMMDD or YYYY-MM-DD); older entries are deleted")
	pruneCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	_ = pruneCmd.MarkFlagRequired("before")
}
