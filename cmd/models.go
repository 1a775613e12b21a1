package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/spigell/ses-matcher/internal/ai"
)

type modelsReport struct {
	Providers    []providerStatus    `yaml:"providers"`
	Catalog      []ai.ProviderModels `yaml:"catalog"`
	SpeedRanking []ai.ModelRef       `yaml:"speed_ranking"`
}

type providerStatus struct {
	Name      string `yaml:"name"`
	Available bool   `yaml:"available"`
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the LLM providers and models that can be selected",
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, _ := cmd.Flags().GetString("output")

		available := make(map[ai.Provider]bool, len(providers))
		for _, p := range providers {
			available[p.provider] = true
		}

		report := modelsReport{Catalog: ai.Catalog(), SpeedRanking: ai.SpeedRanking()}
		for _, name := range ai.Providers() {
			report.Providers = append(report.Providers, providerStatus{Name: name, Available: available[ai.Provider(name)]})
		}

		switch strings.ToLower(output) {
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(report)
		case "", "text":
			return printModels(report)
		default:
			return fmt.Errorf("unknown output format %q (valid: text, yaml)", output)
		}
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)

	modelsCmd.Flags().StringP("output", "o", "text", "output format: text or yaml")
}

func printModels(report modelsReport) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "PROVIDER\tMODEL\tMODEL ID\tDEFAULT\tAVAILABLE\tDESCRIPTION")
	for _, pm := range report.Catalog {
		available := isAvailable(report, pm.Provider)
		for _, m := range pm.Models {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\n", pm.Provider, m.Name, m.ModelID, m.Name == pm.Default, available, m.Description)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout)
	fmt.Fprintln(os.Stdout, "Fastest first:")
	for i, ref := range report.SpeedRanking {
		fmt.Fprintf(os.Stdout, "%2d. %s/%s\n", i+1, ref.Provider, ref.Model)
	}
	return nil
}

func isAvailable(report modelsReport, p ai.Provider) bool {
	for _, s := range report.Providers {
		if s.Name == p.String() {
			return s.Available
		}
	}
	return false
}
