package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/matching"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find and rank candidates for a requisition",
	Example: `  ses-matcher match --requisition '{"案件名":"Java開発","必須スキル":"Java"}'
  ses-matcher match --requisition @anken.json --stream`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, a := setup()
		defer a.Close()

		raw, _ := cmd.Flags().GetString("requisition")
		quick, _ := cmd.Flags().GetBool("quick")
		stream, _ := cmd.Flags().GetBool("stream")

		requisition, err := readRequisition(raw)
		if err != nil {
			a.logger.Fatal("reading the requisition", zap.Error(err))
		}

		m, err := a.Matcher(ctx)
		if err != nil {
			a.logger.Fatal("preparing the matcher", zap.Error(err))
		}

		if stream {
			mode := matching.ModeFull
			if quick {
				mode = matching.ModeQuick
			}
			failed := false
			for ev := range m.Stream(ctx, requisition, matching.StreamOptions{Mode: mode}) {
				line, err := json.Marshal(ev)
				if err != nil {
					a.logger.Fatal("encoding an event", zap.Error(err))
				}
				writeOut(string(line))
				if ev.Type() == matching.EventError {
					failed = true
				}
			}
			if failed {
				os.Exit(1)
			}
			return
		}

		var out any
		if quick {
			hits, err := m.Quick(ctx, requisition)
			if err != nil {
				a.logger.Fatal("quick search failed", zap.Error(err))
			}
			out = map[string]any{"quick_results": hits}
		} else {
			result, err := m.Match(ctx, requisition)
			if err != nil {
				var parseErr *matching.ParseError
				if errors.As(err, &parseErr) {
					a.logger.Error("ranking response is not valid", zap.String("raw_response", parseErr.Raw))
				}
				a.logger.Fatal("matching failed", zap.Error(err))
			}
			out = result
		}

		pretty, err := marshalPretty(out)
		if err != nil {
			a.logger.Fatal("encoding the result", zap.Error(err))
		}
		writeOut(pretty)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("requisition", "r", "", "requisition JSON, or @path to read it from a file (- for stdin)")
	matchCmd.Flags().BoolP("quick", "q", false, "return vector search hits without LLM ranking")
	matchCmd.Flags().BoolP("stream", "s", false, "print progress events as JSON lines")

	_ = matchCmd.MarkFlagRequired("requisition")
}

// readRequisition accepts inline JSON, @file or @- for stdin.
func readRequisition(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "@") {
		if raw == "" {
			return "", errors.New("requisition is empty")
		}
		return raw, nil
	}

	path := strings.TrimPrefix(raw, "@")
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read requisition %s: %w", path, err)
	}

	out := strings.TrimSpace(string(data))
	if out == "" {
		return "", fmt.Errorf("requisition file %s is empty", path)
	}
	return out, nil
}

// marshalPretty keeps Japanese text and symbols readable.
func marshalPretty(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func writeOut(s string) {
	fmt.Fprintln(os.Stdout, s)
}
