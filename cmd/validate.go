package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		jsonMode bool
		strict   bool
	)
	cmd := &cobra.Command{
		Use:          "validate <document>",
		Short:        "Validate every element of a document against its definition",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := a.io.ReadDocument(cmd.Context(), path)
			if err != nil {
				return emitFailure(cmd, jsonMode, err)
			}
			doc, err := decodeDocument(a.embed.Schema(), path, data)
			if err != nil {
				return emitFailure(cmd, jsonMode, err)
			}
			summary := a.embed.Validate(doc)
			diags := fromFindings(summary.Errors)
			a.log.Debug("validated document", "path", path, "elements", summary.Count(), "findings", len(diags))

			if jsonMode {
				out := OpResult{Version: "1", Changed: false, Diagnostics: diags}
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(out); err != nil {
					return fmt.Errorf("encoding output: %w", err)
				}
			} else {
				for _, d := range diags {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n", d.Code, d.Severity, d.Path, sanitizePath(d.Message))
				}
			}

			if summary.HasErrors {
				return fmt.Errorf("document has validation errors")
			}
			if strict && len(diags) > 0 {
				return fmt.Errorf("document has validation warnings")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output diagnostics as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on warnings too")
	return cmd
}
