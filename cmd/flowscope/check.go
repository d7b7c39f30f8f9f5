package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/flowscope/internal/ast"
	"github.com/dusk-indust/flowscope/internal/workspace"
)

// checkReport is the JSON form of one checked document.
type checkReport struct {
	Document string           `json:"document"`
	Errors   []ast.Diagnostic `json:"errors"`
	Warnings []ast.Diagnostic `json:"warnings"`
}

func newCheckCmd(flags *globalFlags) *cobra.Command {
	var strict bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check [file...]",
		Short: "Report syntax errors and import warnings",
		Long:  "Index the workspace and print the diagnostics of the given files, or of every workflow document when none are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			all, err := s.indexAll(cmd.Context())
			if err != nil {
				return err
			}
			ids := all
			if len(args) > 0 {
				ids = make([]ast.DocID, 0, len(args))
				for _, a := range args {
					id, err := resolve(a)
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
				s.svc.Update(cmd.Context(), ids)
			}

			reports := make([]checkReport, 0, len(ids))
			errCount, warnCount := 0, 0
			for _, id := range ids {
				d := s.svc.Diagnostics(id)
				errCount += len(d.Errors)
				warnCount += len(d.Warnings)
				reports = append(reports, checkReport{Document: s.rel(id), Errors: d.Errors, Warnings: d.Warnings})
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					printDiagnostics(out, r.Document, workspace.Diagnostics{Errors: r.Errors, Warnings: r.Warnings})
				}
				fmt.Fprintf(out, "%d documents, %d errors, %d warnings\n", len(reports), errCount, warnCount)
			}

			if errCount > 0 || (strict && warnCount > 0) {
				return exitCodeError{code: 2, err: fmt.Errorf("check failed: %d errors, %d warnings", errCount, warnCount)}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail on warnings too")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print diagnostics as JSON")
	return cmd
}

// printDiagnostics writes one "file:line:col: severity: message" line per
// diagnostic, errors first.
func printDiagnostics(w io.Writer, name string, d workspace.Diagnostics) {
	for _, list := range [][]ast.Diagnostic{d.Errors, d.Warnings} {
		for _, diag := range list {
			fmt.Fprintf(w, "%s:%d:%d: %s: %s", name, diag.Span.StartLine, diag.Span.StartCol, diag.Severity, diag.Message)
			if diag.Source != "" {
				fmt.Fprintf(w, " [%s]", diag.Source)
			}
			fmt.Fprintln(w)
		}
	}
}
