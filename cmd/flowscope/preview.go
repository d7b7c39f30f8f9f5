package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/flowscope/internal/ast"
)

func newPreviewCmd(flags *globalFlags) *cobra.Command {
	var scope string
	var verbose bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Print the dataflow graph of a workflow as Mermaid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolve(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(flags, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.indexAll(cmd.Context()); err != nil {
				return err
			}
			if !s.svc.Cache().Has(id) {
				// The file lives outside the root.
				s.svc.Update(cmd.Context(), []ast.DocID{id})
			}

			verbose = verbose || s.cfg.Verbose
			out := cmd.OutOrStdout()
			if asJSON {
				g, err := s.svc.PreviewJSON(id, scope, verbose)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(g)
			}
			mmd, err := s.svc.Preview(id, scope, verbose)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(out, mmd)
			return err
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "name of a @workflow to preview (default: the entry workflow)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "include helper calls and expression subgraphs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON nodes and edges instead of Mermaid")
	return cmd
}
