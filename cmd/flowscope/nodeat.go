package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/flowscope/internal/ast"
)

func newNodeAtCmd(flags *globalFlags) *cobra.Command {
	var ancestors bool

	cmd := &cobra.Command{
		Use:   "node-at <file> <line> <col>",
		Short: "Print the innermost syntax node at a 1-based position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolve(args[0])
			if err != nil {
				return err
			}
			line, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("line: %w", err)
			}
			col, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("col: %w", err)
			}

			s, err := openSession(flags, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			s.svc.Update(cmd.Context(), []ast.DocID{id})

			n := s.svc.NodeAt(id, line, col)
			if n == nil {
				return fmt.Errorf("no node at %s:%d:%d", s.rel(id), line, col)
			}
			out := cmd.OutOrStdout()
			for depth := 0; n != nil; depth++ {
				fmt.Fprintf(out, "%*s%s", 2*depth, "", describeNode(n))
				fmt.Fprintln(out)
				if !ancestors && depth == 1 {
					break
				}
				n = s.svc.ParentOf(n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&ancestors, "ancestors", false, "print every ancestor, not only the parent")
	return cmd
}

func describeNode(n *ast.Node) string {
	text := n.Text
	if len(text) > 60 {
		text = text[:57] + "..."
	}
	field := ""
	if n.Field != "" {
		field = " (" + n.Field + ")"
	}
	return fmt.Sprintf("%s%s %d:%d-%d:%d %q", n.Kind, field,
		n.Span.StartLine, n.Span.StartCol, n.Span.EndLine, n.Span.EndCol, text)
}
