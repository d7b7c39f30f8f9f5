package main

import (
	"github.com/spf13/cobra"

	"github.com/dusk-indust/flowscope/internal/mcptools"
)

func newServeMCPCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the workflow analysis tools over MCP (stdio, or HTTP with --http)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(flags, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.indexAll(cmd.Context()); err != nil {
				return err
			}
			server := mcptools.NewMCPServer(mcptools.NewTools(s.svc, mcptools.Defaults{Verbose: s.cfg.Verbose}))
			if addr != "" {
				s.logger.Info("mcp.listen", "addr", addr)
				return mcptools.RunHTTP(cmd.Context(), server, addr)
			}
			return mcptools.RunStdio(cmd.Context(), server)
		},
	}

	cmd.Flags().StringVar(&addr, "http", "", "listen address for the streamable HTTP transport, e.g. localhost:8080")
	return cmd
}
