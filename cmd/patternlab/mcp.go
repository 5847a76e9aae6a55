package main

import (
	"github.com/spf13/cobra"

	"github.com/rendis/patternlab/pkg/mcp"
)

func mcpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the topic tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog()
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs stay on stderr.
			srv := mcp.NewServer(mcp.Deps{Catalog: cat, Version: version, Logger: a.logger})
			return srv.Serve(cmd.Context())
		},
	}
}
