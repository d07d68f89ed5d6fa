package cli

import (
	"github.com/spf13/cobra"
	"github.com/thepwagner/debmirror/pkg/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Publish the mirrored repositories over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				opts.cfg.Addr = addr
			}
			return server.Run(cmd.Context(), opts.cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overriding the configuration")
	return cmd
}
