package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/thepwagner/debmirror/pkg/server"
)

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <repo>",
		Short: "Print the parsed indexes of a repository as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := server.BuildSyncer(args[0], opts.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			dist, err := s.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(dist)
		},
	}
}
