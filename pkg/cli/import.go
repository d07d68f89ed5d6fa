package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thepwagner/debmirror/pkg/server"
	"github.com/thepwagner/debmirror/pkg/units"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <repo> <component> <file.deb|dir>...",
		Short: "Add local .deb packages to a mirrored repository",
		Long: `Stores local .deb packages in the pool of a component, as if they had
been mirrored. Directories are searched for .deb files.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := server.BuildSyncer(args[0], opts.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			component := args[1]
			for _, fn := range args[2:] {
				fi, err := os.Stat(fn)
				if err != nil {
					return err
				}

				var imported []units.Unit
				if fi.IsDir() {
					imported, err = s.ImportDir(cmd.Context(), fn, component)
				} else {
					var u units.Unit
					u, err = s.ImportDeb(cmd.Context(), fn, component)
					imported = append(imported, u)
				}
				if err != nil {
					return fmt.Errorf("importing %s: %w", fn, err)
				}

				for _, u := range imported {
					fmt.Fprintf(cmd.OutOrStdout(), "imported %s as %s\n", u.Key, u.Files[0].RelativePath)
				}
			}
			return nil
		},
	}
}
