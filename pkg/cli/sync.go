package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/thepwagner/debmirror/pkg/mirror"
	"github.com/thepwagner/debmirror/pkg/server"
)

var errSyncFailed = errors.New("sync failed")

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [repo...]",
		Short: "Mirror the configured repositories",
		Long: `Fetches the indexes of each repository, downloads new packages and,
when remove_missing is set, removes packages that are no longer listed.
Without arguments every configured repository is synced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = opts.cfg.RepoNames()
			}

			var failed bool
			for _, name := range names {
				s, err := server.BuildSyncer(name, opts.cfg)
				if err != nil {
					return err
				}
				report := s.Run(cmd.Context())
				_ = s.Close()

				printReport(cmd.OutOrStdout(), report)
				if report.Failed() {
					failed = true
				}
			}
			if failed {
				return errSyncFailed
			}
			return nil
		},
	}
}

func printReport(out io.Writer, r *mirror.Report) {
	fmt.Fprintf(out, "%s: %s (run %s)\n", r.Repo, r.Phase, r.RunID)
	if r.Error != "" {
		fmt.Fprintf(out, "  error: %s\n", r.Error)
	}
	fmt.Fprintf(out, "  metadata: %s, %d/%d indexes, %d packages in %s\n",
		r.Metadata.State, r.Metadata.QueryFinished, r.Metadata.QueryTotal, r.Metadata.Packages, r.Metadata.Duration)
	fmt.Fprintf(out, "  packages: %s, %d new, %d/%d imported, %d downloaded, %d stale, %d removed, %d errors in %s\n",
		r.Packages.State, r.Packages.New, r.Packages.Finished, r.Packages.Total, r.Packages.Downloaded,
		r.Packages.Stale, r.Packages.Removed, r.Packages.Errors, r.Packages.Duration)
	for _, f := range r.Packages.Failures {
		fmt.Fprintf(out, "  failed %s: %s\n", f.Key, f.Error)
	}
}
