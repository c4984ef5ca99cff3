package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/shelf/internal/library"
)

func newFoldersCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Manage library folders",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <path>...",
		Short: "Register folders and scan them",
		Args:  cobra.MinimumNArgs(1),
		RunE: o.runE(func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptible(cmd.Context())
			defer cancel()
			_, err := o.env.scanner.AddFolders(ctx, args...)
			return err
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <path>",
		Short: "Unregister a folder and delete its tracks",
		Args:  cobra.ExactArgs(1),
		RunE: o.runE(func(cmd *cobra.Command, args []string) error {
			f, err := lookupFolder(cmd, o, args[0])
			if err != nil {
				return err
			}
			return o.env.scanner.RemoveFolder(cmd.Context(), f.ID)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List library folders",
		Args:  cobra.NoArgs,
		RunE: o.runE(func(cmd *cobra.Command, _ []string) error {
			folders, err := o.env.lib.Folders(cmd.Context())
			if err != nil {
				return err
			}
			if len(folders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No folders. Add one with 'shelf folders add <path>'.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tTRACKS\tLAST SCAN")
			for _, f := range folders {
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.Path, humanize.Comma(int64(f.TrackCount)), lastScan(f))
			}
			return w.Flush()
		}),
	})

	return cmd
}

func lastScan(f library.Folder) string {
	if f.UpdatedAt.IsZero() {
		return "never"
	}
	return humanize.RelTime(f.UpdatedAt, time.Now(), "ago", "from now")
}

// lookupFolder finds a registered folder by path.
func lookupFolder(cmd *cobra.Command, o *options, path string) (library.Folder, error) {
	clean, err := library.CleanFolderPath(path)
	if err != nil {
		return library.Folder{}, err
	}
	f, err := o.env.lib.FolderByPath(cmd.Context(), clean)
	if errors.Is(err, library.ErrNotFound) {
		return library.Folder{}, fmt.Errorf("%s is not a library folder", clean)
	}
	return f, err
}
