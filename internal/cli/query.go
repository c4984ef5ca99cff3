package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/shelf/internal/errmsg"
	"github.com/llehouerou/shelf/internal/library"
)

func newDuplicatesCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates",
		Short: "List duplicate groups found by the last scan",
		Args:  cobra.NoArgs,
		RunE: o.runE(func(cmd *cobra.Command, _ []string) error {
			groups, err := o.env.lib.DuplicateGroups(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintln(out, "No duplicates.")
				return nil
			}
			for _, g := range groups {
				fmt.Fprintf(out, "%s - %s\n", g.Primary.Artist, g.Primary.Title)
				fmt.Fprintf(out, "  * %s\n", g.Primary.Path)
				for _, d := range g.Duplicates {
					fmt.Fprintf(out, "    %s\n", d.Path)
				}
			}
			return nil
		}),
	}
}

func newSearchCommand(o *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tracks by title, artist, album or path",
		Args:  cobra.MinimumNArgs(1),
		RunE: o.runE(func(cmd *cobra.Command, args []string) error {
			results, err := o.env.lib.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return errors.New(errmsg.Format(errmsg.OpSearch, err))
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No tracks found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ARTIST\tTITLE\tALBUM\tLENGTH")
			for _, r := range results {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Artist, r.Title, r.Album, formatDuration(r.Duration))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of results")
	return cmd
}

func newStatsCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show library statistics",
		Args:  cobra.NoArgs,
		RunE: o.runE(func(cmd *cobra.Command, _ []string) error {
			st, err := o.env.lib.Stats(cmd.Context())
			if err != nil {
				return err
			}
			printStats(cmd, st)
			return nil
		}),
	}
}

func printStats(cmd *cobra.Command, st library.Stats) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	row := func(name string, n int) {
		fmt.Fprintf(w, "%s\t%s\n", name, humanize.Comma(int64(n)))
	}
	row("Folders", st.Folders)
	row("Tracks", st.Tracks)
	row("Albums", st.Albums)
	row("Artists", st.Artists)
	row("Genres", st.Genres)
	row("Duplicates", st.Duplicates)
	row("Duplicate groups", st.DuplicateGroups)
	_ = w.Flush()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
