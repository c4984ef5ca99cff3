package cli

import (
	"github.com/spf13/cobra"
)

func newScanCommand(o *options) *cobra.Command {
	var hard bool
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan one folder, or all folders",
		Long: "Scan brings the library up to date with the files on disk. Unchanged\n" +
			"files are skipped; --hard re-reads the tags of every file.",
		Args: cobra.MaximumNArgs(1),
		RunE: o.runE(func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptible(cmd.Context())
			defer cancel()

			if len(args) == 0 {
				_, err := o.env.scanner.RefreshAll(ctx, hard)
				return err
			}
			f, err := lookupFolder(cmd, o, args[0])
			if err != nil {
				return err
			}
			_, err = o.env.scanner.RefreshFolder(ctx, f.ID, hard)
			return err
		}),
	}
	cmd.Flags().BoolVar(&hard, "hard", false, "re-read every file regardless of modification time")
	return cmd
}

func newRunCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep the library in sync until interrupted",
		Long: "Run applies the configured auto-scan policy (scan.auto_scan) and, when\n" +
			"scan.watch is set, rescans folders as their contents change.",
		Args: cobra.NoArgs,
		RunE: o.runE(func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := interruptible(cmd.Context())
			defer cancel()
			return o.env.scanner.Run(ctx)
		}),
	}
}
