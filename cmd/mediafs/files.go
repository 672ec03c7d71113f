package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/mediafs/cdn"
	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/fileprovider"
	"github.com/kbukum/mediafs/filesystem"
	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/util"
)

const timeLayout = "2006-01-02 15:04"

func pathArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func newLsCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := pathArg(args)
			return ro.runFiles(cmd, func(ctx context.Context, fs *filesystem.Adapter, _ *Config) error {
				listing, err := fs.GetDirectoryContents(ctx, dir)
				if err != nil {
					return err
				}
				if !listing.Exists() {
					return errors.NotFound("directory", dir)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
				for e := range listing.All() {
					if e.IsDir() {
						fmt.Fprintf(tw, "-\t-\t%s/\t\n", e.Name())
						continue
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t\n", util.FormatSize(e.Length()), formatTime(e.LastModified()), e.Name())
				}
				return tw.Flush()
			})
		},
	}
}

func newDirsCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dirs [path]",
		Short: "Print the folders directly under path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.runFiles(cmd, func(ctx context.Context, fs *filesystem.Adapter, _ *Config) error {
				dirs, err := fs.GetDirectories(ctx, pathArg(args))
				if err != nil {
					return err
				}
				for _, d := range dirs {
					fmt.Fprintln(cmd.OutOrStdout(), d)
				}
				return nil
			})
		},
	}
}

func newStatCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show a file's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := args[0]
			return ro.runFiles(cmd, func(ctx context.Context, fs *filesystem.Adapter, _ *Config) error {
				entry, err := fs.GetFileInfo(ctx, p)
				if err != nil {
					return err
				}
				if !entry.Exists() {
					return errors.NotFound("file", p)
				}
				key := fs.GetRelativePath(p)
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "key:      %s\n", key)
				fmt.Fprintf(w, "size:     %d (%s)\n", entry.Length(), util.FormatSize(entry.Length()))
				if f, ok := entry.(*fileprovider.FileEntry); ok {
					fmt.Fprintf(w, "created:  %s\n", formatTime(f.Created()))
				}
				fmt.Fprintf(w, "modified: %s\n", formatTime(entry.LastModified()))
				fmt.Fprintf(w, "url:      %s\n", fs.GetURL(key))
				return nil
			})
		},
	}
}

func newPutCmd(ro *rootOptions) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "put <local-file|-> <path>",
		Short: "Upload a local file, or stdin with -",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			dst := args[1]
			return ro.runFiles(cmd, func(ctx context.Context, fs *filesystem.Adapter, _ *Config) error {
				if err := fs.AddFile(ctx, dst, src, overwrite); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), fs.GetURL(fs.GetRelativePath(dst)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", true, "replace an existing file")
	return cmd
}

func newRmCmd(ro *rootOptions) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file, or a folder with -r",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := args[0]
			return ro.runFiles(cmd, func(ctx context.Context, fs *filesystem.Adapter, _ *Config) error {
				if recursive {
					return fs.DeleteDirectory(ctx, p, true)
				}
				return fs.DeleteFile(ctx, p)
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete a folder and everything under it")
	return cmd
}

func newURLCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "url <path>",
		Short: "Print the public URL of a file and its CDN form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := ro.load()
			if err != nil {
				return err
			}
			cfg.ApplyDefaults()
			fs, err := filesystem.New(cfg.Storage, nil, logger.Nop())
			if err != nil {
				return err
			}
			rewriter, err := cdn.New(cfg.CDN, cfg.MediaPath, logger.Nop())
			if err != nil {
				return err
			}

			public := fs.GetURL(fs.GetRelativePath(args[0]))
			fmt.Fprintln(cmd.OutOrStdout(), public)
			if rewriter.Enabled() {
				fmt.Fprintln(cmd.OutOrStdout(), rewriter.Rewrite(public))
			}
			return nil
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}
