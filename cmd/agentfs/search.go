package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clouddrift/agentfs/pkg/retry"
	"github.com/clouddrift/agentfs/vfs"
)

func printEntries(entries []vfs.ListEntry) {
	for _, e := range entries {
		if e.IsDir {
			fmt.Printf("%-12s %s\n", "-", e.Path)
			continue
		}
		fmt.Printf("%-12d %s\n", e.Size, e.Path)
	}
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List direct children of a prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := "/"
			if len(args) == 1 {
				prefix = args[0]
			}
			return withBackend(func(ctx context.Context, b vfs.Backend) error {
				entries, err := retry.DoWithResult(ctx, retryCfg(), func() ([]vfs.ListEntry, error) {
					return b.List(ctx, prefix)
				})
				if err != nil {
					return err
				}
				printEntries(entries)
				return nil
			})
		},
	}
}

func newGlobCmd() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "glob <pattern>",
		Short: "Find files matching a glob pattern (*, ?, **)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b vfs.Backend) error {
				entries, err := retry.DoWithResult(ctx, retryCfg(), func() ([]vfs.ListEntry, error) {
					return b.Glob(ctx, args[0], root)
				})
				if err != nil {
					return err
				}
				printEntries(entries)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&root, "root", "/", "directory to search under")
	return cmd
}

func newGrepCmd() *cobra.Command {
	var prefix, fileGlob string
	cmd := &cobra.Command{
		Use:   "grep <query>",
		Short: "Search file contents for a literal substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b vfs.Backend) error {
				matches, err := retry.DoWithResult(ctx, retryCfg(), func() ([]vfs.GrepMatch, error) {
					return b.Grep(ctx, args[0], prefix, fileGlob)
				})
				if err != nil {
					return err
				}
				for _, m := range matches {
					fmt.Printf("%s:%d:%s\n", m.Path, m.Line, m.Text)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "/", "directory to search under")
	cmd.Flags().StringVar(&fileGlob, "glob", "", "only search files matching this glob")
	return cmd
}
