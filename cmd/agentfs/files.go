package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clouddrift/agentfs/pkg/retry"
	"github.com/clouddrift/agentfs/vfs"
)

func newReadCmd() *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "read <path>",
		Short: "Print file content with numbered lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b vfs.Backend) error {
				res, err := retry.DoWithResult(ctx, retryCfg(), func() (vfs.ReadResult, error) {
					return b.Read(ctx, args[0], vfs.ReadOptions{Offset: offset, Limit: limit})
				})
				if err != nil {
					return err
				}
				if res.Err != nil {
					return fmt.Errorf("%s", res.Err.Message)
				}
				fmt.Println(res.Content)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "first line to print (1-based)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of lines")
	return cmd
}

func newWriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write <path> <content>",
		Short: "Create a new file (fails if the path exists)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b vfs.Backend) error {
				res, err := retry.DoWithResult(ctx, retryCfg(), func() (vfs.WriteResult, error) {
					return b.Write(ctx, args[0], args[1])
				})
				if err != nil {
					return err
				}
				if res.Err != nil {
					return fmt.Errorf("%s", res.Err.Message)
				}
				fmt.Printf("wrote %s (%d bytes)\n", res.Path, res.BytesWritten)
				return nil
			})
		},
	}
}

func newEditCmd() *cobra.Command {
	var replaceAll bool
	cmd := &cobra.Command{
		Use:   "edit <path> <old> <new>",
		Short: "Replace text in an existing file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b vfs.Backend) error {
				res, err := retry.DoWithResult(ctx, retryCfg(), func() (vfs.EditResult, error) {
					return b.Edit(ctx, args[0], args[1], args[2], replaceAll)
				})
				if err != nil {
					return err
				}
				if res.Err != nil {
					return fmt.Errorf("%s", res.Err.Message)
				}
				fmt.Printf("edited %s (%d occurrence(s))\n", res.Path, res.Occurrences)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&replaceAll, "all", false, "replace every occurrence")
	return cmd
}
