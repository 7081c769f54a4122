package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clouddrift/agentfs/vfs"
)

func newUploadCmd() *cobra.Command {
	var destDir string
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload local files as raw bytes",
		Long: "Uploads each local file to <dest>/<basename>. Items are independent:\n" +
			"a failed item is reported and does not stop the rest of the batch.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]vfs.UploadItem, 0, len(args))
			for _, local := range args {
				data, err := os.ReadFile(local)
				if err != nil {
					return err
				}
				dest := "/" + filepath.Base(local)
				if destDir != "" {
					dest = strings.TrimSuffix(destDir, "/") + dest
				}
				items = append(items, vfs.UploadItem{Path: dest, Data: data})
			}
			return withBackend(func(ctx context.Context, b vfs.Backend) error {
				results, err := b.Upload(ctx, items)
				if err != nil {
					return err
				}
				failed := 0
				for _, r := range results {
					if r.Err != nil {
						failed++
						fmt.Printf("failed  %s: %s\n", r.Path, r.Err.Message)
						continue
					}
					fmt.Printf("uploaded %s (%d bytes)\n", r.Path, r.BytesWritten)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d items failed", failed, len(results))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&destDir, "dest", "", "virtual directory to upload into")
	return cmd
}

func newDownloadCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "download <path>...",
		Short: "Download files as raw bytes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b vfs.Backend) error {
				results, err := b.Download(ctx, args)
				if err != nil {
					return err
				}
				failed := 0
				for _, r := range results {
					if r.Err != nil {
						failed++
						fmt.Printf("failed  %s: %s\n", r.Path, r.Err.Message)
						continue
					}
					local := filepath.Join(outDir, filepath.Base(r.Path))
					if err := os.WriteFile(local, r.Data, 0o644); err != nil {
						return err
					}
					fmt.Printf("downloaded %s -> %s (%d bytes)\n", r.Path, local, len(r.Data))
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d items failed", failed, len(results))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "local output directory")
	return cmd
}
