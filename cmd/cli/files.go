package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fleveque/crop-uploader/internal/storage"
	"github.com/fleveque/crop-uploader/internal/upload"
	"github.com/fleveque/crop-uploader/internal/uploader"
)

func filesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect and manage the local file catalog",
	}
	cmd.AddCommand(filesListCmd())
	cmd.AddCommand(filesRmCmd())
	return cmd
}

func filesListCmd() *cobra.Command {
	var filter storage.FileFilter
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored files in upload order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			files, db, err := upload.OpenLocal(e.cfg.Storage, e.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := files.List(e.ctx, filter)
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(list)
			}
			// tabwriter aligns columns like `kubectl get`.
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPURPOSE\tPARENT\tNAME\tSIZE\tSRC")
			for _, f := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", f.ID, f.Purpose, f.ParentID, f.Meta.FileName, f.Meta.FileSize, f.Src)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&filter.ParentID, "parent-id", "", "only files of this parent")
	cmd.Flags().StringVar(&filter.Purpose, "purpose", "", "only files with this purpose")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print descriptors as JSON")
	return cmd
}

func filesRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a stored file from its gallery and the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			files, db, err := upload.OpenLocal(e.cfg.Storage, e.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			id := args[0]
			target, err := files.Get(e.ctx, id)
			if err != nil {
				return fmt.Errorf("file %s: %w", id, err)
			}

			// The gallery is the file's siblings: same parent, same purpose.
			siblings, err := files.List(e.ctx, storage.FileFilter{ParentID: target.ParentID, Purpose: target.Purpose})
			if err != nil {
				return err
			}
			gallery := uploader.NewGallery(siblings...)
			if !gallery.Remove(id) {
				return fmt.Errorf("file %s: %w", id, storage.ErrNotFound)
			}
			if err := files.Delete(e.ctx, id); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "removed %s, %d file(s) left for %s/%s\n", id, gallery.Len(), target.Purpose, target.ParentID)
			return nil
		},
	}
}
