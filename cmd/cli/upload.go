package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fleveque/crop-uploader/internal/storage"
	"github.com/fleveque/crop-uploader/internal/upload"
	"github.com/fleveque/crop-uploader/internal/uploader"
)

func uploadCmd() *cobra.Command {
	var flags cropFlags
	var title, purpose, parentID string
	var maxFiles int

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Crop an image and upload it through the configured backend",
		Long: `Runs one uploader instance end to end: select --in, apply the crop
flags, rasterize, upload. Descriptors are printed as JSON on stdout.

With the local backend, files already stored under the same purpose and
parent id count towards --max-files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := e.cfg.Uploader
			if cmd.Flags().Changed("aspect") {
				cfg.AspectRatio = flags.aspect
			}
			if cmd.Flags().Changed("title") {
				cfg.Title = title
			}
			if cmd.Flags().Changed("purpose") {
				cfg.FileMetadata.Purpose = purpose
			}
			if cmd.Flags().Changed("parent-id") {
				cfg.FileMetadata.ParentID = parentID
			}
			if cmd.Flags().Changed("max-files") {
				cfg.MaxFiles = maxFiles
			}

			service, closeService, err := upload.New(e.cfg, e.logger.Named("upload"))
			if err != nil {
				return err
			}
			defer closeService()

			gallery := uploader.NewGallery()
			if local, ok := service.(*upload.LocalService); ok {
				existing, err := local.List(e.ctx, storage.FileFilter{
					ParentID: cfg.FileMetadata.ParentID,
					Purpose:  cfg.FileMetadata.Purpose,
				})
				if err != nil {
					return err
				}
				gallery.Append(existing...)
			}

			up := uploader.New(cfg, gallery, e.rasterizer(), service, uploader.NewZapNotifier(e.logger), e.logger.Named("uploader"))
			if err := up.Open(); err != nil {
				return err
			}

			img, err := flags.readInput()
			if err != nil {
				return err
			}
			if err := up.Select(img); err != nil {
				return err
			}
			params, err := flags.params()
			if err != nil {
				return err
			}
			if err := params.Apply(up.Session()); err != nil {
				return err
			}

			files, err := up.Save(e.ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(files); err != nil {
				return fmt.Errorf("printing descriptors: %w", err)
			}
			return nil
		},
	}

	flags.register(cmd, 1)
	cmd.Flags().StringVar(&title, "title", "", "uploader title used in messages")
	cmd.Flags().StringVar(&purpose, "purpose", "", "file purpose, e.g. profile_logo")
	cmd.Flags().StringVar(&parentID, "parent-id", "", "id of the record the file belongs to")
	cmd.Flags().IntVar(&maxFiles, "max-files", 1, "refuse to upload once this many files exist (0 = unlimited)")
	return cmd
}
