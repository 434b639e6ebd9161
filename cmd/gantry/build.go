package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gantrybuild/gantry/lib/assemble"
	"github.com/gantrybuild/gantry/lib/buildfile"
	"github.com/gantrybuild/gantry/lib/export"
	"github.com/gantrybuild/gantry/lib/registry"
)

type buildOptions struct {
	file      string
	layoutDir string
	tarPath   string
	tarTag    string
	pushRef   string
}

func newBuildCmd() *cobra.Command {
	opts := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Assemble an image from a build manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := initializeApp()
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			defer cleanup()
			return runBuild(cmd.Context(), app, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "gantry.yaml", "path to the build manifest")
	cmd.Flags().StringVar(&opts.layoutDir, "layout", "", "write the image to an OCI layout directory")
	cmd.Flags().StringVar(&opts.tarPath, "tar", "", "write the image to a docker-style tarball")
	cmd.Flags().StringVar(&opts.tarTag, "tag", "gantry.local/build:latest", "reference the tarball is tagged with")
	cmd.Flags().StringVar(&opts.pushRef, "push", "", "push the image to a registry reference")
	return cmd
}

func runBuild(ctx context.Context, app *application, opts *buildOptions) error {
	bf, err := buildfile.Load(opts.file)
	if err != nil {
		return err
	}

	var base assemble.BaseImageProducer
	var baseLayers assemble.BaseLayersProducer
	if bf.Scratch() {
		scratch := registry.Scratch{Architecture: bf.Architecture, OS: bf.OS}
		base, baseLayers = scratch, scratch
	} else {
		ref, err := registry.ParseNormalizedRef(bf.From)
		if err != nil {
			return err
		}
		remote := registry.NewRemote(ref, registry.RemoteConfig{
			Architecture: bf.Architecture,
			OS:           bf.OS,
			Anonymous:    app.Config.Anonymous,
			Insecure:     app.Config.Insecure,
			Logger:       app.Logger,
		})
		base, baseLayers = remote, remote
	}

	container, err := bf.ContainerConfig()
	if err != nil {
		return err
	}

	img, err := app.Assembler.Assemble(ctx, assemble.Config{
		Workers:   app.Config.Workers,
		Container: container,
	}, assemble.Request{
		BaseImage:  base,
		BaseLayers: baseLayers,
		AppLayers:  bf.AppLayers(),
	})
	if err != nil {
		return err
	}

	rendered, err := export.Render(img)
	if err != nil {
		return fmt.Errorf("render image: %w", err)
	}

	if opts.layoutDir != "" {
		if err := export.WriteOCILayout(opts.layoutDir, rendered); err != nil {
			return fmt.Errorf("write layout: %w", err)
		}
		app.Logger.Info("wrote OCI layout", "dir", opts.layoutDir)
	}
	if opts.tarPath != "" {
		if err := export.WriteTarball(opts.tarPath, opts.tarTag, rendered); err != nil {
			return fmt.Errorf("write tarball: %w", err)
		}
		app.Logger.Info("wrote tarball", "path", opts.tarPath, "tag", opts.tarTag)
	}
	if opts.pushRef != "" {
		if err := export.Push(ctx, opts.pushRef, rendered, export.PushConfig{Insecure: app.Config.Insecure}); err != nil {
			return fmt.Errorf("push image: %w", err)
		}
		app.Logger.Info("pushed image", "ref", opts.pushRef)
	}

	summary, err := export.Summarize(rendered)
	if err != nil {
		return fmt.Errorf("summarize image: %w", err)
	}
	fmt.Printf("%s (%d layers, %s)\n", summary.Digest, summary.Layers, summary.Size.HR())
	return nil
}
