package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaos-io/brandcam/asset"
	"github.com/chaos-io/brandcam/compose"
	"github.com/chaos-io/brandcam/live"
	"github.com/chaos-io/brandcam/matte"
	"github.com/chaos-io/brandcam/profile"
	"github.com/chaos-io/brandcam/raster"
	"github.com/chaos-io/brandcam/store"
)

// --- compose ---

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Render a branded background to a PNG file",
	Long: `Render a branded background to a PNG file.

Examples:
  brandcam compose --profile jane.json --base https://cdn.example.com/office.jpg --out bg.png
  brandcam compose --profile jane.json --color "#0052CC" --out bg.png
  brandcam compose --color "#00B8D9" --out plain.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profilePath, _ := cmd.Flags().GetString("profile")
		baseURI, _ := cmd.Flags().GetString("base")
		hex, _ := cmd.Flags().GetString("color")
		out, _ := cmd.Flags().GetString("out")

		if (baseURI == "") == (hex == "") {
			return errors.New("exactly one of --base or --color is required")
		}

		cfg, logger, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()
		composer, loader := newComposer(cfg, logger)

		var base image.Image
		if hex != "" {
			base, err = compose.SolidBase(hex, compose.Width, compose.Height)
		} else {
			base, err = loader.Load(cmd.Context(), baseURI)
		}
		if err != nil {
			return fmt.Errorf("load base: %w", err)
		}

		if profilePath == "" {
			canvas := raster.Canvas(compose.Width, compose.Height)
			raster.Cover(canvas, base)
			return writePNG(out, canvas)
		}

		p, err := profile.ReadFile(profilePath)
		if err != nil {
			return err
		}
		bg, err := composer.Compose(cmd.Context(), p, base)
		if err != nil {
			return err
		}
		for _, w := range bg.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		if err := writePNG(out, bg.Image); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wrote %s (%s, level %s, panels %d)\n", out, bg.ID, bg.Level, len(bg.Panels))
		return nil
	},
}

// --- composite ---

var compositeCmd = &cobra.Command{
	Use:   "composite",
	Short: "Composite one camera frame over a background using a mask",
	Long: `Composite one camera frame over a background using a mask.

Without --mask the frame is shown unmasked over the background.

Example:
  brandcam composite --background bg.png --frame frame.png --mask mask.png --out out.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bgPath, _ := cmd.Flags().GetString("background")
		framePath, _ := cmd.Flags().GetString("frame")
		maskPath, _ := cmd.Flags().GetString("mask")
		out, _ := cmd.Flags().GetString("out")
		softness, _ := cmd.Flags().GetFloat64("softness")

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		loader := asset.NewLoader()

		frame, err := loader.Load(ctx, framePath)
		if err != nil {
			return err
		}
		comp := live.NewCompositor(nil, live.WithSoftness(softness))
		comp.SetMode(live.Segmented)
		if bgPath != "" {
			bg, err := loader.Load(ctx, bgPath)
			if err != nil {
				return err
			}
			comp.SetBackground(&live.Layer{ID: bgPath, Image: bg})
		}
		if maskPath != "" {
			mask, err := loader.Load(ctx, maskPath)
			if err != nil {
				return err
			}
			comp.Masks().Publish(matte.FromImage(mask))
		}
		return writePNG(out, comp.Render(frame, time.Now()))
	},
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the stored employee profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *store.Store) error {
			p, err := db.LoadProfile(cmd.Context(), store.DefaultID)
			if err != nil {
				return err
			}
			data, err := profile.Encode(p)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(data))
			return nil
		})
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <file.json>",
	Short: "Validate a profile file and store it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withStore(func(db *store.Store) error {
			if err := db.SaveProfile(cmd.Context(), store.DefaultID, p); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "stored profile for %s (%s)\n", p.FullName, p.Level)
			return nil
		})
	},
}

func init() {
	composeCmd.Flags().String("profile", "", "profile JSON file ({\"employee\": {...}} or bare)")
	composeCmd.Flags().String("base", "", "base image uri: http(s), file:// or local path, data:")
	composeCmd.Flags().String("color", "", "solid base colour as #RGB or #RRGGBB")
	composeCmd.Flags().String("out", "background.png", "output PNG path")

	compositeCmd.Flags().String("background", "", "background image")
	compositeCmd.Flags().String("frame", "", "camera frame image")
	compositeCmd.Flags().String("mask", "", "segmentation mask (alpha or grayscale)")
	compositeCmd.Flags().String("out", "composite.png", "output PNG path")
	compositeCmd.Flags().Float64("softness", matte.DefaultSoftness, "mask edge blur sigma in pixels")
	_ = compositeCmd.MarkFlagRequired("frame")
}

func withStore(fn func(db *store.Store) error) error {
	cfg, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	db, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	return fn(db)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
