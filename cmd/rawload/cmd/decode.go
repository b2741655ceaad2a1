package cmd

import (
	"context"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abworrall/rawload/pkg/node"
	"github.com/abworrall/rawload/pkg/output"
	"github.com/abworrall/rawload/pkg/rawload"
)

func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [files...]",
		Short: "decode RAW files to PNG or TIFF",
		Long:  "Decodes each file and writes <outdir>/<name>.<format>. Flags override the --config file.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromFlags(cmd)
			if err != nil {
				return err
			}
			if cfg.Verbosity > 0 {
				log.Printf("Final configuration:-\n\n%s\n", cfg.AsYaml())
			}

			outDir, _ := cmd.Flags().GetString("outdir")
			format, _ := cmd.Flags().GetString("format")
			thumb, _ := cmd.Flags().GetUint("thumbnail")
			caption, _ := cmd.Flags().GetBool("caption")
			writeHDR, _ := cmd.Flags().GetBool("hdr")

			switch format {
			case "png", "tiff":
			default:
				return fmt.Errorf("format '%s', want png or tiff", format)
			}

			for _, path := range args {
				if err := ctx.Err(); err != nil {
					return err
				}

				base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				fileCfg := cfg
				if writeHDR {
					fileCfg.HDRFile = filepath.Join(outDir, base+".hdr")
				}

				img, err := rawload.Decode(path, fileCfg)
				if err != nil {
					return err
				}

				var out image.Image = img
				if thumb > 0 {
					out = output.Thumbnail(out, thumb)
				}
				if caption {
					hash, err := node.ContentHash(path)
					if err != nil {
						return err
					}
					out = output.Annotate(out, fmt.Sprintf("%s %.12s", filepath.Base(path), hash))
				}

				filename := filepath.Join(outDir, base+"."+format)
				if err := output.WriteFile(filename, out); err != nil {
					return err
				}
				log.Printf("decode: %s -> %s (%s)\n", path, filename, img)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("outdir", "o", ".", "directory for the decoded images")
	f.StringP("format", "f", "png", "output format (png|tiff)")
	f.Uint("thumbnail", 0, "scale the output to fit in this many pixels square; 0 for full size")
	f.Bool("caption", false, "stamp the filename and content hash onto the output")
	f.Bool("hdr", false, "also write the linear, demosaiced image as <name>.hdr")
	return cmd
}
