package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abworrall/rawload/pkg/node"
	"github.com/abworrall/rawload/pkg/rawfile"
)

// NewInfoCmd reads the files but doesn't decode them any further.
func NewInfoCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "info [files...]",
		Short: "describe the sensor data and metadata in RAW files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := ctx.Err(); err != nil {
					return err
				}
				f, err := rawfile.ReadFile(path)
				if err != nil {
					return err
				}
				fmt.Printf("%s\n  %s\n", path, f)
				fmt.Printf("  Make/Model: %s %s\n", f.Meta.Make, f.Meta.Model)
				fmt.Printf("  ISO %d, exposure %gs, f/%g\n", f.Meta.ISO, f.Meta.ExposureTime, f.Meta.FNumber)
				fmt.Printf("  Orientation: %d\n", f.Meta.Orientation)
				if f.Meta.AsShotNeutral != nil {
					fmt.Printf("  AsShotNeutral: %v\n", f.Meta.AsShotNeutral)
				}
				if f.Meta.ColorMatrix != nil {
					fmt.Printf("  ColorMatrix: %v\n", f.Meta.ColorMatrix)
				}
			}
			return nil
		},
	}
}

func NewHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [files...]",
		Short: "print the content hash the node uses to spot changed files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				h, err := node.ContentHash(path)
				if err != nil {
					return err
				}
				fmt.Printf("%s  %s\n", h, path)
			}
			return nil
		},
	}
}
