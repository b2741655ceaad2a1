// Package node is the glue between the decoder and a node-graph host: it
// describes the node's inputs, validates and fingerprints the chosen file,
// and runs the decode.
package node

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/abworrall/rawload/pkg/output"
	"github.com/abworrall/rawload/pkg/rawerr"
	"github.com/abworrall/rawload/pkg/rawload"
	"github.com/abworrall/rawload/pkg/tone"
)

const (
	Name        = "Load Raw Image"
	Category    = "image"
	Description = "Load a RAW image."
	ReturnType  = "IMAGE"
)

// InputSpec describes one input widget.
type InputSpec struct {
	Name    string
	Type    string // "BOOLEAN", "FLOAT", or "COMBO" for a pick list
	Default interface{}
	Min     float64
	Max     float64
	Step    float64
	Options []string
	Upload  bool
	Tooltip string
}

type InputTypes struct {
	Required []InputSpec
	Optional []InputSpec
}

// LoadRawImage is the node. The zero value isn't usable; it needs a
// Resolver.
type LoadRawImage struct {
	Resolver Resolver
}

func NewLoadRawImage(r Resolver) *LoadRawImage {
	return &LoadRawImage{Resolver: r}
}

// NodeConfig is the decode config for the three knobs the node exposes.
// Like the host's own RAW loader, output is quantized to 8 bits.
func NodeConfig(useAutoBright bool, brightAdjustment float64, highlightMode string) rawload.Config {
	c := rawload.NewConfig()
	c.UseAutoBright = useAutoBright
	c.BrightAdjustment = brightAdjustment
	c.HighlightMode = highlightMode
	c.OutputBPS = 8
	return c
}

func (n *LoadRawImage) InputTypes() (InputTypes, error) {
	files := []string{}
	if l, ok := n.Resolver.(Lister); ok {
		var err error
		if files, err = l.List(); err != nil {
			return InputTypes{}, err
		}
	}

	return InputTypes{
		Required: []InputSpec{
			{Name: "image", Type: "COMBO", Options: files, Upload: true, Tooltip: "Image to load."},
		},
		Optional: []InputSpec{
			{Name: "use_auto_bright", Type: "BOOLEAN", Default: true, Tooltip: "automatic increase of brightness"},
			{Name: "bright_adjustment", Type: "FLOAT", Default: 1.0, Min: tone.MinBrightness, Max: tone.MaxBrightness, Step: 0.1},
			{Name: "highlight_mode", Type: "COMBO", Default: string(tone.Clip),
				Options: []string{string(tone.Clip), string(tone.Ignore), string(tone.Blend), string(tone.Reconstruct)}},
		},
	}, nil
}

func (n *LoadRawImage) Validate(name string) error {
	if !n.Resolver.Exists(name) {
		return rawerr.Errorf(rawerr.UnreadableFile, "node.Validate", "Invalid image file: %s", name)
	}
	return nil
}

// IsChanged fingerprints the file's contents.
func (n *LoadRawImage) IsChanged(name string) (string, error) {
	path, err := n.Resolver.Resolve(name)
	if err != nil {
		return "", err
	}
	return ContentHash(path)
}

// Load decodes the named file. The context is only checked before work
// starts; a decode runs to completion once begun.
func (n *LoadRawImage) Load(ctx context.Context, name string, cfg rawload.Config) (*output.Image, error) {
	reqID := uuid.New().String()

	if err := ctx.Err(); err != nil {
		return nil, rawerr.New(rawerr.DecodeFailure, fmt.Sprintf("Failed to load RAW image '%s'", name), err)
	}

	path, err := n.Resolver.Resolve(name)
	if err != nil {
		return nil, err
	}

	if cfg.Verbosity > 0 {
		log.Printf("[%s] %s: loading '%s' (auto=%v, bright=%.2f, highlight=%s)\n", reqID, Name, path,
			cfg.UseAutoBright, cfg.BrightAdjustment, cfg.HighlightMode)
	}

	img, err := rawload.Decode(path, cfg)
	if err != nil {
		log.Printf("[%s] %s: '%s' failed: %v\n", reqID, Name, name, err)
		return nil, rawerr.Wrap(rawerr.DecodeFailure, fmt.Sprintf("Failed to load RAW image '%s'", name), err)
	}

	if cfg.Verbosity > 0 {
		log.Printf("[%s] %s: loaded %s\n", reqID, Name, img)
	}
	return img, nil
}
