package gallery

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-tracker/internal/model"
)

const (
	maxSide     = 300 // tiles never exceed 300x300
	margin      = 10
	labelHeight = 24
	fontSize    = 14
)

// ErrNothingToRender is returned when no variant could be decoded.
var ErrNothingToRender = errors.New("no decodable variants")

// Renderer composes retrieved variants into a single contact sheet:
// one labelled tile per variant, left to right, in the order given.
type Renderer struct {
	fontPath string
}

// New creates a Renderer. With an empty fontPath the built-in bitmap face is used.
func New(fontPath string) *Renderer {
	return &Renderer{fontPath: fontPath}
}

type tile struct {
	kind model.VariantKind
	img  image.Image
}

// Compose lays the variants out on a white canvas.
// Variants whose payload cannot be decoded are left out.
func (r *Renderer) Compose(variants []model.RetrievedVariant) (image.Image, error) {
	tiles := make([]tile, 0, len(variants))

	for _, v := range variants {
		img, err := imaging.Decode(bytes.NewReader(v.Payload), imaging.AutoOrientation(true))
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("variant", string(v.Kind)).Msg("skipping undecodable variant")
			continue
		}

		// Fit only ever scales down.
		tiles = append(tiles, tile{kind: v.Kind, img: imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)})
	}

	if len(tiles) == 0 {
		return nil, ErrNothingToRender
	}

	width, height := margin, 0
	for _, t := range tiles {
		b := t.img.Bounds()
		width += b.Dx() + margin
		height = max(height, b.Dy())
	}
	height += labelHeight + 2*margin

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	if r.fontPath != "" {
		if err := dc.LoadFontFace(r.fontPath, fontSize); err != nil {
			return nil, fmt.Errorf("failed to load font: %w", err)
		}
	}

	dc.SetColor(color.Black)

	x := margin
	for _, t := range tiles {
		dc.DrawStringAnchored(string(t.kind), float64(x), float64(margin+labelHeight/2), 0, 0.5)
		dc.DrawImage(t.img, x, margin+labelHeight)
		x += t.img.Bounds().Dx() + margin
	}

	return dc.Image(), nil
}

// Save writes img to path; the format follows the file extension.
func Save(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save contact sheet: %w", err)
	}

	return nil
}
