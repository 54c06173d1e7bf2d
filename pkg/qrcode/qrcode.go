package qr

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"

	"github.com/fogleman/gg"
	"github.com/nfnt/resize"
	"github.com/skip2/go-qrcode"
)

// Invoice is the style used for invoice links
var Invoice = Config{
	Size:           512,
	DotScale:       0.42,
	RecoveryLevel:  qrcode.High,
	QuietZone:      2,
	Background:     color.RGBA{R: 255, G: 255, B: 255, A: 255},
	Foreground:     color.RGBA{R: 24, G: 24, B: 27, A: 255},
	LogoScale:      0.2,
	LogoBackground: color.RGBA{R: 255, G: 255, B: 255, A: 255},
}

type Config struct {
	Size           int
	DotScale       float64 // dot radius relative to a module, 0.5 makes touching dots
	RecoveryLevel  qrcode.RecoveryLevel
	QuietZone      int // modules of empty border
	Background     color.Color
	Foreground     color.Color
	LogoPath       string
	LogoScale      float64
	LogoBackground color.Color
}

var ErrEmptyContent = errors.New("qr: empty content")

// Generate renders content as a PNG with round dots and an optional round logo in the center
func (c Config) Generate(content string) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	code, err := qrcode.New(content, c.RecoveryLevel)
	if err != nil {
		return nil, err
	}
	code.DisableBorder = true
	bitmap := code.Bitmap()

	modules := len(bitmap) + 2*c.QuietZone
	module := float64(c.Size) / float64(modules)
	radius := module * c.DotScale
	offset := float64(c.QuietZone) * module

	dc := gg.NewContext(c.Size, c.Size)
	dc.SetColor(c.Background)
	dc.Clear()

	var logo image.Image
	logoSize := 0
	if c.LogoPath != "" {
		logo, err = gg.LoadImage(c.LogoPath)
		if err != nil {
			return nil, err
		}
		logoSize = int(float64(c.Size) * c.LogoScale)
	}
	center := float64(c.Size) / 2
	logoRadius := float64(logoSize)/2 + module

	dc.SetColor(c.Foreground)
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			px := offset + (float64(x)+0.5)*module
			py := offset + (float64(y)+0.5)*module
			if logo != nil && (px-center)*(px-center)+(py-center)*(py-center) < logoRadius*logoRadius {
				continue
			}
			dc.DrawCircle(px, py, radius)
		}
	}
	dc.Fill()

	if logo != nil {
		dc.DrawImage(roundLogo(logo, logoSize, c.LogoBackground), c.Size/2-logoSize/2, c.Size/2-logoSize/2)
	}

	var buf bytes.Buffer
	if err = png.Encode(&buf, dc.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func roundLogo(logo image.Image, size int, background color.Color) image.Image {
	half := float64(size) / 2

	ctx := gg.NewContext(size, size)
	ctx.DrawCircle(half, half, half)
	ctx.Clip()
	ctx.SetColor(background)
	ctx.DrawRectangle(0, 0, float64(size), float64(size))
	ctx.Fill()
	ctx.DrawImage(resize.Resize(uint(size), uint(size), logo, resize.Lanczos3), 0, 0)
	return ctx.Image()
}
