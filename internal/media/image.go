// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register decoder
	"image/png"
	"io"
	"time"

	_ "golang.org/x/image/bmp" // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

// DecodeImage decodes PNG, JPEG, BMP or WebP bytes into an rgb24 frame.
func DecodeImage(r io.Reader) (Frame, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return Frame{}, fmt.Errorf("decode image: %w", err)
	}
	f := FromImage(img)
	f.CapturedAt = time.Now()
	return f, nil
}

// FromImage converts any image into an rgb24 frame.
func FromImage(img image.Image) Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]byte, 0, w*h*3)
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
			for x := 0; x < w; x++ {
				data = append(data, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	} else {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
				data = append(data, c.R, c.G, c.B)
			}
		}
	}
	return Frame{Width: w, Height: h, Format: FormatRGB24, Data: data}
}

// ToImage converts a raw frame into an *image.RGBA.
func ToImage(f Frame) (*image.RGBA, error) {
	if f.Format.Encoded() {
		return nil, fmt.Errorf("cannot convert encoded %s frame to image", f.Format)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	switch f.Format {
	case FormatRGBA:
		copy(img.Pix, f.Data)
	case FormatRGB24:
		for i, j := 0, 0; i < len(f.Data); i, j = i+3, j+4 {
			img.Pix[j] = f.Data[i]
			img.Pix[j+1] = f.Data[i+1]
			img.Pix[j+2] = f.Data[i+2]
			img.Pix[j+3] = 0xff
		}
	case FormatI420:
		ycc := &image.YCbCr{
			Y:              f.Data[:f.Width*f.Height],
			YStride:        f.Width,
			CStride:        (f.Width + 1) / 2,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           image.Rect(0, 0, f.Width, f.Height),
		}
		csize := ycc.CStride * ((f.Height + 1) / 2)
		ycc.Cb = f.Data[f.Width*f.Height : f.Width*f.Height+csize]
		ycc.Cr = f.Data[f.Width*f.Height+csize:]
		draw.Draw(img, img.Bounds(), ycc, image.Point{}, draw.Src)
	default:
		return nil, fmt.Errorf("unsupported pixel format %q", f.Format)
	}
	return img, nil
}

// Scale returns f resized to width x height as rgb24. Frames that already match are
// returned unchanged.
func Scale(f Frame, width, height int) (Frame, error) {
	if f.Width == width && f.Height == height && f.Format == FormatRGB24 {
		return f, nil
	}
	src, err := ToImage(f)
	if err != nil {
		return Frame{}, err
	}
	var out image.Image = src
	if f.Width != width || f.Height != height {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		out = dst
	}
	scaled := FromImage(out)
	scaled.Seq = f.Seq
	scaled.CapturedAt = f.CapturedAt
	return scaled, nil
}

// EncodePNG renders a raw frame as PNG.
func EncodePNG(f Frame) ([]byte, error) {
	img, err := ToImage(f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
