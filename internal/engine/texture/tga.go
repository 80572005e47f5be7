package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrTGATruncated is returned when pixel data ends early.
var ErrTGATruncated = errors.New("TGA data truncated")

// TGA image types.
const (
	tgaTrueColor    = 2
	tgaGray         = 3
	tgaTrueColorRLE = 10
	tgaGrayRLE      = 11
)

// DecodeTGA decodes true-color and grayscale TGA images, raw or
// run-length encoded. Color-mapped images are rejected.
func DecodeTGA(data []byte) (image.Image, error) {
	if len(data) < 18 {
		return nil, ErrTGATruncated
	}
	idLen := int(data[0])
	if data[1] != 0 {
		return nil, errors.New("color-mapped TGA not supported")
	}
	kind := data[2]
	w := int(data[12]) | int(data[13])<<8
	h := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	topDown := data[17]&0x20 != 0

	gray := kind == tgaGray || kind == tgaGrayRLE
	rle := kind == tgaTrueColorRLE || kind == tgaGrayRLE
	switch {
	case kind != tgaTrueColor && kind != tgaTrueColorRLE && !gray:
		return nil, fmt.Errorf("unsupported TGA type %d", kind)
	case gray && bpp != 8:
		return nil, fmt.Errorf("unsupported grayscale TGA depth %d", bpp)
	case !gray && bpp != 24 && bpp != 32:
		return nil, fmt.Errorf("unsupported TGA depth %d", bpp)
	}

	src := data[min(18+idLen, len(data)):]
	px := bpp / 8
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	read := func(p []byte) color.RGBA {
		if gray {
			return color.RGBA{p[0], p[0], p[0], 255}
		}
		c := color.RGBA{R: p[2], G: p[1], B: p[0], A: 255}
		if px == 4 {
			c.A = p[3]
		}
		return c
	}
	put := func(i int, c color.RGBA) {
		x, y := i%w, i/w
		if !topDown {
			y = h - 1 - y
		}
		img.SetRGBA(x, y, c)
	}

	total, pos := w*h, 0
	for i := 0; i < total; {
		if !rle {
			if pos+px > len(src) {
				return nil, ErrTGATruncated
			}
			put(i, read(src[pos:]))
			pos += px
			i++
			continue
		}

		if pos >= len(src) {
			return nil, ErrTGATruncated
		}
		hdr := src[pos]
		pos++
		n := int(hdr&0x7f) + 1
		if hdr&0x80 != 0 {
			if pos+px > len(src) {
				return nil, ErrTGATruncated
			}
			c := read(src[pos:])
			pos += px
			for k := 0; k < n && i < total; k++ {
				put(i, c)
				i++
			}
			continue
		}
		for k := 0; k < n && i < total; k++ {
			if pos+px > len(src) {
				return nil, ErrTGATruncated
			}
			put(i, read(src[pos:]))
			pos += px
			i++
		}
	}
	return img, nil
}
