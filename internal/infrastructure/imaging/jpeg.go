// Package imaging растеризует кадры камеры и кодирует их в JPEG.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"hd-camera/internal/domain"
)

// Rasterize копирует кадр на отдельную поверхность точно того же размера
func Rasterize(src image.Image) *image.RGBA {
	return RasterizeInto(nil, src)
}

// RasterizeInto копирует кадр в dst, если размер совпадает,
// иначе выделяет новую поверхность
func RasterizeInto(dst *image.RGBA, src image.Image) *image.RGBA {
	b := src.Bounds()
	if dst == nil || dst.Bounds() != image.Rect(0, 0, b.Dx(), b.Dy()) {
		dst = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	draw.Copy(dst, image.Point{}, src, b, draw.Src, nil)
	return dst
}

// Thumbnail уменьшает кадр до maxWidth с сохранением пропорций.
// Кадры уже меньше maxWidth только копируются.
func Thumbnail(src image.Image, maxWidth int) *image.RGBA {
	b := src.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return Rasterize(src)
	}
	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// JPEGEncoder кодирует кадры в JPEG
type JPEGEncoder struct{}

// NewJPEGEncoder создает новый кодировщик
func NewJPEGEncoder() *JPEGEncoder {
	return &JPEGEncoder{}
}

// Encode растеризует кадр в исходном разрешении и кодирует с заданным качеством
func (e *JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, domain.ErrInvalidFrame
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Rasterize(img), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}
