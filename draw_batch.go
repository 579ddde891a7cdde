package main

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// whiteImage is a 1x1 white source for solid fills.
var whiteImage = func() *ebiten.Image {
	img := ebiten.NewImage(3, 3)
	img.Fill(color.White)
	return img.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
}()

// quadBatch batches textured quads into a single DrawTriangles call. Every
// quad in a batch samples the same source image.
type quadBatch struct {
	vs []ebiten.Vertex
	is []uint16
}

// Add appends a quad covering (x,y)-(x+w,y+h) on the destination that maps
// the source region (sx,sy)-(sx+sw,sy+sh), tinted by clr.
func (b *quadBatch) Add(x, y, w, h, sx, sy, sw, sh float32, clr color.RGBA) {
	start := uint16(len(b.vs))
	r, g, bcol, a := float32(clr.R)/255, float32(clr.G)/255, float32(clr.B)/255, float32(clr.A)/255
	b.vs = append(b.vs,
		ebiten.Vertex{DstX: x, DstY: y, SrcX: sx, SrcY: sy, ColorR: r, ColorG: g, ColorB: bcol, ColorA: a},
		ebiten.Vertex{DstX: x + w, DstY: y, SrcX: sx + sw, SrcY: sy, ColorR: r, ColorG: g, ColorB: bcol, ColorA: a},
		ebiten.Vertex{DstX: x, DstY: y + h, SrcX: sx, SrcY: sy + sh, ColorR: r, ColorG: g, ColorB: bcol, ColorA: a},
		ebiten.Vertex{DstX: x + w, DstY: y + h, SrcX: sx + sw, SrcY: sy + sh, ColorR: r, ColorG: g, ColorB: bcol, ColorA: a},
	)
	b.is = append(b.is, start, start+1, start+2, start+1, start+3, start+2)
}

// AddRect appends a solid rectangle. Draw it with whiteImage as the source.
func (b *quadBatch) AddRect(x, y, w, h float32, clr color.RGBA) {
	b.Add(x, y, w, h, 1, 1, 1, 1, clr)
}

// Draw flushes the accumulated quads onto dst and resets the batch.
func (b *quadBatch) Draw(dst, src *ebiten.Image, op *ebiten.DrawTrianglesOptions) {
	if len(b.is) == 0 {
		return
	}
	dst.DrawTriangles(b.vs, b.is, src, op)
	b.vs = b.vs[:0]
	b.is = b.is[:0]
}
