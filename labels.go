package main

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/hajimehoshi/ebiten/v2"
	text "github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/goregular"
)

// minLabelFontSize hides labels of players with almost no resources.
const minLabelFontSize = 4

var labelFaceSource *text.GoTextFaceSource

func initFont() error {
	src, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		return fmt.Errorf("load label font: %w", err)
	}
	labelFaceSource = src
	return nil
}

type labelImage struct {
	img  *ebiten.Image
	w, h int
}

// labelCache keeps rendered label images keyed by text, size and colour so
// labels are only rasterised when they change.
type labelCache struct {
	cache *ristretto.Cache[string, *labelImage]
}

func newLabelCache(maxMB int) (*labelCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, *labelImage]{
		NumCounters: 10000,
		MaxCost:     int64(maxMB) << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &labelCache{cache: c}, nil
}

// labelKey quantises the font size to half points.
func labelKey(txt string, size float64, clr [3]float32) string {
	return fmt.Sprintf("%s|%.1f|%02x%02x%02x", txt, math.Round(size*2)/2,
		unitToByte(clr[0]), unitToByte(clr[1]), unitToByte(clr[2]))
}

func (c *labelCache) get(txt string, size float64, clr [3]float32) *labelImage {
	if size < minLabelFontSize || labelFaceSource == nil {
		return nil
	}
	key := labelKey(txt, size, clr)
	if li, ok := c.cache.Get(key); ok {
		return li
	}
	li := buildLabelImage(txt, size, clr)
	if li != nil {
		c.cache.Set(key, li, int64(li.w*li.h*4))
	}
	return li
}

func (c *labelCache) Close() {
	c.cache.Close()
}

// buildLabelImage renders white text with a one pixel shadow in the owner's
// colour, sized like a canvas of 1.5 line heights.
func buildLabelImage(txt string, size float64, clr [3]float32) *labelImage {
	face := &text.GoTextFace{Source: labelFaceSource, Size: size}
	w, _ := text.Measure(txt, face, 0)
	iw := int(math.Ceil(w)) + 2
	ih := int(math.Ceil(size * 1.5))
	if iw <= 2 || ih <= 0 {
		return nil
	}
	img := ebiten.NewImage(iw, ih)

	shadow := &text.DrawOptions{}
	shadow.GeoM.Translate(1, size*0.25+1)
	shadow.ColorScale.ScaleWithColor(color.RGBA{unitToByte(clr[0]), unitToByte(clr[1]), unitToByte(clr[2]), 0xff})
	text.Draw(img, txt, face, shadow)

	op := &text.DrawOptions{}
	op.GeoM.Translate(0, size*0.25)
	op.ColorScale.ScaleWithColor(color.White)
	text.Draw(img, txt, face, op)
	return &labelImage{img: img, w: iw, h: ih}
}
