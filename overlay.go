package main

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	text "github.com/hajimehoshi/ebiten/v2/text/v2"

	"terrasync/scenesync"
	"terrasync/world"
)

const overlayFontSize = 14

// drawStatus shows the connection state in the top-left corner while the
// link is not open.
func drawStatus(screen *ebiten.Image, batch *quadBatch, cs world.ConnState) {
	msg := scenesync.StatusText(cs)
	if msg == "" || labelFaceSource == nil {
		return
	}
	drawOverlayLine(screen, batch, msg, 8, 8)
}

func drawFPS(screen *ebiten.Image, batch *quadBatch) {
	if labelFaceSource == nil {
		return
	}
	b := screen.Bounds()
	msg := fmt.Sprintf("%.0f fps", ebiten.ActualFPS())
	face := &text.GoTextFace{Source: labelFaceSource, Size: overlayFontSize}
	w, _ := text.Measure(msg, face, 0)
	drawOverlayLine(screen, batch, msg, float64(b.Dx())-w-16, 8)
}

func drawOverlayLine(screen *ebiten.Image, batch *quadBatch, msg string, x, y float64) {
	face := &text.GoTextFace{Source: labelFaceSource, Size: overlayFontSize}
	w, h := text.Measure(msg, face, 0)
	batch.AddRect(float32(x), float32(y), float32(w+8), float32(h+6), color.RGBA{0, 0, 0, 0xb0})
	batch.Draw(screen, whiteImage, nil)

	op := &text.DrawOptions{}
	op.GeoM.Translate(x+4, y+3)
	op.ColorScale.ScaleWithColor(color.White)
	text.Draw(screen, msg, face, op)
}
