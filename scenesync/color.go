package scenesync

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/unicode/norm"

	"terrasync/world"
)

const maxLabelFontSize = 48

// PlayerColor derives a stable colour from a player id. Channels are in
// [0,1].
func PlayerColor(id world.PlayerID) [3]float32 {
	f := float64(id)
	return [3]float32{
		float32(math.Sin(f*0.5)*0.5 + 0.5),
		float32(math.Sin(f*0.7)*0.5 + 0.5),
		float32(math.Sin(f*0.9)*0.5 + 0.5),
	}
}

// LabelFontSize scales with the square root of resources and is capped.
func LabelFontSize(resources float64) float64 {
	if resources <= 0 {
		return 0
	}
	return math.Min(30*math.Sqrt(resources/1000), maxLabelFontSize)
}

// LabelText is the text shown over a player's territory.
func LabelText(p world.Player) string {
	name := norm.NFC.String(p.Name)
	if name == "" {
		name = "Player"
	}
	return fmt.Sprintf("%s (%s)", name, humanize.Comma(int64(math.Round(p.Resources))))
}

// Project maps a grid-space point onto a centre-origin, y-up scene of
// sceneW×sceneH pixels.
func Project(cx, cy float64, gridW, gridH int, sceneW, sceneH float64) (x, y float64) {
	x = cx/float64(gridW)*sceneW - sceneW/2
	y = -(cy/float64(gridH))*sceneH + sceneH/2
	return x, y
}
