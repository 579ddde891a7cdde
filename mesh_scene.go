package main

import (
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"terrasync/scenesync"
	"terrasync/world"
)

// cellLayer is a per-cell colour texture that is stretched over the whole
// viewport. Pixels are written by the store side and uploaded on the draw
// goroutine.
type cellLayer struct {
	w, h  int
	pix   []byte
	dirty bool
	img   *ebiten.Image
}

func (l *cellLayer) set(w, h int, rgb []float32) {
	l.w, l.h = w, h
	l.pix = rgbToPixels(rgb, w*h)
	l.dirty = true
}

// upload pushes pending pixels to the GPU, reusing the texture while the
// dimensions hold.
func (l *cellLayer) upload() {
	if !l.dirty {
		return
	}
	l.dirty = false
	if l.img != nil {
		if b := l.img.Bounds(); b.Dx() != l.w || b.Dy() != l.h {
			l.img.Deallocate()
			l.img = nil
		}
	}
	if l.img == nil {
		l.img = ebiten.NewImageWithOptions(image.Rect(0, 0, l.w, l.h), nil)
	}
	l.img.WritePixels(l.pix)
}

func (l *cellLayer) dispose() {
	if l.img != nil {
		l.img.Deallocate()
		l.img = nil
	}
}

// rgbToPixels converts n float RGB triples in [0,1] into opaque RGBA bytes.
func rgbToPixels(rgb []float32, n int) []byte {
	pix := make([]byte, n*4)
	for i := 0; i < n && i*3+2 < len(rgb); i++ {
		pix[i*4] = unitToByte(rgb[i*3])
		pix[i*4+1] = unitToByte(rgb[i*3+1])
		pix[i*4+2] = unitToByte(rgb[i*3+2])
		pix[i*4+3] = 0xff
	}
	return pix
}

func unitToByte(v float32) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xff
	}
	return byte(v*255 + 0.5)
}

// meshScene is the ebiten implementation of scenesync.Scene. The scene
// methods may be called from any goroutine; Draw runs on ebiten's.
type meshScene struct {
	mu       sync.Mutex
	terrain  cellLayer
	owners   cellLayer
	labels   []scenesync.Label
	viewport scenesync.Viewport
	status   world.ConnState

	opacity float32
	cache   *labelCache
	batch   quadBatch
}

func newMeshScene(opacity float64, cache *labelCache) *meshScene {
	return &meshScene{opacity: float32(opacity), cache: cache}
}

func (s *meshScene) SetTerrainColors(width, height int, rgb []float32) {
	s.mu.Lock()
	s.terrain.set(width, height, rgb)
	s.mu.Unlock()
}

func (s *meshScene) SetOwnershipColors(width, height int, rgb []float32) {
	s.mu.Lock()
	s.owners.set(width, height, rgb)
	s.mu.Unlock()
}

func (s *meshScene) SetLabels(labels []scenesync.Label) {
	s.mu.Lock()
	s.labels = labels
	s.mu.Unlock()
}

func (s *meshScene) SetViewport(v scenesync.Viewport) {
	s.mu.Lock()
	s.viewport = v
	s.mu.Unlock()
}

func (s *meshScene) SetStatus(cs world.ConnState) {
	s.mu.Lock()
	s.status = cs
	s.mu.Unlock()
}

// Draw renders terrain, the ownership overlay and labels onto screen.
func (s *meshScene) Draw(screen *ebiten.Image) {
	s.mu.Lock()
	s.terrain.upload()
	s.owners.upload()
	terrain, owners := s.terrain.img, s.owners.img
	labels := s.labels
	vp := s.viewport
	status := s.status
	s.mu.Unlock()

	screen.Fill(color.Black)
	vw, vh := float32(vp.Width), float32(vp.Height)
	if vw <= 0 || vh <= 0 {
		b := screen.Bounds()
		vw, vh = float32(b.Dx()), float32(b.Dy())
	}

	op := &ebiten.DrawTrianglesOptions{Filter: ebiten.FilterLinear}
	if terrain != nil {
		b := terrain.Bounds()
		s.batch.Add(0, 0, vw, vh, 0, 0, float32(b.Dx()), float32(b.Dy()), color.RGBA{0xff, 0xff, 0xff, 0xff})
		s.batch.Draw(screen, terrain, op)
	}
	if owners != nil {
		b := owners.Bounds()
		a := uint8(s.opacity*255 + 0.5)
		s.batch.Add(0, 0, vw, vh, 0, 0, float32(b.Dx()), float32(b.Dy()), color.RGBA{0xff, 0xff, 0xff, a})
		s.batch.Draw(screen, owners, op)
	}

	for _, l := range labels {
		s.drawLabel(screen, l, float64(vw), float64(vh))
	}
	if gs.ShowStatus {
		drawStatus(screen, &s.batch, status)
	}
}

// sceneToScreen converts centre-origin, y-up scene coordinates to screen
// pixels.
func sceneToScreen(x, y, vw, vh float64) (float64, float64) {
	return x + vw/2, vh/2 - y
}

func (s *meshScene) drawLabel(screen *ebiten.Image, l scenesync.Label, vw, vh float64) {
	if s.cache == nil {
		return
	}
	li := s.cache.get(l.Text, l.FontSize, l.Color)
	if li == nil {
		return
	}
	sx, sy := sceneToScreen(l.X, l.Y, vw, vh)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(sx-float64(li.w)/2, sy-float64(li.h)/2)
	screen.DrawImage(li.img, op)
}

// Dispose releases the GPU textures.
func (s *meshScene) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terrain.dispose()
	s.owners.dispose()
}
