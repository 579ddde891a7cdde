// Package scenesync keeps a render scene in step with the world store. It
// turns snapshots into per-cell colour buffers and label placements and
// tracks the viewport size used to place them.
package scenesync

import (
	"sync"

	"github.com/sirupsen/logrus"

	"terrasync/world"
)

// Label is a player name tag in scene coordinates.
type Label struct {
	Player   world.PlayerID
	Text     string
	FontSize float64
	X, Y     float64
	Color    [3]float32
}

// Viewport is an orthographic camera with a 1:1 pixel mapping.
type Viewport struct {
	Left, Right, Top, Bottom float64
	Width, Height            int
}

// Scene is the render side. Colour buffers are row-major, three float32
// channels per cell, and are owned by the scene once handed over.
type Scene interface {
	SetTerrainColors(width, height int, rgb []float32)
	SetOwnershipColors(width, height int, rgb []float32)
	// SetLabels replaces every label at once. The slice is owned by the
	// scene once handed over.
	SetLabels([]Label)
	SetViewport(Viewport)
	SetStatus(world.ConnState)
}

type Options struct {
	// DefaultGridWidth and DefaultGridHeight are used to place labels
	// before any grid has arrived.
	DefaultGridWidth  int
	DefaultGridHeight int
	Logger            logrus.FieldLogger
}

type Synchronizer struct {
	store *world.Store
	scene Scene
	log   logrus.FieldLogger

	mu         sync.Mutex
	sub        *world.Subscription
	sceneW     int
	sceneH     int
	defW, defH int
}

// New subscribes to store and pushes the current snapshot to scene.
func New(store *world.Store, scene Scene, opts Options) *Synchronizer {
	if opts.DefaultGridWidth <= 0 {
		opts.DefaultGridWidth = 800
	}
	if opts.DefaultGridHeight <= 0 {
		opts.DefaultGridHeight = 600
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	s := &Synchronizer{
		store: store,
		scene: scene,
		log:   opts.Logger.WithField("component", "scenesync"),
		defW:  opts.DefaultGridWidth,
		defH:  opts.DefaultGridHeight,
	}
	s.mu.Lock()
	s.sub = store.Subscribe(s.onCommit)
	s.apply(store.Snapshot(), world.FieldGrid|world.FieldPlayers|world.FieldTerrain|world.FieldConn)
	s.mu.Unlock()
	return s
}

func (s *Synchronizer) onCommit(snap *world.Snapshot, changed world.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return
	}
	s.apply(snap, changed)
}

func (s *Synchronizer) apply(snap *world.Snapshot, changed world.Field) {
	if changed.Has(world.FieldTerrain) && snap.Terrain != nil {
		s.scene.SetTerrainColors(snap.Terrain.Width(), snap.Terrain.Height(), TerrainColors(snap.Terrain))
	}
	if changed.Has(world.FieldGrid | world.FieldPlayers) {
		if snap.Grid != nil {
			s.scene.SetOwnershipColors(snap.Grid.Width(), snap.Grid.Height(), OwnershipColors(snap.Grid, snap.Players))
		}
		s.placeLabels(snap)
	}
	if changed.Has(world.FieldConn) {
		s.scene.SetStatus(snap.Conn)
	}
}

func (s *Synchronizer) placeLabels(snap *world.Snapshot) {
	if s.sceneW <= 0 || s.sceneH <= 0 {
		s.scene.SetLabels(nil)
		return
	}
	gw, gh := s.defW, s.defH
	if snap.Grid != nil {
		gw, gh = snap.Grid.Width(), snap.Grid.Height()
	}
	labels := make([]Label, 0, snap.Players.Len())
	for i := 0; i < snap.Players.Len(); i++ {
		p := snap.Players.At(i)
		x, y := Project(p.CenterX, p.CenterY, gw, gh, float64(s.sceneW), float64(s.sceneH))
		labels = append(labels, Label{
			Player:   p.ID,
			Text:     LabelText(p),
			FontSize: LabelFontSize(p.Resources),
			X:        x,
			Y:        y,
			Color:    PlayerColor(p.ID),
		})
	}
	s.scene.SetLabels(labels)
}

// Resize sets the scene size in pixels and re-places labels for it.
func (s *Synchronizer) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width == s.sceneW && height == s.sceneH {
		return
	}
	s.sceneW, s.sceneH = width, height
	w, h := float64(width), float64(height)
	s.scene.SetViewport(Viewport{
		Left: -w / 2, Right: w / 2,
		Top: h / 2, Bottom: -h / 2,
		Width: width, Height: height,
	})
	s.log.WithFields(logrus.Fields{"width": width, "height": height}).Debug("resized")
	if s.sub != nil {
		s.placeLabels(s.store.Snapshot())
	}
}

// SceneSize returns the size last passed to Resize.
func (s *Synchronizer) SceneSize() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sceneW, s.sceneH
}

// Close stops following the store. It is safe to call more than once.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	sub.Cancel()
}

// TerrainColors flattens t into channel/255 triples.
func TerrainColors(t *world.TerrainMap) []float32 {
	buf := make([]float32, t.Len()*3)
	for i := 0; i < t.Len(); i++ {
		c := t.Index(i)
		buf[i*3] = float32(c.R) / 255
		buf[i*3+1] = float32(c.G) / 255
		buf[i*3+2] = float32(c.B) / 255
	}
	return buf
}

// OwnershipColors colours each cell by owner. Unclaimed cells and cells
// owned by ids missing from ps are black.
func OwnershipColors(g *world.Grid, ps *world.Players) []float32 {
	buf := make([]float32, g.Len()*3)
	cache := make(map[world.PlayerID][3]float32, ps.Len())
	for i := 0; i < g.Len(); i++ {
		id, ok := g.OwnerAt(i)
		if !ok || !ps.Has(id) {
			continue
		}
		c, hit := cache[id]
		if !hit {
			c = PlayerColor(id)
			cache[id] = c
		}
		copy(buf[i*3:i*3+3], c[:])
	}
	return buf
}
