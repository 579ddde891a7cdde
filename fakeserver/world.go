package fakeserver

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"terrasync/gridcodec"
	"terrasync/wire"
	"terrasync/world"
)

type fakePlayer struct {
	id        int32
	name      string
	resources float64
	area      int
	sumX      int
	sumY      int
	frontier  []int
}

// World is a small synthetic territory game. Players start on one cell and
// claim random neighbouring cells every step.
type World struct {
	mu      sync.Mutex
	width   int
	height  int
	cells   []byte
	terrain [][][]int
	players []*fakePlayer
	rng     *rand.Rand
	steps   int
}

// NewWorld seeds a world of the given size with n players.
func NewWorld(width, height, n int, seed int64) *World {
	if n > world.Unclaimed {
		n = world.Unclaimed
	}
	w := &World{
		width:  width,
		height: height,
		cells:  make([]byte, width*height),
		rng:    rand.New(rand.NewSource(seed)),
	}
	for i := range w.cells {
		w.cells[i] = world.Unclaimed
	}
	w.terrain = make([][][]int, height)
	for y := 0; y < height; y++ {
		row := make([][]int, width)
		for x := 0; x < width; x++ {
			row[x] = terrainColor(x, y, width, height)
		}
		w.terrain[y] = row
	}
	for i := 0; i < n && i < len(w.cells); i++ {
		idx := w.rng.Intn(len(w.cells))
		for w.cells[idx] != world.Unclaimed {
			idx = (idx + 1) % len(w.cells)
		}
		p := &fakePlayer{id: int32(i), name: fmt.Sprintf("Player %d", i), resources: 1000}
		w.players = append(w.players, p)
		w.claim(p, idx)
	}
	return w
}

// terrainColor shades a radial island: water at the edges, grass inland.
func terrainColor(x, y, width, height int) []int {
	dx := float64(x)/float64(width) - 0.5
	dy := float64(y)/float64(height) - 0.5
	d := math.Sqrt(dx*dx+dy*dy) * 2
	switch {
	case d > 0.9:
		return []int{30, 60, 140, 255}
	case d > 0.8:
		return []int{210, 200, 140, 255}
	default:
		g := 120 + int(80*(1-d))
		return []int{50, g, 60, 255}
	}
}

func (w *World) claim(p *fakePlayer, idx int) {
	w.cells[idx] = byte(p.id)
	p.area++
	p.sumX += idx % w.width
	p.sumY += idx / w.width
	p.frontier = append(p.frontier, idx)
}

// Step grows every player by up to perStep cells and accrues resources.
func (w *World) Step(perStep int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.steps++
	for _, p := range w.players {
		for n := 0; n < perStep && len(p.frontier) > 0; n++ {
			i := w.rng.Intn(len(p.frontier))
			idx := p.frontier[i]
			next, ok := w.freeNeighbour(idx)
			if !ok {
				p.frontier[i] = p.frontier[len(p.frontier)-1]
				p.frontier = p.frontier[:len(p.frontier)-1]
				continue
			}
			w.claim(p, next)
		}
		p.resources += float64(p.area) * 0.5
	}
}

func (w *World) freeNeighbour(idx int) (int, bool) {
	x, y := idx%w.width, idx/w.width
	start := w.rng.Intn(4)
	for k := 0; k < 4; k++ {
		nx, ny := x, y
		switch (start + k) % 4 {
		case 0:
			nx++
		case 1:
			nx--
		case 2:
			ny++
		case 3:
			ny--
		}
		if nx < 0 || ny < 0 || nx >= w.width || ny >= w.height {
			continue
		}
		n := ny*w.width + nx
		if w.cells[n] == world.Unclaimed {
			return n, true
		}
	}
	return 0, false
}

// Steps returns how many times Step ran.
func (w *World) Steps() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps
}

func (w *World) playersLocked() []wire.Player {
	out := make([]wire.Player, 0, len(w.players))
	for _, p := range w.players {
		id := p.id
		cx, cy := 0.0, 0.0
		if p.area > 0 {
			cx = float64(p.sumX) / float64(p.area)
			cy = float64(p.sumY) / float64(p.area)
		}
		out = append(out, wire.Player{
			ID:        &id,
			Name:      p.name,
			Resources: math.Floor(p.resources),
			CenterX:   cx,
			CenterY:   cy,
		})
	}
	return out
}

// StateFrame encodes a game_state frame. The terrain is only included when
// withTerrain is set.
func (w *World) StateFrame(withTerrain bool) ([]byte, error) {
	w.mu.Lock()
	gs := wire.GameState{
		Grid: &wire.GridPayload{
			Grid:   gridcodec.EncodeBytes(w.cells),
			Width:  w.width,
			Height: w.height,
		},
		Players: w.playersLocked(),
	}
	if withTerrain {
		gs.WorldMap = &wire.WorldMap{ColorMap: w.terrain}
	}
	w.mu.Unlock()
	return encode(wire.TypeGameState, gs)
}

// PlayerInfoFrame encodes a player_info frame.
func (w *World) PlayerInfoFrame() ([]byte, error) {
	w.mu.Lock()
	players := w.playersLocked()
	w.mu.Unlock()
	return encode(wire.TypePlayerInfo, players)
}

func encode(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("fakeserver: marshal %s: %w", typ, err)
	}
	return json.Marshal(wire.Envelope{Type: typ, Data: raw})
}
