package world

// Player is the client-side view of a participant.
type Player struct {
	ID        PlayerID
	Name      string
	Resources float64
	// CenterX and CenterY are the centroid in grid coordinates. They need not
	// fall on an owned cell.
	CenterX float64
	CenterY float64
}

// Players is an immutable player set indexed by id.
type Players struct {
	list []Player
	byID map[PlayerID]int
}

// NewPlayers builds a player set from list. When ids repeat the last entry
// wins and keeps its position of first appearance.
func NewPlayers(list []Player) *Players {
	ps := &Players{
		list: make([]Player, 0, len(list)),
		byID: make(map[PlayerID]int, len(list)),
	}
	for _, p := range list {
		if i, ok := ps.byID[p.ID]; ok {
			ps.list[i] = p
			continue
		}
		ps.byID[p.ID] = len(ps.list)
		ps.list = append(ps.list, p)
	}
	return ps
}

func (ps *Players) Len() int {
	if ps == nil {
		return 0
	}
	return len(ps.list)
}

func (ps *Players) At(i int) Player { return ps.list[i] }

// Lookup returns the player with the given id.
func (ps *Players) Lookup(id PlayerID) (Player, bool) {
	if ps == nil {
		return Player{}, false
	}
	i, ok := ps.byID[id]
	if !ok {
		return Player{}, false
	}
	return ps.list[i], true
}

// Has reports whether id is part of the set.
func (ps *Players) Has(id PlayerID) bool {
	if ps == nil {
		return false
	}
	_, ok := ps.byID[id]
	return ok
}

// All returns a copy of the players in wire order.
func (ps *Players) All() []Player {
	if ps == nil {
		return nil
	}
	return append([]Player(nil), ps.list...)
}
