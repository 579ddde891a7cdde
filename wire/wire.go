// Package wire defines the server→client message envelope and turns frames
// into store updates.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"terrasync/gridcodec"
	"terrasync/world"
)

const (
	TypeGameState  = "game_state"
	TypePlayerInfo = "player_info"
)

var ErrProtocol = errors.New("wire: protocol error")

// Envelope is the outer shape of every frame.
type Envelope struct {
	Type string          `json:"type" jsonschema:"required"`
	Data json.RawMessage `json:"data"`
}

// GridPayload is the encoded ownership grid.
type GridPayload struct {
	Grid   string `json:"grid" jsonschema:"required,description=hex of a zlib stream holding one byte per cell"`
	Width  int    `json:"width" jsonschema:"required,minimum=1"`
	Height int    `json:"height" jsonschema:"required,minimum=1"`
}

// Player is a player record as sent by the server. Only id is mandatory.
type Player struct {
	ID        *int32  `json:"id" jsonschema:"required"`
	Name      string  `json:"name,omitempty"`
	Resources float64 `json:"resources,omitempty"`
	CenterX   float64 `json:"center_x,omitempty"`
	CenterY   float64 `json:"center_y,omitempty"`
}

// WorldMap carries the terrain. Each colour is [r,g,b] or [r,g,b,a]; alpha
// is ignored. Other server-side maps are not mirrored.
type WorldMap struct {
	ColorMap [][][]int `json:"color_map,omitempty"`
}

// GameState is the payload of a game_state frame. Every field is optional.
type GameState struct {
	Grid     *GridPayload `json:"grid,omitempty"`
	Players  []Player     `json:"players,omitempty"`
	WorldMap *WorldMap    `json:"world_map,omitempty"`
}

// Message is a parsed frame.
type Message struct {
	Type   string
	Update world.Update
	// Ignored is set for well-formed frames of an unknown type.
	Ignored bool
}

// Parse decodes one frame. Unknown types are reported through
// Message.Ignored and are not errors. A frame that fails any part of
// decoding yields no update at all.
func Parse(frame []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if env.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrProtocol)
	}
	msg := Message{Type: env.Type}
	switch env.Type {
	case TypeGameState:
		u, err := parseGameState(env.Data)
		if err != nil {
			return msg, err
		}
		msg.Update = u
	case TypePlayerInfo:
		var list []Player
		if err := unmarshalData(env.Data, &list); err != nil {
			return msg, err
		}
		ps, err := convertPlayers(list)
		if err != nil {
			return msg, err
		}
		msg.Update.Players = ps
	default:
		msg.Ignored = true
	}
	return msg, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: missing data", ErrProtocol)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}

func parseGameState(data json.RawMessage) (world.Update, error) {
	var gs GameState
	if err := unmarshalData(data, &gs); err != nil {
		return world.Update{}, err
	}
	var u world.Update
	if gs.Grid != nil {
		g, err := gridcodec.Decode(gs.Grid.Grid, gs.Grid.Width, gs.Grid.Height)
		if err != nil {
			return world.Update{}, fmt.Errorf("game_state grid: %w", err)
		}
		u.Grid = g
	}
	if gs.Players != nil {
		ps, err := convertPlayers(gs.Players)
		if err != nil {
			return world.Update{}, err
		}
		u.Players = ps
	}
	if gs.WorldMap != nil && gs.WorldMap.ColorMap != nil {
		t, err := convertColorMap(gs.WorldMap.ColorMap)
		if err != nil {
			return world.Update{}, err
		}
		u.Terrain = t
	}
	return u, nil
}

func convertPlayers(list []Player) (*world.Players, error) {
	out := make([]world.Player, 0, len(list))
	for i, p := range list {
		if p.ID == nil {
			return nil, fmt.Errorf("%w: player %d has no id", ErrProtocol, i)
		}
		res := p.Resources
		if res < 0 {
			res = 0
		}
		out = append(out, world.Player{
			ID:        world.PlayerID(*p.ID),
			Name:      p.Name,
			Resources: res,
			CenterX:   p.CenterX,
			CenterY:   p.CenterY,
		})
	}
	return world.NewPlayers(out), nil
}

func convertColorMap(rows [][][]int) (*world.TerrainMap, error) {
	h := len(rows)
	if h == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty color_map", ErrProtocol)
	}
	w := len(rows[0])
	colors := make([]world.RGB, 0, w*h)
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("%w: color_map row %d has %d entries, want %d", ErrProtocol, y, len(row), w)
		}
		for x, c := range row {
			if len(c) != 3 && len(c) != 4 {
				return nil, fmt.Errorf("%w: color_map[%d][%d] has %d channels", ErrProtocol, y, x, len(c))
			}
			for _, v := range c[:3] {
				if v < 0 || v > 255 {
					return nil, fmt.Errorf("%w: color_map[%d][%d] channel %d out of range", ErrProtocol, y, x, v)
				}
			}
			colors = append(colors, world.RGB{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2])})
		}
	}
	return world.NewTerrainMap(w, h, colors)
}
