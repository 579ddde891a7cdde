package wire

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

type gameStateFrame struct {
	Type string    `json:"type" jsonschema:"required,enum=game_state"`
	Data GameState `json:"data" jsonschema:"required"`
}

type playerInfoFrame struct {
	Type string   `json:"type" jsonschema:"required,enum=player_info"`
	Data []Player `json:"data" jsonschema:"required"`
}

// Schema describes the frames the client understands. Frames of other types
// are valid on the wire and ignored.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
		AllowAdditionalProperties:  true,
	}
	frame := func(v any, title string) *jsonschema.Schema {
		s := reflector.ReflectFromType(reflect.TypeOf(v))
		s.Version = ""
		s.Title = title
		return s
	}
	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "terrasync frame",
		Description: "Server to client websocket frame.",
		OneOf: []*jsonschema.Schema{
			frame(gameStateFrame{}, TypeGameState),
			frame(playerInfoFrame{}, TypePlayerInfo),
		},
	}
}
