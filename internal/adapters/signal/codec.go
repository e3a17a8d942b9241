package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var errRateLimited = domain.NewValidationError("text", "too many messages, slow down")

// inboundFrame is what clients send: {"type":"join","room":"r","displayName":"A"}.
type inboundFrame struct {
	Type        string `json:"type" validate:"required,oneof=join leave message"`
	Room        string `json:"room" validate:"required,max=64"`
	DisplayName string `json:"displayName" validate:"required,max=64"`
	Text        string `json:"text" validate:"required_if=Type message,max=4096"`
}

type outboundFrame struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func decodeEvent(data []byte) (core.Event, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, domain.NewValidationError("", "malformed frame")
	}
	f.Room = strings.TrimSpace(f.Room)
	f.DisplayName = strings.TrimSpace(f.DisplayName)
	if err := validate.Struct(f); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			fe := ves[0]
			return nil, domain.NewValidationError(fieldName(fe.Field()), fmt.Sprintf("failed %q", fe.Tag()))
		}
		return nil, domain.NewValidationError("", err.Error())
	}

	room := domain.RoomName(f.Room)
	switch f.Type {
	case "join":
		return core.Join{Room: room, DisplayName: f.DisplayName}, nil
	case "leave":
		return core.Leave{Room: room, DisplayName: f.DisplayName}, nil
	default:
		return core.Message{Room: room, DisplayName: f.DisplayName, Text: f.Text}, nil
	}
}

func fieldName(goName string) string {
	switch goName {
	case "DisplayName":
		return "displayName"
	default:
		return strings.ToLower(goName)
	}
}

func encodeNotice(n core.Notice) ([]byte, error) {
	return json.Marshal(outboundFrame{Type: "notice", Text: n.Text, Error: n.Error})
}
