package domain

import "strings"

const MaxRoomNameLen = 64

type RoomName string

// Room is a named broadcast group. It only exists while it has members.
type Room struct {
	Name RoomName
}

// NormalizeRoomName trims surrounding whitespace; room names are otherwise
// arbitrary client-supplied tokens.
func NormalizeRoomName(raw string) RoomName {
	return RoomName(strings.TrimSpace(raw))
}
