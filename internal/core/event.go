package core

import "github.com/dkeye/Chat/internal/domain"

// Event is an inbound client intent. The set of variants is closed:
// Join, Leave and Message are the only implementations.
type Event interface {
	isEvent()
}

type Join struct {
	Room        domain.RoomName
	DisplayName string
}

type Leave struct {
	Room        domain.RoomName
	DisplayName string
}

type Message struct {
	Room        domain.RoomName
	DisplayName string
	Text        string
}

func (Join) isEvent()    {}
func (Leave) isEvent()   {}
func (Message) isEvent() {}
