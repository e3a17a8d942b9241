package core

import (
	"fmt"

	"github.com/dkeye/Chat/internal/domain"
)

// Notice is a server generated outbound event. Error is empty for room
// notices and holds a domain.Reject* kind for rejections sent to one sender.
type Notice struct {
	Text  string
	Error string
}

func EnteredNotice(name string) Notice {
	return Notice{Text: fmt.Sprintf("%s has entered the room.", name)}
}

func LeftNotice(name string) Notice {
	return Notice{Text: fmt.Sprintf("%s has left the room.", name)}
}

func ChatNotice(name, text string) Notice {
	return Notice{Text: fmt.Sprintf("%s: %s", name, text)}
}

// RejectionNotice explains to the sender why its event had no effect.
func RejectionNotice(err error) Notice {
	kind := domain.RejectionKind(err)
	var text string
	switch kind {
	case domain.RejectUnauthenticated:
		text = "You must be logged in to send messages."
	case domain.RejectStorage:
		text = "Your message could not be saved, please retry."
	case domain.RejectInvalid:
		text = err.Error()
	default:
		text = "Internal error."
	}
	return Notice{Text: text, Error: kind}
}
