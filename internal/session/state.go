package session

import "fmt"

type State int

const (
	Created State = iota
	Listening
	Ended
	Cancelled
	Disposed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Listening:
		return "listening"
	case Ended:
		return "ended"
	case Cancelled:
		return "cancelled"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
