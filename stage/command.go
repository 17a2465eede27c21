package stage

import "strconv"

// DoneToken is contained in the line a controller sends once a command completes.
const DoneToken = "DONE"

// A Command is a single request understood by the stage firmware.
type Command interface {
	// Line returns the command as sent on the wire, without the newline.
	Line() string
}

// Home drives both axes to their limit switches and zeroes the position.
type Home struct{}

func (Home) Line() string { return "HOME" }

// MoveTo moves to an absolute position in steps.
type MoveTo struct{ X, Y int }

func (m MoveTo) Line() string {
	return "MOVE " + strconv.Itoa(m.X) + " " + strconv.Itoa(m.Y)
}
