package navigation

import "fmt"

// Command is a navigation request. The set of commands is closed.
type Command interface {
	command()
	fmt.Stringer
}

// Next shifts the window one interval forward.
type Next struct{}

// Prev shifts the window one interval back.
type Prev struct{}

// Start aligns the window with the earliest data.
type Start struct{}

// End aligns the window with the latest data and follows new data.
type End struct{}

// MoveCursor moves the selected path by Delta matching paths.
type MoveCursor struct{ Delta int }

// SetFilter replaces the path filter.
type SetFilter struct{ Pattern string }

// Resize changes the number of visible intervals, keeping the right edge.
type Resize struct{ Visible int }

func (Next) command()       {}
func (Prev) command()       {}
func (Start) command()      {}
func (End) command()        {}
func (MoveCursor) command() {}
func (SetFilter) command()  {}
func (Resize) command()     {}

func (Next) String() string         { return "next" }
func (Prev) String() string         { return "prev" }
func (Start) String() string        { return "start" }
func (End) String() string          { return "end" }
func (c MoveCursor) String() string { return fmt.Sprintf("cursor(%+d)", c.Delta) }
func (c SetFilter) String() string  { return fmt.Sprintf("filter(%q)", c.Pattern) }
func (c Resize) String() string     { return fmt.Sprintf("resize(%d)", c.Visible) }
