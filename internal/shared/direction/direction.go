// Package direction provides the cardinal direction tokens scripts use for
// tile offsets.
package direction

import (
	"github.com/Thinkofname/UniverCity/internal/script/fault"
)

// Direction is a direction along one of the two level axes.
type Direction int

const (
	// North is negative along the z axis.
	North Direction = iota
	// South is positive along the z axis.
	South
	// East is negative along the x axis.
	East
	// West is positive along the x axis.
	West
)

// All lists every direction in id order.
var All = [4]Direction{North, South, East, West}

// Offset returns the tile offset for the direction. East and west map to
// inverted x offsets relative to the usual convention; existing scripts
// depend on these exact values, so they are kept as-is.
func (d Direction) Offset() (int, int) {
	switch d {
	case North:
		return 0, -1
	case South:
		return 0, 1
	case East:
		return -1, 0
	default:
		return 1, 0
	}
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	default:
		return East
	}
}

// FromOffset converts an axis-aligned offset back into a direction.
func FromOffset(x, y int) (Direction, bool) {
	switch {
	case x < 0 && y == 0:
		return East, true
	case x > 0 && y == 0:
		return West, true
	case y < 0 && x == 0:
		return North, true
	case y > 0 && x == 0:
		return South, true
	default:
		return North, false
	}
}

// Parse converts a direction token. Lower and upper case are accepted;
// anything else is an InvalidArgumentError.
func Parse(s string) (Direction, error) {
	switch s {
	case "north", "NORTH":
		return North, nil
	case "south", "SOUTH":
		return South, nil
	case "east", "EAST":
		return East, nil
	case "west", "WEST":
		return West, nil
	default:
		return North, &fault.InvalidArgumentError{What: "unknown direction " + s}
	}
}

// String returns the lower case token.
func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	default:
		return "west"
	}
}
