package quadtree

import (
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Direction is one of the four cardinal sides of a node.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

var directions = [4]Direction{Up, Right, Down, Left}

var directionNames = [4]string{"up", "right", "down", "left"}

// DirectionFromVector returns the direction for an axis-aligned unit vector.
// Diagonals and zero vectors are rejected.
func DirectionFromVector(x, y int) (Direction, error) {
	switch {
	case x == 0 && y == 1:
		return Up, nil
	case x == 1 && y == 0:
		return Right, nil
	case x == 0 && y == -1:
		return Down, nil
	case x == -1 && y == 0:
		return Left, nil
	}

	return 0, errors.New("direction is not an axis-aligned unit vector").
		WithType(ErrTypeInvalidDirection).
		WithTag("x", x).
		WithTag("y", y)
}

// ParseDirection parses a direction name such as "up" or "Left".
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionNames {
		if strings.EqualFold(s, name) {
			return Direction(i), nil
		}
	}

	return 0, errors.New("unknown direction").
		WithType(ErrTypeInvalidDirection).
		WithTag("direction", s)
}

func (d Direction) valid() bool {
	return d >= Up && d <= Left
}

func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// Vector returns the unit vector of the direction, y pointing up.
func (d Direction) Vector() (x, y int) {
	switch d {
	case Up:
		return 0, 1
	case Right:
		return 1, 0
	case Down:
		return 0, -1
	case Left:
		return -1, 0
	}
	return 0, 0
}

func (d Direction) String() string {
	if !d.valid() {
		return "invalid"
	}
	return directionNames[d]
}

// Quadrant identifies a child slot. The order matches the order in which a
// payload returns its split children.
type Quadrant int

const (
	TopLeft Quadrant = iota
	TopRight
	BottomRight
	BottomLeft
)

var quadrantNames = [4]string{"top-left", "top-right", "bottom-right", "bottom-left"}

func (q Quadrant) String() string {
	if q < TopLeft || q > BottomLeft {
		return "invalid"
	}
	return quadrantNames[q]
}

// borders returns the two sides of the parent the quadrant lies on.
func (q Quadrant) borders() [2]Direction {
	switch q {
	case TopLeft:
		return [2]Direction{Up, Left}
	case TopRight:
		return [2]Direction{Up, Right}
	case BottomRight:
		return [2]Direction{Down, Right}
	default:
		return [2]Direction{Down, Left}
	}
}

// inner returns the two sides the quadrant shares with its siblings.
func (q Quadrant) inner() [2]Direction {
	b := q.borders()
	return [2]Direction{b[0].Opposite(), b[1].Opposite()}
}

// mirror returns the quadrant that touches q across side d: the sibling when
// d is an inner side, the child of the neighboring node when d is a border.
func (q Quadrant) mirror(d Direction) Quadrant {
	switch d {
	case Up, Down:
		return [4]Quadrant{BottomLeft, BottomRight, TopRight, TopLeft}[q]
	default:
		return [4]Quadrant{TopRight, TopLeft, BottomLeft, BottomRight}[q]
	}
}

// edge returns the two quadrants lying along side d.
func edge(d Direction) [2]Quadrant {
	switch d {
	case Up:
		return [2]Quadrant{TopLeft, TopRight}
	case Right:
		return [2]Quadrant{TopRight, BottomRight}
	case Down:
		return [2]Quadrant{BottomLeft, BottomRight}
	default:
		return [2]Quadrant{TopLeft, BottomLeft}
	}
}
