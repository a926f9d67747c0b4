package probing

// Direction identifies one of the two forwarding directions of a hop.
// Dir0 is from the lexicographically lower node to the higher one,
// Dir1 is the reverse.
type Direction int

const (
	Dir0 Direction = iota
	Dir1
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Dir0 {
		return Dir1
	}
	return Dir0
}

func (d Direction) String() string {
	if d == Dir0 {
		return "dir0"
	}
	return "dir1"
}
