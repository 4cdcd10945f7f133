package spec

// GID is a global tile identifier: a tile index offset by the first GID of
// its tileset, combined with flip flags in the high bits. Zero means no tile.
type GID uint32

// Flip holds the flag bits of a GID, in place.
type Flip uint32

const (
	FlipHorizontal Flip = 1 << 31
	FlipVertical   Flip = 1 << 30
	FlipDiagonal   Flip = 1 << 29
	FlipHexRotate  Flip = 1 << 28 // 120° rotation, hexagonal maps only

	FlipMask = FlipHorizontal | FlipVertical | FlipDiagonal | FlipHexRotate
)

// Split separates the base id from the flip flags.
func (g GID) Split() (uint32, Flip) {
	return uint32(g) &^ uint32(FlipMask), Flip(g) & FlipMask
}

// ID returns the base id with all flag bits cleared.
func (g GID) ID() uint32 {
	return uint32(g) &^ uint32(FlipMask)
}

func (g GID) Flags() Flip {
	return Flip(g) & FlipMask
}

// Empty reports whether the cell holds no tile. Flag bits on an empty cell
// are ignored.
func (g GID) Empty() bool {
	return g.ID() == 0
}

// Compose is the inverse of GID.Split.
func Compose(id uint32, flags Flip) GID {
	return GID(id&^uint32(FlipMask) | uint32(flags&FlipMask))
}

func (f Flip) Horizontal() bool { return f&FlipHorizontal != 0 }
func (f Flip) Vertical() bool   { return f&FlipVertical != 0 }
func (f Flip) Diagonal() bool   { return f&FlipDiagonal != 0 }
func (f Flip) HexRotate() bool  { return f&FlipHexRotate != 0 }
