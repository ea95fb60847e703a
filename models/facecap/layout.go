package facecap

import "fmt"

// Channel offsets within one anchor's prediction block. Every tensor the
// head touches is addressed through Layout; no other file computes channel
// indices.
const (
	chX   = 0
	chY   = 1
	chW   = 2
	chH   = 3
	chObj = 4
	// Class scores start at chClass; attribute scores follow the classes.
	chClass = 5
)

// Layout describes how a raw head output's channel dimension is packed:
// Anchors blocks of [tx ty tw th obj | class scores | attribute scores].
type Layout struct {
	Anchors    int
	Classes    int
	Attributes int
}

// ChannelsPerAnchor returns the width of one anchor's prediction block.
func (l Layout) ChannelsPerAnchor() int {
	return chClass + l.Classes + l.Attributes
}

// TotalChannels returns the channel dimension of a raw output tensor.
func (l Layout) TotalChannels() int {
	return l.Anchors * l.ChannelsPerAnchor()
}

// AttributeOffset returns the channel index of the first attribute score
// within an anchor block.
func (l Layout) AttributeOffset() int {
	return chClass + l.Classes
}

// String renders the layout the way shape errors report it.
func (l Layout) String() string {
	return fmt.Sprintf("%d anchors x (5+%d+%d) channels", l.Anchors, l.Classes, l.Attributes)
}

// RawOffset returns the flat index of channel ch for anchor a at cell
// (y, x) in a contiguous (batch, TotalChannels, ny, nx) tensor. Exported
// for tooling that fills or inspects raw head tensors; the decode paths
// address tensors exclusively through it.
func (l Layout) RawOffset(n, a, ch, y, x, ny, nx int) int {
	return ((n*l.TotalChannels()+a*l.ChannelsPerAnchor()+ch)*ny+y)*nx + x
}

// cellOffset returns the flat index of channel ch for anchor a at cell
// (y, x) in a reshaped (batch, Anchors, ny, nx, ChannelsPerAnchor) tensor.
func (l Layout) cellOffset(n, a, ch, y, x, ny, nx int) int {
	return (((n*l.Anchors+a)*ny+y)*nx+x)*l.ChannelsPerAnchor() + ch
}
