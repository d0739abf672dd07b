package surface

import "github.com/eykd/prosemark-elements/internal/transform"

// openTokenSize is the number of positions a node's opening token takes.
const openTokenSize = 1

// anchorDepth is how many structural levels separate the position before
// an anchored node from the first position of its content: the anchored
// node itself.
const anchorDepth = 1

// ContentOffset is the distance from the position before an anchored node
// to the start of its content, which is where an inner surface's local
// position 0 lives.
const ContentOffset = anchorDepth * openTokenSize

// OffsetMapper translates between an inner surface's local positions and
// the outer document. Base is the outer position of local position 0;
// Limit is the size of the inner content. It must be rebuilt from a fresh
// anchor position on every use.
type OffsetMapper struct {
	Base  int
	Limit int
}

// NewOffsetMapper builds the mapper for an inner surface whose anchored
// node sits at anchorPos + offset in the outer document.
func NewOffsetMapper(anchorPos, offset, limit int) OffsetMapper {
	return OffsetMapper{Base: anchorPos + offset + ContentOffset, Limit: limit}
}

// Forward maps a local position to the outer document.
func (m OffsetMapper) Forward(local int) int { return local + m.Base }

// Backward maps an outer position into local space. ok is false when the
// position lies outside the inner content.
func (m OffsetMapper) Backward(global int) (local int, ok bool) {
	local = global - m.Base
	if local < 0 || local > m.Limit {
		return 0, false
	}
	return local, true
}

// Map implements transform.Mappable in the forward direction.
func (m OffsetMapper) Map(pos, assoc int) int { return m.MapResult(pos, assoc).Pos }

// MapResult implements transform.Mappable. Local positions outside
// [0, Limit] have no counterpart and report Deleted.
func (m OffsetMapper) MapResult(pos, _ int) transform.MapResult {
	return transform.MapResult{Pos: m.Forward(pos), Deleted: pos < 0 || pos > m.Limit}
}

var _ transform.Mappable = OffsetMapper{}
