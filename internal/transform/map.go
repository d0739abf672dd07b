// Package transform records document changes as first-class steps. Each
// step carries a StepMap that translates positions in the document before
// the step into positions in the document after it.
package transform

// MapResult is the outcome of mapping a position. Deleted reports that the
// content on the side the position was associated with was removed, which
// means there is no exactly corresponding position.
type MapResult struct {
	Pos     int
	Deleted bool
}

// Mappable is anything that can translate positions: a single StepMap, a
// Mapping of many, or an offset between two coordinate spaces.
type Mappable interface {
	// Map translates pos. assoc < 0 keeps a position at an insertion point
	// before the inserted content, assoc > 0 moves it after.
	Map(pos, assoc int) int
	MapResult(pos, assoc int) MapResult
}

// StepMap describes the ranges one step replaced, as (start, oldSize, newSize)
// triples in ascending order.
type StepMap struct {
	ranges []int
}

// NewStepMap builds a StepMap from (start, oldSize, newSize) triples.
func NewStepMap(ranges ...int) *StepMap {
	return &StepMap{ranges: ranges}
}

// EmptyStepMap maps every position to itself.
var EmptyStepMap = &StepMap{}

// OffsetStepMap shifts every position by n.
func OffsetStepMap(n int) *StepMap {
	if n == 0 {
		return EmptyStepMap
	}
	if n < 0 {
		return NewStepMap(0, -n, 0)
	}
	return NewStepMap(0, 0, n)
}

// Map implements Mappable.
func (m *StepMap) Map(pos, assoc int) int { return m.MapResult(pos, assoc).Pos }

// MapResult implements Mappable.
func (m *StepMap) MapResult(pos, assoc int) MapResult {
	diff := 0
	for i := 0; i+2 < len(m.ranges); i += 3 {
		start := m.ranges[i]
		if start > pos {
			break
		}
		oldSize, newSize := m.ranges[i+1], m.ranges[i+2]
		end := start + oldSize
		if pos <= end {
			side := assoc
			if oldSize > 0 {
				switch pos {
				case start:
					side = -1
				case end:
					side = 1
				}
			}
			result := start + diff
			if side >= 0 {
				result += newSize
			}
			deleted := false
			if oldSize > 0 {
				if assoc < 0 {
					deleted = pos != start
				} else {
					deleted = pos != end
				}
			}
			return MapResult{Pos: result, Deleted: deleted}
		}
		diff += newSize - oldSize
	}
	return MapResult{Pos: pos + diff}
}

// Invert returns the map from the new document back to the old one.
func (m *StepMap) Invert() *StepMap {
	out := make([]int, 0, len(m.ranges))
	diff := 0
	for i := 0; i+2 < len(m.ranges); i += 3 {
		start, oldSize, newSize := m.ranges[i], m.ranges[i+1], m.ranges[i+2]
		out = append(out, start+diff, newSize, oldSize)
		diff += newSize - oldSize
	}
	return &StepMap{ranges: out}
}

// Mapping composes a sequence of step maps.
type Mapping struct {
	maps []*StepMap
}

// NewMapping builds a mapping over maps.
func NewMapping(maps ...*StepMap) *Mapping {
	return &Mapping{maps: append([]*StepMap(nil), maps...)}
}

// AppendMap adds a map at the end of the mapping.
func (m *Mapping) AppendMap(sm *StepMap) { m.maps = append(m.maps, sm) }

// Map implements Mappable.
func (m *Mapping) Map(pos, assoc int) int { return m.MapResult(pos, assoc).Pos }

// MapResult implements Mappable.
func (m *Mapping) MapResult(pos, assoc int) MapResult {
	deleted := false
	for _, sm := range m.maps {
		r := sm.MapResult(pos, assoc)
		pos = r.Pos
		deleted = deleted || r.Deleted
	}
	return MapResult{Pos: pos, Deleted: deleted}
}
