package desc

import "sort"

// IntRange is the lookup structure protobuf-c uses to turn an int => index
// lookup into a small binary search even when the keys are sparse or
// clustered, rather than requiring a dense array the size of the key
// space. Each entry covers a run of consecutive values starting at
// StartValue; the run's length is implicit, inferred from the next
// entry's OrigIndex (or, for the last real entry, the sentinel appended
// by buildIntRanges).
type IntRange struct {
	StartValue int
	OrigIndex  int
}

// buildIntRanges builds a correct cover of n keys, given in ascending
// order by valueAt(i), collapsing consecutive runs (StartValue, StartValue+1,
// ...) into a single range. A sentinel range is always appended, whose
// OrigIndex equals n, so callers can compute a run's length as
// ranges[i+1].OrigIndex - ranges[i].OrigIndex without special-casing the
// last real range.
func buildIntRanges(n int, valueAt func(i int) int) []IntRange {
	if n == 0 {
		return []IntRange{{StartValue: 0, OrigIndex: 0}}
	}
	ranges := make([]IntRange, 0, n+1)
	ranges = append(ranges, IntRange{StartValue: valueAt(0), OrigIndex: 0})
	for i := 1; i < n; i++ {
		prevExpected := ranges[len(ranges)-1].StartValue + (i - ranges[len(ranges)-1].OrigIndex)
		if valueAt(i) != prevExpected {
			ranges = append(ranges, IntRange{StartValue: valueAt(i), OrigIndex: i})
		}
	}
	ranges = append(ranges, IntRange{StartValue: 0, OrigIndex: n})
	return ranges
}

// LookupIntRange finds key within ranges (as built by buildIntRanges) and
// returns the index of the original sorted array it corresponds to, or
// -1 if key falls in a gap or outside all ranges. This is the "int-range
// lookup structure for sparse/clustered tag spaces" named in spec.md §2.8.
func LookupIntRange(ranges []IntRange, key int) int {
	if len(ranges) <= 1 {
		return -1
	}
	// Binary search for the last range whose StartValue <= key.
	i := sort.Search(len(ranges)-1, func(i int) bool {
		return ranges[i].StartValue > key
	})
	if i == 0 {
		return -1
	}
	r := ranges[i-1]
	next := ranges[i]
	runLen := next.OrigIndex - r.OrigIndex
	offset := key - r.StartValue
	if offset < 0 || offset >= runLen {
		return -1
	}
	return r.OrigIndex + offset
}

// FindFieldByTag does a binary search over md.Fields (sorted ascending by
// Tag) — or, when md.FieldRanges is populated, an O(log ranges) int-range
// lookup, which is faster for messages with many contiguous tags. Returns
// nil if no field has that tag.
func (md *MessageDescriptor) FindFieldByTag(tag uint32) *FieldDescriptor {
	checkMessageMagic(md)
	if len(md.FieldRanges) > 0 {
		if idx := LookupIntRange(md.FieldRanges, int(tag)); idx >= 0 {
			return md.Fields[idx]
		}
		return nil
	}
	i := sort.Search(len(md.Fields), func(i int) bool { return md.Fields[i].Tag >= tag })
	if i < len(md.Fields) && md.Fields[i].Tag == tag {
		return md.Fields[i]
	}
	return nil
}

// FindFieldByName does a binary search over md.FieldsByName (a permutation
// of Fields sorted by Name). Returns nil if no field has that name.
func (md *MessageDescriptor) FindFieldByName(name string) *FieldDescriptor {
	checkMessageMagic(md)
	idx := md.FieldsByName
	i := sort.Search(len(idx), func(i int) bool { return md.Fields[idx[i]].Name >= name })
	if i < len(idx) && md.Fields[idx[i]].Name == name {
		return md.Fields[idx[i]]
	}
	return nil
}

// FindValueByNumber does a binary search (optionally IntRange-accelerated)
// over an enum's values for the given numeric value.
func (ed *EnumDescriptor) FindValueByNumber(value int32) *EnumValueDescriptor {
	checkEnumMagic(ed)
	if len(ed.ValueRanges) > 0 {
		if idx := LookupIntRange(ed.ValueRanges, int(value)); idx >= 0 {
			return &ed.Values[idx]
		}
		return nil
	}
	i := sort.Search(len(ed.Values), func(i int) bool { return ed.Values[i].Value >= value })
	if i < len(ed.Values) && ed.Values[i].Value == value {
		return &ed.Values[i]
	}
	return nil
}

// FindValueByName does a binary search over an enum's name index.
func (ed *EnumDescriptor) FindValueByName(name string) *EnumValueDescriptor {
	checkEnumMagic(ed)
	idx := ed.ValuesByName
	i := sort.Search(len(idx), func(i int) bool { return ed.Values[idx[i]].Name >= name })
	if i < len(idx) && ed.Values[idx[i]].Name == name {
		return &ed.Values[idx[i]]
	}
	return nil
}

// FindMethodByName does a binary search over a service's method name
// index. It returns the method's stable index into sd.Methods (the index
// Invoke takes) together with the method, or -1 and nil if not found.
func (sd *ServiceDescriptor) FindMethodByName(name string) (int, *MethodDescriptor) {
	sd.CheckMagic()
	idx := sd.MethodIndicesByName
	i := sort.Search(len(idx), func(i int) bool { return sd.Methods[idx[i]].Name >= name })
	if i < len(idx) && sd.Methods[idx[i]].Name == name {
		return idx[i], &sd.Methods[idx[i]]
	}
	return -1, nil
}
