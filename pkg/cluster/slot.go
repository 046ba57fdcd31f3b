package cluster

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// HashSlots total number of hash slots of a cluster
	HashSlots = 16384
	// HashMaxSlot highest slot value, slots start at 0
	HashMaxSlot = HashSlots - 1
)

// Slot represents a cluster hash slot, in [0, HashSlots)
type Slot uint16

// String string representation of a slot
func (s Slot) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// DecodeSlot parses a slot number from its decimal string representation
func DecodeSlot(s string) (Slot, error) {
	value, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid slot '%s': %v", s, err)
	}
	if value > HashMaxSlot {
		return 0, fmt.Errorf("invalid slot '%s': out of range", s)
	}
	return Slot(value), nil
}

// SlotSlice attaches the methods of sort.Interface to []Slot
type SlotSlice []Slot

func (s SlotSlice) Len() int           { return len(s) }
func (s SlotSlice) Less(i, j int) bool { return s[i] < s[j] }
func (s SlotSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s SlotSlice) String() string {
	return fmt.Sprintf("%s", SlotRangesFromSlots(s))
}

// SlotRange represents a slot range with inclusive bounds
type SlotRange struct {
	Min Slot
	Max Slot
}

// String string representation of a slot range
func (s SlotRange) String() string {
	return fmt.Sprintf("%s-%s", s.Min, s.Max)
}

// Total returns the total number of slots belonging to the range
func (s SlotRange) Total() int {
	return int(s.Max - s.Min + 1)
}

// Contains returns true if the given slot is inside the range bounds
func (s SlotRange) Contains(slot Slot) bool {
	return slot >= s.Min && slot <= s.Max
}

// Slots expands the range into the slice of the slots it covers
func (s SlotRange) Slots() []Slot {
	return BuildSlotSlice(s.Min, s.Max)
}

// DecodeSlotRange parses a "min-max" or "slot" string representation
func DecodeSlotRange(s string) ([]Slot, error) {
	val := strings.Split(s, "-")
	switch len(val) {
	case 1:
		slot, err := DecodeSlot(val[0])
		if err != nil {
			return nil, err
		}
		return []Slot{slot}, nil
	case 2:
		min, err := DecodeSlot(val[0])
		if err != nil {
			return nil, err
		}
		max, err := DecodeSlot(val[1])
		if err != nil {
			return nil, err
		}
		if max < min {
			return nil, fmt.Errorf("invalid slot range '%s': max lower than min", s)
		}
		return BuildSlotSlice(min, max), nil
	}
	return nil, fmt.Errorf("invalid slot range '%s'", s)
}

// BuildSlotSlice return a slice of all slots between min and max (inclusive)
func BuildSlotSlice(min, max Slot) []Slot {
	slots := []Slot{}
	for s := min; s <= max; s++ {
		slots = append(slots, s)
	}
	return slots
}

// SlotRangesFromSlots return a slice of slot ranges from a slice of slots
func SlotRangesFromSlots(slots []Slot) []SlotRange {
	ranges := []SlotRange{}
	sorted := make([]Slot, len(slots))
	copy(sorted, slots)
	sort.Sort(SlotSlice(sorted))

	currentRangeMin := Slot(0)
	previous := Slot(0)
	inRange := false
	for _, slot := range sorted {
		if !inRange {
			currentRangeMin = slot
			inRange = true
		} else if slot > previous+1 {
			ranges = append(ranges, SlotRange{Min: currentRangeMin, Max: previous})
			currentRangeMin = slot
		}
		previous = slot
	}
	if inRange {
		ranges = append(ranges, SlotRange{Min: currentRangeMin, Max: previous})
	}

	return ranges
}

// Contains returns true if the given slot is part of the slice
func Contains(slots []Slot, slot Slot) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}

// RemoveSlots returns a new slice made of the slots of the first slice
// minus the slots given in the second one
func RemoveSlots(slots []Slot, removed []Slot) []Slot {
	result := []Slot{}
	for _, s := range slots {
		if !Contains(removed, s) && !Contains(result, s) {
			result = append(result, s)
		}
	}
	return result
}

// AddSlots returns a new slice made of the union of both input slices, deduplicated
func AddSlots(slots []Slot, added []Slot) []Slot {
	result := make([]Slot, 0, len(slots)+len(added))
	for _, s := range append(append([]Slot{}, slots...), added...) {
		if !Contains(result, s) {
			result = append(result, s)
		}
	}
	return result
}
