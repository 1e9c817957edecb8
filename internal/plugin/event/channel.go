package event

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Channel identifies a logical endpoint in the host application.
type Channel int16

// NoChannel is the zero sentinel used when a source is not supplied.
const NoChannel Channel = 0

// ChannelFromFloat converts a script number to a Channel.
// The number must be integral and fit in a Channel.
func ChannelFromFloat(f float64) (Channel, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidChannel, f)
	}
	if f < math.MinInt16 || f > math.MaxInt16 {
		return 0, fmt.Errorf("%w: %v is out of range", ErrInvalidChannel, f)
	}
	return Channel(f), nil
}

// ChannelSet is an unordered set of channels. A nil set means "absent",
// which is distinct from an empty, non-nil set.
type ChannelSet map[Channel]struct{}

// NewChannelSet returns a non-nil set holding the given channels.
func NewChannelSet(channels ...Channel) ChannelSet {
	s := make(ChannelSet, len(channels))
	for _, ch := range channels {
		s[ch] = struct{}{}
	}
	return s
}

// Add inserts ch into the set.
func (s ChannelSet) Add(ch Channel) {
	s[ch] = struct{}{}
}

// Has reports whether ch is in the set.
func (s ChannelSet) Has(ch Channel) bool {
	_, ok := s[ch]
	return ok
}

// Sorted returns the members in ascending order.
func (s ChannelSet) Sorted() []Channel {
	if s == nil {
		return nil
	}
	out := make([]Channel, 0, len(s))
	for ch := range s {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a copy of the set, preserving nil.
func (s ChannelSet) Clone() ChannelSet {
	if s == nil {
		return nil
	}
	out := make(ChannelSet, len(s))
	for ch := range s {
		out[ch] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same members and agree on nil.
func (s ChannelSet) Equal(other ChannelSet) bool {
	if (s == nil) != (other == nil) || len(s) != len(other) {
		return false
	}
	for ch := range s {
		if !other.Has(ch) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted array, or null when absent.
func (s ChannelSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of channels; null leaves the set absent.
func (s *ChannelSet) UnmarshalJSON(data []byte) error {
	var channels []Channel
	if err := json.Unmarshal(data, &channels); err != nil {
		return err
	}
	if channels == nil {
		*s = nil
		return nil
	}
	*s = NewChannelSet(channels...)
	return nil
}
