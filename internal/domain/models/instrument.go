package models

import "time"

// Instrument is a tracked financial instrument in the registry.
type Instrument struct {
	Symbol  string   `json:"symbol" yaml:"symbol" validate:"required"`
	Names   []string `json:"names" yaml:"names" validate:"required,min=1,dive,required"`
	Sectors []string `json:"sectors,omitempty" yaml:"sectors"`
}

// InstrumentSet is an immutable registry snapshot.
type InstrumentSet struct {
	Instruments []Instrument
	Version     string
	LoadedAt    time.Time
}

// Len returns the number of instruments in the snapshot.
func (s *InstrumentSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Instruments)
}
