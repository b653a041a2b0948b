package registry

import (
	"context"

	"MacroChain/internal/domain/models"
)

// StaticSource serves a fixed instrument list, typically from config.
type StaticSource struct {
	instruments []models.Instrument
}

func NewStaticSource(instruments []models.Instrument) *StaticSource {
	return &StaticSource{instruments: instruments}
}

func (s *StaticSource) Load(context.Context) ([]models.Instrument, error) {
	out := make([]models.Instrument, len(s.instruments))
	copy(out, s.instruments)
	return out, nil
}
