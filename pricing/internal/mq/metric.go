package mq

import (
	"errors"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
)

// CalculationMetric is the analytics record emitted for each solved price.
type CalculationMetric struct {
	Platform       string
	Objective      string
	SuggestedPrice float64
	Iterations     int32
	Converged      bool
	Timestamp      time.Time
}

// Field slots of the CalculationMetric table.
const (
	slotPlatform = iota
	slotObjective
	slotSuggestedPrice
	slotIterations
	slotConverged
	slotTimestamp
	numSlots
)

// EncodeCalculationMetric serializes m as a flatbuffers table.
func EncodeCalculationMetric(m CalculationMetric) []byte {
	builder := flatbuffers.NewBuilder(128)

	platform := builder.CreateString(m.Platform)
	objective := builder.CreateString(m.Objective)

	builder.StartObject(numSlots)
	builder.PrependUOffsetTSlot(slotPlatform, platform, 0)
	builder.PrependUOffsetTSlot(slotObjective, objective, 0)
	builder.PrependFloat64Slot(slotSuggestedPrice, m.SuggestedPrice, 0)
	builder.PrependInt32Slot(slotIterations, m.Iterations, 0)
	builder.PrependBoolSlot(slotConverged, m.Converged, false)
	builder.PrependInt64Slot(slotTimestamp, m.Timestamp.Unix(), 0)
	metric := builder.EndObject()

	builder.Finish(metric)
	return builder.FinishedBytes()
}

// DecodeCalculationMetric reads a payload written by EncodeCalculationMetric.
func DecodeCalculationMetric(buf []byte) (m CalculationMetric, err error) {
	if len(buf) < flatbuffers.SizeUOffsetT {
		return CalculationMetric{}, errors.New("mq: payload too short")
	}
	defer func() {
		// flatbuffers panics on out-of-range offsets
		if r := recover(); r != nil {
			m, err = CalculationMetric{}, errors.New("mq: malformed payload")
		}
	}()

	tab := &flatbuffers.Table{Bytes: buf, Pos: flatbuffers.GetUOffsetT(buf)}
	field := func(slot int) flatbuffers.UOffsetT {
		o := flatbuffers.UOffsetT(tab.Offset(flatbuffers.VOffsetT(4 + 2*slot)))
		if o == 0 {
			return 0
		}
		return o + tab.Pos
	}

	if o := field(slotPlatform); o != 0 {
		m.Platform = tab.String(o)
	}
	if o := field(slotObjective); o != 0 {
		m.Objective = tab.String(o)
	}
	if o := field(slotSuggestedPrice); o != 0 {
		m.SuggestedPrice = tab.GetFloat64(o)
	}
	if o := field(slotIterations); o != 0 {
		m.Iterations = tab.GetInt32(o)
	}
	if o := field(slotConverged); o != 0 {
		m.Converged = tab.GetBool(o)
	}
	var ts int64
	if o := field(slotTimestamp); o != 0 {
		ts = tab.GetInt64(o)
	}
	m.Timestamp = time.Unix(ts, 0)
	return m, nil
}
