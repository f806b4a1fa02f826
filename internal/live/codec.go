package live

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"marketpulse/internal/domain"
	"marketpulse/internal/market"
)

// Message kinds carried in the "kind" field.
const (
	kindSnapshot = "snapshot"
	kindTick     = "tick"
)

// encodeTick converts a tick event to a Struct.
func encodeTick(kind string, evt market.TickEvent) (*structpb.Struct, error) {
	instruments := make([]any, len(evt.Instruments))
	for i, inst := range evt.Instruments {
		instruments[i] = map[string]any{
			"name":             inst.Name,
			"ticker":           inst.Ticker,
			"currentValue":     inst.CurrentValue,
			"ytdReturn":        inst.YTDReturn,
			"dailyChange":      inst.DailyChange,
			"marketCap":        inst.MarketCap,
			"fiftyTwoWeekHigh": inst.FiftyTwoWeekHigh,
			"fiftyTwoWeekLow":  inst.FiftyTwoWeekLow,
		}
	}
	changed := make([]any, len(evt.Changed))
	for i, t := range evt.Changed {
		changed[i] = t
	}
	return structpb.NewStruct(map[string]any{
		"kind":        kind,
		"seq":         float64(evt.Seq),
		"at":          evt.At.UTC().Format(time.RFC3339Nano),
		"flashUntil":  evt.FlashUntil.UTC().Format(time.RFC3339Nano),
		"changed":     changed,
		"instruments": instruments,
	})
}

// decodeTick converts a Struct back into a tick event.
func decodeTick(s *structpb.Struct) (kind string, evt market.TickEvent, err error) {
	f := s.GetFields()
	kind = f["kind"].GetStringValue()
	if kind != kindSnapshot && kind != kindTick {
		return "", evt, fmt.Errorf("unknown message kind %q", kind)
	}
	evt.Seq = uint64(f["seq"].GetNumberValue())
	if evt.At, err = parseTime(f["at"].GetStringValue()); err != nil {
		return "", evt, err
	}
	if evt.FlashUntil, err = parseTime(f["flashUntil"].GetStringValue()); err != nil {
		return "", evt, err
	}
	for _, v := range f["changed"].GetListValue().GetValues() {
		evt.Changed = append(evt.Changed, v.GetStringValue())
	}
	for i, v := range f["instruments"].GetListValue().GetValues() {
		fs := v.GetStructValue().GetFields()
		inst := domain.Instrument{
			Name:             fs["name"].GetStringValue(),
			Ticker:           fs["ticker"].GetStringValue(),
			CurrentValue:     fs["currentValue"].GetNumberValue(),
			YTDReturn:        fs["ytdReturn"].GetNumberValue(),
			DailyChange:      fs["dailyChange"].GetNumberValue(),
			MarketCap:        fs["marketCap"].GetNumberValue(),
			FiftyTwoWeekHigh: fs["fiftyTwoWeekHigh"].GetNumberValue(),
			FiftyTwoWeekLow:  fs["fiftyTwoWeekLow"].GetNumberValue(),
		}
		if inst.Ticker == "" {
			return "", evt, fmt.Errorf("instrument %d has no ticker", i)
		}
		evt.Instruments = append(evt.Instruments, inst)
	}
	return kind, evt, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}
