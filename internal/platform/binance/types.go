package binance

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

// kline is one element of the /api/v3/klines response. Binance encodes each
// kline as a positional JSON array with prices as strings.
type kline struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

func (k *kline) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 6 {
		return fmt.Errorf("kline array too short: %d fields", len(raw))
	}

	if err := json.Unmarshal(raw[0], &k.OpenTime); err != nil {
		return fmt.Errorf("open time: %w", err)
	}

	fields := []struct {
		idx  int
		dst  *float64
		name string
	}{
		{1, &k.Open, "open"},
		{2, &k.High, "high"},
		{3, &k.Low, "low"},
		{4, &k.Close, "close"},
		{5, &k.Volume, "volume"},
	}
	for _, f := range fields {
		var s string
		if err := json.Unmarshal(raw[f.idx], &s); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return nil
}

func (k kline) toBar(symbol string, interval domain.Interval) domain.Bar {
	return domain.Bar{
		Symbol:    symbol,
		Interval:  interval,
		Timestamp: k.OpenTime,
		Open:      k.Open,
		High:      k.High,
		Low:       k.Low,
		Close:     k.Close,
		Volume:    k.Volume,
	}
}

// wsKlineEvent is a combined-stream kline payload.
type wsKlineEvent struct {
	EventType string      `json:"e"`
	EventTime int64       `json:"E"`
	Symbol    string      `json:"s"`
	Kline     wsKlineData `json:"k"`
}

type wsKlineData struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Closed    bool   `json:"x"`
}

func (d wsKlineData) toBar() (domain.Bar, error) {
	bar := domain.Bar{
		Symbol:    d.Symbol,
		Interval:  domain.Interval(d.Interval),
		Timestamp: d.OpenTime,
	}

	fields := []struct {
		raw  string
		dst  *float64
		name string
	}{
		{d.Open, &bar.Open, "open"},
		{d.High, &bar.High, "high"},
		{d.Low, &bar.Low, "low"},
		{d.Close, &bar.Close, "close"},
		{d.Volume, &bar.Volume, "volume"},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}
	return bar, nil
}

// apiError is Binance's error response body.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}
