package binance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

func TestKlineUnmarshal(t *testing.T) {
	raw := `[[1672531200000,"16541.77","16545.70","16508.39","16529.67","1234.5",1672531259999,"20412345.6",350,"600.1","9923456.7","0"]]`

	var klines []kline
	require.NoError(t, json.Unmarshal([]byte(raw), &klines))
	require.Len(t, klines, 1)

	bar := klines[0].toBar("BTCUSDT", domain.Interval1m)
	assert.Equal(t, int64(1672531200000), bar.Timestamp)
	assert.Equal(t, 16541.77, bar.Open)
	assert.Equal(t, 16545.70, bar.High)
	assert.Equal(t, 16508.39, bar.Low)
	assert.Equal(t, 16529.67, bar.Close)
	assert.Equal(t, 1234.5, bar.Volume)
	assert.Equal(t, "BTCUSDT", bar.Symbol)
}

func TestKlineUnmarshalTooShort(t *testing.T) {
	var k kline
	err := json.Unmarshal([]byte(`[1672531200000,"1.0"]`), &k)
	assert.Error(t, err)
}

func TestWSKlineToBar(t *testing.T) {
	data := wsKlineData{
		OpenTime: 1672531200000,
		Symbol:   "ETHUSDT",
		Interval: "1m",
		Open:     "1196.52",
		High:     "1197.00",
		Low:      "1195.10",
		Close:    "1196.00",
		Volume:   "42.7",
		Closed:   true,
	}

	bar, err := data.toBar()
	require.NoError(t, err)
	assert.Equal(t, domain.Interval1m, bar.Interval)
	assert.Equal(t, 1196.52, bar.Open)
	assert.Equal(t, 42.7, bar.Volume)
}

func TestWSKlineToBarBadPrice(t *testing.T) {
	data := wsKlineData{Open: "not-a-number"}
	_, err := data.toBar()
	assert.Error(t, err)
}
