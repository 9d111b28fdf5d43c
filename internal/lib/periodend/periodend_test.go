package periodend

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SecondsAndMillisecondsAgree(t *testing.T) {
	sec, ok := Parse(int64(1700000000))
	require.True(t, ok)
	ms, ok := Parse(int64(1700000000000))
	require.True(t, ok)

	assert.True(t, sec.Equal(ms))
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), sec)
}

func TestParse(t *testing.T) {
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	ts := want

	tests := []struct {
		name   string
		input  any
		wantOK bool
		want   time.Time
	}{
		{name: "секунды int", input: 1700000000, wantOK: true, want: want},
		{name: "миллисекунды float", input: float64(1700000000000), wantOK: true, want: want},
		{name: "json.Number", input: json.Number("1700000000"), wantOK: true, want: want},
		{name: "строка из цифр", input: "1700000000000", wantOK: true, want: want},
		{name: "RFC3339", input: "2023-11-14T22:13:20Z", wantOK: true, want: want},
		{name: "RFC3339 со смещением", input: "2023-11-15T01:13:20+03:00", wantOK: true, want: want},
		{name: "без зоны", input: "2023-11-14T22:13:20", wantOK: true, want: want},
		{name: "postgres текст", input: "2023-11-14 22:13:20", wantOK: true, want: want},
		{name: "дата", input: "2023-11-14", wantOK: true, want: time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC)},
		{name: "time.Time", input: want, wantOK: true, want: want},
		{name: "*time.Time", input: &ts, wantOK: true, want: want},
		{name: "маленькое число", input: 12345, wantOK: false},
		{name: "ноль", input: 0, wantOK: false},
		{name: "отрицательное", input: -1700000000, wantOK: false},
		{name: "мусорная строка", input: "not-a-date", wantOK: false},
		{name: "пустая строка", input: "  ", wantOK: false},
		{name: "nil", input: nil, wantOK: false},
		{name: "nil *time.Time", input: (*time.Time)(nil), wantOK: false},
		{name: "bool", input: true, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestElapsed(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	assert.True(t, Elapsed(now.Add(-time.Second), now))
	assert.False(t, Elapsed(now, now), "равный момент не считается истёкшим")
	assert.False(t, Elapsed(now.Add(time.Hour), now))
	assert.False(t, Elapsed("garbage", now), "невалидное значение не ограничивает доступ")
	assert.False(t, Elapsed(nil, now))
}

func TestParsePtr(t *testing.T) {
	assert.Nil(t, ParsePtr("garbage"))
	p := ParsePtr(int64(1700000000))
	require.NotNil(t, p)
	assert.Equal(t, int64(1700000000), p.Unix())
}
