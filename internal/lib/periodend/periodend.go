// Package periodend разбирает момент окончания оплаченного периода подписки
// из значений, которые приходят из Stripe, базы и административных запросов.
//
// Числа больше 1e12 считаются Unix-миллисекундами, больше 1e9 считаются Unix-секундами,
// остальные числа невалидны. Строки разбираются как ISO-8601 / распространённые
// форматы дат. Невалидное значение означает "ограничения по сроку нет".
package periodend

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	msThreshold  = 1e12
	secThreshold = 1e9
)

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse возвращает момент окончания периода и признак валидности.
func Parse(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return *x, true
	case int:
		return fromNumber(float64(x))
	case int32:
		return fromNumber(float64(x))
	case int64:
		return fromNumber(float64(x))
	case uint32:
		return fromNumber(float64(x))
	case uint64:
		return fromNumber(float64(x))
	case float32:
		return fromNumber(float64(x))
	case float64:
		return fromNumber(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromNumber(f)
	case string:
		return fromString(x)
	case *string:
		if x == nil {
			return time.Time{}, false
		}
		return fromString(*x)
	default:
		return time.Time{}, false
	}
}

// ParsePtr то же, что Parse, но возвращает nil для невалидного значения.
func ParsePtr(v any) *time.Time {
	t, ok := Parse(v)
	if !ok {
		return nil
	}
	return &t
}

func fromNumber(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	switch {
	case f > msThreshold:
		return time.UnixMilli(int64(f)).UTC(), true
	case f > secThreshold:
		return time.Unix(int64(f), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

func fromString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if isDigits(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		return fromNumber(f)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Elapsed сообщает, что период валиден и закончился строго раньше now.
func Elapsed(v any, now time.Time) bool {
	end, ok := Parse(v)
	if !ok {
		return false
	}
	return end.Before(now)
}
