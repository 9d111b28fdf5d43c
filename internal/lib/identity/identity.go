// Package identity извлекает заявленный идентификатор заявки (submission id)
// из входящего запроса.
//
// Источники перебираются в фиксированном порядке, побеждает первое непустое
// значение после обрезки пробелов.
package identity

import (
	"net/http"
	"strings"
)

const (
	QueryParam    = "submission_id"
	Header        = "X-Submission-Id"
	CookiePrimary = "medicaidready_submission_id"
	CookieLegacy  = "mr_submission_id"
	CookieBare    = "submission_id"
)

// Strategy достаёт кандидата из запроса. Пустая строка означает, что источник не сработал.
type Strategy func(r *http.Request) string

// FromQuery читает query-параметр.
func FromQuery(name string) Strategy {
	return func(r *http.Request) string {
		return r.URL.Query().Get(name)
	}
}

// FromHeader читает заголовок.
func FromHeader(name string) Strategy {
	return func(r *http.Request) string {
		return r.Header.Get(name)
	}
}

// FromCookie читает cookie.
func FromCookie(name string) Strategy {
	return func(r *http.Request) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

// Resolver перебирает стратегии по порядку.
type Resolver struct {
	strategies []Strategy
}

// New создаёт Resolver с явным списком стратегий.
func New(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// Default порядок: query, заголовок, затем три cookie.
func Default() *Resolver {
	return New(
		FromQuery(QueryParam),
		FromHeader(Header),
		FromCookie(CookiePrimary),
		FromCookie(CookieLegacy),
		FromCookie(CookieBare),
	)
}

// Resolve возвращает первый непустой идентификатор.
func (res *Resolver) Resolve(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, s := range res.strategies {
		if v := strings.TrimSpace(s(r)); v != "" {
			return v, true
		}
	}
	return "", false
}
