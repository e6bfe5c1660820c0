package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"slices"
)

type bodyKey struct{}

// Body returns the request body decoded by Middleware.JSON for type T
func Body[T any](ctx context.Context) (*T, bool) {
	v, ok := ctx.Value(bodyKey{}).(*T)
	return v, ok
}

// Middleware validates HTTP requests before they reach a handler and answers
// 400 with an Errors body when they fail.
type Middleware struct {
	maxErrors  int
	allowExtra bool
}

// Option configures a Middleware
type Option func(*Middleware)

// WithMaxErrors caps the number of reported errors; zero reports all
func WithMaxErrors(n int) Option {
	return func(m *Middleware) { m.maxErrors = n }
}

// AllowUnknownFields accepts JSON bodies with fields the target type lacks
func AllowUnknownFields() Option {
	return func(m *Middleware) { m.allowExtra = true }
}

// NewMiddleware rejects unknown JSON fields and reports at most ten errors
// unless configured otherwise.
func NewMiddleware(opts ...Option) *Middleware {
	m := &Middleware{maxErrors: 10}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// JSON decodes the request body into a new value of proto's type, runs
// Struct on it and stores the pointer in the request context (see Body).
func (m *Middleware) JSON(proto any) func(http.Handler) http.Handler {
	typ := reflect.TypeOf(proto)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			val := reflect.New(typ).Interface()

			dec := json.NewDecoder(r.Body)
			if !m.allowExtra {
				dec.DisallowUnknownFields()
			}
			if err := dec.Decode(val); err != nil {
				m.reject(w, Errors{{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}})
				return
			}
			if err := Struct(val); err != nil {
				var errs Errors
				if !errors.As(err, &errs) {
					errs = Errors{{Field: "body", Message: err.Error()}}
				}
				m.reject(w, errs)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), bodyKey{}, val)))
		})
	}
}

// Query checks query parameters against tag expressions keyed by parameter
// name, e.g. {"limit": "omitempty,number"}.
func (m *Middleware) Query(rules map[string]string) func(http.Handler) http.Handler {
	params := slices.Sorted(maps.Keys(rules))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			var errs Errors
			for _, p := range params {
				var fieldErrs Errors
				if err := Var(p, query.Get(p), rules[p]); errors.As(err, &fieldErrs) {
					errs = append(errs, fieldErrs...)
				}
			}
			if len(errs) > 0 {
				m.reject(w, errs)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type errorBody struct {
	Errors Errors `json:"errors"`
	Count  int    `json:"count"`
}

func (m *Middleware) reject(w http.ResponseWriter, errs Errors) {
	body := errorBody{Errors: errs, Count: len(errs)}
	if m.maxErrors > 0 && len(errs) > m.maxErrors {
		body.Errors = errs[:m.maxErrors]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(body)
}
