package api

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

const maxBodyBytes = 1 << 20

// query reads typed request parameters, keeping the first error.
type query struct {
	op   string
	vals url.Values
	vars map[string]string
	err  error
}

func newQuery(r *http.Request, op string) *query {
	return &query{op: op, vals: r.URL.Query(), vars: mux.Vars(r)}
}

func (q *query) fail(param, format string, args ...any) {
	if q.err == nil {
		q.err = fault.Invalid(q.op, param, format, args...)
	}
}

func (q *query) str(name string) string {
	return strings.TrimSpace(q.vals.Get(name))
}

func (q *query) int(name string) int {
	raw := q.str(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(name, "%s must be an integer, got %q", name, raw)
	}
	return n
}

func (q *query) float(name string) float64 {
	raw := q.str(name)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		q.fail(name, "%s must be a number, got %q", name, raw)
	}
	return f
}

func (q *query) bool(name string) bool {
	raw := q.str(name)
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, "%s must be true or false, got %q", name, raw)
	}
	return b
}

// price reads an amount in millions, e.g. max_price=8.5.
func (q *query) price(name string) model.Price {
	raw := q.str(name)
	if raw == "" {
		return 0
	}
	m, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		q.fail(name, "%s must be a price in millions, got %q", name, raw)
		return 0
	}
	p, err := model.PriceFromMillions(m)
	if err != nil {
		q.fail(name, "%s: %v", name, err)
	}
	return p
}

func (q *query) position(name string) model.Position {
	p, err := model.ParsePosition(q.str(name))
	if err != nil {
		q.fail(name, "%v", err)
	}
	return p
}

// pathID reads a positive integer path variable.
func (q *query) pathID(name string) int {
	raw := q.vars[name]
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		q.fail(name, "%s must be a positive integer, got %q", name, raw)
	}
	return n
}

// decodeBody reads a JSON request body into dst. Unknown fields are rejected.
func decodeBody(r *http.Request, op string, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fault.Wrap(fault.KindInvalidParameters, op, err)
	}
	if len(body) > maxBodyBytes {
		return fault.Invalid(op, "body", "request body exceeds %d bytes", maxBodyBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fault.Invalid(op, "body", "request body is required")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fault.Invalid(op, "body", "malformed request body: %v", err)
	}
	return nil
}
