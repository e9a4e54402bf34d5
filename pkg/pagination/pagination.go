package pagination

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads ?limit= and ?offset=, clamping limit to (0, MaxLimit].
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

// Response wraps one page of a list. Totals are not counted, so Total is always
// -1 and HasMore is true whenever the page came back full.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
	Next    string      `json:"next,omitempty"`
}

// NewPage builds a Response for a page whose total is not counted.
func NewPage(data interface{}, n int, p Params, basePath string) *Response {
	r := &Response{
		Data:    data,
		Total:   -1,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: n >= p.Limit,
	}
	if r.HasMore {
		r.Next = p.NextURL(basePath)
	}
	return r
}

func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// NextURL appends the next page's limit/offset to basePath, which may
// already carry a query string.
func (p Params) NextURL(basePath string) string {
	sep := "?"
	for _, r := range basePath {
		if r == '?' {
			sep = "&"
			break
		}
	}
	return fmt.Sprintf("%s%slimit=%d&offset=%d", basePath, sep, p.Limit, p.NextOffset())
}
