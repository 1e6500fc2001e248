package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/order-risk/pkg/common"
)

const (
	DefaultLimit  = 20
	MaxLimit      = 100
	DefaultOffset = 0
)

// Params holds list paging parameters.
type Params struct {
	Limit  int
	Offset int
}

// ParseParams reads limit and offset from the query string. Missing or
// malformed values fall back to the defaults and the limit is capped at
// MaxLimit.
func ParseParams(c *gin.Context) Params {
	p := Params{Limit: DefaultLimit, Offset: DefaultOffset}

	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		p.Offset = v
	}
	return p
}

// BuildMeta builds list metadata for a page of a result set of total items.
func BuildMeta(limit, offset int, total int64) *common.Meta {
	meta := &common.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	}
	if limit > 0 && total > 0 {
		meta.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return meta
}

// HasMore reports whether items remain after the current page.
func HasMore(offset, limit int, total int64) bool {
	return int64(offset)+int64(limit) < total
}

// GetCurrentPage returns the 1-based page number of offset.
func GetCurrentPage(offset, limit int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}
