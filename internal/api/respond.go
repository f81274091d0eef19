package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
)

// errorBody is the JSON error envelope every endpoint shares.
type errorBody struct {
	Code    apperr.Code         `json:"code"`
	Message string              `json:"message"`
	Details []apperr.FieldError `json:"details,omitempty"`
}

// respondError translates an application error into its HTTP shape. Unknown
// errors become opaque 500s so internals never leak.
func respondError(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.E(apperr.CodeInternal, "Something went wrong. Please try again.")
	}
	c.JSON(apperr.HTTPStatus(ae.Code), errorBody{
		Code:    ae.Code,
		Message: ae.Message,
		Details: ae.Fields,
	})
}

// PaginationInfo is the list-envelope metadata.
type PaginationInfo struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalCount  int `json:"totalCount"`
	Limit       int `json:"limit"`
}

// pageParams reads ?page and ?limit with the shared defaults and caps.
func pageParams(c *gin.Context) (page, limit int) {
	page, limit = 1, 20
	if raw := c.Query("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 1 {
			page = v
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 1 {
			limit = v
			if limit > 100 {
				limit = 100
			}
		}
	}
	return page, limit
}

// respondPage slices items into the pagination envelope.
func respondPage[T any](c *gin.Context, items []T) {
	page, limit := pageParams(c)
	total := len(items)
	totalPages := (total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"data": items[start:end],
		"pagination": PaginationInfo{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalCount:  total,
			Limit:       limit,
		},
	})
}
