package v1

import (
	"strconv"

	"github.com/gin-gonic/gin"
	ierr "github.com/petalpost/petalpost/internal/errors"
)

// parsePage reads the limit and offset query parameters. Zero means unset.
func parsePage(c *gin.Context) (limit, offset int, err error) {
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, ierr.NewError("invalid limit").
				WithHint("Limit must be a non-negative integer").
				Mark(ierr.ErrValidation)
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, ierr.NewError("invalid offset").
				WithHint("Offset must be a non-negative integer").
				Mark(ierr.ErrValidation)
		}
	}
	return limit, offset, nil
}
