package resp

import (
	"errors"
	"net/http"

	"FCProject/tools/errs"

	"github.com/gin-gonic/gin"
)

// OK wraps a success payload.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

// Fail maps a CodeError to its business code; anything else is a 500.
func Fail(c *gin.Context, err error) {
	var ce *errs.CodeError
	if errors.As(err, &ce) {
		c.JSON(http.StatusOK, gin.H{"code": ce.Code, "msg": ce.Msg, "detail": ce.Detail})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
}
