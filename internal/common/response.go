package common

import (
	"github.com/gin-gonic/gin"
)

// Fail writes an error body: {"code": <code>, "error": <msg>}.
func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	FailWith(c, httpStatus, code, msg, nil)
}

// FailWith is Fail plus extra top level fields (e.g. currentPoints).
func FailWith(c *gin.Context, httpStatus int, code int, msg string, extra gin.H) {
	body := gin.H{
		"code":  code,
		"error": msg,
	}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(httpStatus, body)
}
