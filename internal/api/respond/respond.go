package respond

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

// Success wraps every successful JSON body.
type Success struct {
	Result interface{} `json:"result"`
}

// Error wraps every error body.
type Error struct {
	Message string `json:"message"`
}

// Data writes raw bytes with the given content type and disables caching,
// so a released display handle is never served from a stale cache.
func Data(c *ginext.Context, status int, contentType string, payload []byte) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")

	c.Data(status, contentType, payload)
}

// JSON sends data as JSON with the given status code.
func JSON(c *ginext.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// OK sends a 200 response wrapping result in Success.
func OK(c *ginext.Context, result interface{}) {
	JSON(c, http.StatusOK, Success{Result: result})
}

// Created sends a 201 response wrapping result in Success.
func Created(c *ginext.Context, result interface{}) {
	JSON(c, http.StatusCreated, Success{Result: result})
}

// Fail sends err as an Error body with the given status code.
func Fail(c *ginext.Context, status int, err error) {
	JSON(c, status, Error{Message: err.Error()})
}
