package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/image-tracker/internal/api/handlers/job"
)

func Setup(h *job.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/upload", h.Upload)    // submit a new image
	api.POST("/lookup", h.Lookup)    // track an existing id
	api.DELETE("/current", h.Delete) // delete the tracked image
	api.POST("/reset", h.Reset)      // back to the start screen
	api.GET("/session", h.Session)   // current state and page

	r.GET("/handles/:key", h.Handle) // display handle payloads

	return r
}
