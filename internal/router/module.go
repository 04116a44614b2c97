package router

import "github.com/gin-gonic/gin"

// Module mounts one feature's routes. API modules receive the prefixed
// group; root modules (health, metrics) receive the engine's group.
type Module interface {
	Register(rg *gin.RouterGroup)
}
