package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload interface{}) {
	JSON(c, http.StatusOK, payload)
}

// Created writes a 201 Created JSON response.
func Created(c *gin.Context, payload interface{}) {
	JSON(c, http.StatusCreated, payload)
}

// Accepted writes a 202 Accepted JSON response, used when work continues
// after the request returns.
func Accepted(c *gin.Context, payload interface{}) {
	JSON(c, http.StatusAccepted, payload)
}
