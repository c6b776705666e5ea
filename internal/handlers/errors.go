package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Error: code, Message: message})
}

func respondInvalidInput(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{
		Error:   "invalid_input",
		Message: "request failed validation",
		Details: err.Error(),
	})
}
