package utils

import "github.com/gin-gonic/gin"

// JSONResponse is the envelope every API endpoint answers with.
type JSONResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, success bool, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Success: success,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, 200, true, "", data)
}

// Created returns a 201 success response.
func Created(ctx *gin.Context, data interface{}) {
	Respond(ctx, 201, true, "", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, message string) {
	Respond(ctx, status, false, message, nil)
}
