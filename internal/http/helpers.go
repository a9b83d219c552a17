package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/schoollib/library/internal/apperr"
	"github.com/schoollib/library/internal/auth"
	"github.com/schoollib/library/internal/entities"
)

// ErrorResponse is the error body of every API failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// respondInternalError logs err and hides it from the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("[http] internal error (%s) request=%s: %v", context, GetRequestID(c), err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondAppError writes a domain error with the status its kind maps to.
// Errors without a kind are logged and reported as 500.
func respondAppError(c *gin.Context, err error, context string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		respondInternalError(c, err, context)
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// parseIDParam extracts an unsigned integer from a URL parameter, responding
// 400 on failure.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(paramName), 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// parseLimit reads the limit query parameter, bounded to [1, max].
func parseLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// currentActor returns the authenticated caller. Routes are mounted behind
// the auth middleware, so a missing identity is answered with 401.
func currentActor(c *gin.Context) (entities.Actor, bool) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
	}
	return actor, ok
}

// currentPerson returns the calling student or teacher, responding 403 for
// staff.
func currentPerson(c *gin.Context) (entities.PersonRef, bool) {
	actor, ok := currentActor(c)
	if !ok {
		return entities.PersonRef{}, false
	}
	ref, ok := actor.PersonRef()
	if !ok {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only students and teachers can do this"})
	}
	return ref, ok
}
