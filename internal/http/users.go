package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoollib/library/internal/people"
)

// UsersController manages staff, student and teacher accounts.
type UsersController struct {
	directory *people.Directory
}

func NewUsersController(d *people.Directory) *UsersController {
	return &UsersController{directory: d}
}

// List handles GET /api/users?userType=
func (uc *UsersController) List(c *gin.Context) {
	var t people.UserType
	if s := c.Query("userType"); s != "" {
		parsed, err := people.ParseUserType(s)
		if err != nil {
			respondAppError(c, err, "list users")
			return
		}
		t = parsed
	}
	users, err := uc.directory.List(c.Request.Context(), t)
	if err != nil {
		respondAppError(c, err, "list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (uc *UsersController) target(c *gin.Context) (people.UserType, uint, bool) {
	t, err := people.ParseUserType(c.Param("userType"))
	if err != nil {
		respondAppError(c, err, "parse user type")
		return "", 0, false
	}
	id, ok := parseIDParam(c, "id")
	return t, id, ok
}

// Get handles GET /api/users/:userType/:id
func (uc *UsersController) Get(c *gin.Context) {
	t, id, ok := uc.target(c)
	if !ok {
		return
	}
	user, err := uc.directory.Get(c.Request.Context(), t, id)
	if err != nil {
		respondAppError(c, err, "get user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type registerRequest struct {
	UserType string `json:"userType" binding:"required"`
	people.Profile
}

// Register handles POST /api/users
func (uc *UsersController) Register(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "userType is required")
		return
	}
	t, err := people.ParseUserType(req.UserType)
	if err != nil {
		respondAppError(c, err, "register")
		return
	}
	user, err := uc.directory.Register(c.Request.Context(), actor, t, req.Profile)
	if err != nil {
		respondAppError(c, err, "register")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": user})
}

// Update handles PUT /api/users/:userType/:id
func (uc *UsersController) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	t, id, ok := uc.target(c)
	if !ok {
		return
	}
	var p people.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	user, err := uc.directory.Update(c.Request.Context(), actor, t, id, p)
	if err != nil {
		respondAppError(c, err, "update user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "user": user})
}

// Delete handles DELETE /api/users/:userType/:id
func (uc *UsersController) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	t, id, ok := uc.target(c)
	if !ok {
		return
	}
	if err := uc.directory.Delete(c.Request.Context(), actor, t, id); err != nil {
		respondAppError(c, err, "delete user")
		return
	}
	respondMessage(c, http.StatusOK, "User deleted successfully")
}
