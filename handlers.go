package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finapi/models"
	"finapi/pkg/apperr"
	"finapi/pkg/auth"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (s *server) registerHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}
	sess, err := s.auth.Register(c.Request.Context(), auth.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "User registered successfully", sess)
}

func (s *server) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}
	sess, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Login successful", sess)
}

func (s *server) refreshHandler(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}
	sess, err := s.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Token refreshed", sess)
}

func (s *server) logoutHandler(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError(err))
		return
	}
	if err := s.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Logged out", nil)
}

func (s *server) profileHandler(c *gin.Context) {
	u, err := s.auth.Profile(c.Request.Context(), caller(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"id": u.ID, "name": u.Name, "email": u.Email, "created_at": u.CreatedAt})
}

func (s *server) listCategoriesHandler(c *gin.Context) {
	typ := models.CategoryType(c.Query("type"))
	if typ != "" && !typ.Valid() {
		s.fail(c, apperr.Field("type", "type must be income or expense"))
		return
	}
	cats, err := s.store.ListCategories(c.Request.Context(), typ)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"categories": cats})
}
