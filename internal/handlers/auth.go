package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"maplocate/api/internal/middleware"
	"maplocate/api/internal/service"
)

// loginRequest takes the login as "username"; "login" is accepted as an alias.
type loginRequest struct {
	Username string `json:"username" binding:"required_without=Login,max=64"`
	Login    string `json:"login" binding:"max=64"`
	Password string `json:"password" binding:"required,max=256"`
}

func (r loginRequest) login() string {
	if r.Username != "" {
		return r.Username
	}
	return r.Login
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	User        userResponse `json:"user"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		middleware.Fail(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Login:    req.login(),
		Password: req.Password,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken: result.Token,
		User:        toUserResponse(result.User),
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), c.GetHeader("Authorization")); err != nil {
		middleware.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
