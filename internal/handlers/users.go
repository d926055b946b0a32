package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"maplocate/api/internal/middleware"
	"maplocate/api/internal/models"
	"maplocate/api/internal/service"
)

type userResponse struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Firstname   string `json:"firstname"`
	Lastname    string `json:"lastname"`
	IsSuperuser bool   `json:"is_superuser"`
	Disabled    bool   `json:"disabled"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Login:       u.Login,
		Firstname:   u.Firstname,
		Lastname:    u.Lastname,
		IsSuperuser: u.IsSuperuser,
		Disabled:    u.Disabled,
	}
}

type userDetailsResponse struct {
	userResponse
	ActiveSessions int `json:"active_sessions"`
}

type createUserRequest struct {
	Login     string `json:"login" binding:"required,email,max=64"`
	Password  string `json:"password" binding:"required,max=256"`
	Firstname string `json:"firstname" binding:"max=64"`
	Lastname  string `json:"lastname" binding:"max=64"`
	Disabled  bool   `json:"disabled"`
}

func (h HandlerSet) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := bindJSON(c, &req); err != nil {
		middleware.Fail(c, err)
		return
	}

	user, err := h.users.Create(c.Request.Context(), service.CreateUserInput{
		Login:     req.Login,
		Password:  req.Password,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Disabled:  req.Disabled,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	h.logAdminAction(c, map[string]any{
		"login":     req.Login,
		"firstname": req.Firstname,
		"lastname":  req.Lastname,
		"disabled":  req.Disabled,
	})
	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (h HandlerSet) ListUsers(c *gin.Context) {
	limit, offset := pageParams(c)

	page, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	items := make([]userResponse, 0, len(page.Users))
	for _, u := range page.Users {
		items = append(items, toUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  page.Total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h HandlerSet) GetUser(c *gin.Context) {
	id, err := pathID(c, "uid")
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	details, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, userDetailsResponse{
		userResponse:   toUserResponse(details.User),
		ActiveSessions: details.ActiveSessions,
	})
}

type updateUserRequest struct {
	Login       *string `json:"login" binding:"omitempty,email,max=64"`
	Password    *string `json:"password" binding:"omitempty,min=1,max=256"`
	OldPassword *string `json:"old_password" binding:"omitempty,max=256"`
	Firstname   *string `json:"firstname" binding:"omitempty,max=64"`
	Lastname    *string `json:"lastname" binding:"omitempty,max=64"`
	Disabled    *bool   `json:"disabled"`
}

func (r updateUserRequest) form() map[string]any {
	form := map[string]any{}
	if r.Login != nil {
		form["login"] = *r.Login
	}
	if r.Firstname != nil {
		form["firstname"] = *r.Firstname
	}
	if r.Lastname != nil {
		form["lastname"] = *r.Lastname
	}
	if r.Disabled != nil {
		form["disabled"] = *r.Disabled
	}
	if r.Password != nil {
		form["password_changed"] = true
	}
	return form
}

func (h HandlerSet) UpdateUser(c *gin.Context) {
	id, err := pathID(c, "uid")
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	var req updateUserRequest
	if err := bindJSON(c, &req); err != nil {
		middleware.Fail(c, err)
		return
	}

	actor, _ := middleware.CurrentSession(c)
	user, err := h.users.Update(c.Request.Context(), actor, id, service.UpdateUserInput{
		Login:       req.Login,
		Password:    req.Password,
		OldPassword: req.OldPassword,
		Firstname:   req.Firstname,
		Lastname:    req.Lastname,
		Disabled:    req.Disabled,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	h.logAdminAction(c, req.form())
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	id, err := pathID(c, "uid")
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	actor, _ := middleware.CurrentSession(c)
	if err := h.users.Delete(c.Request.Context(), actor, id); err != nil {
		middleware.Fail(c, err)
		return
	}

	h.logAdminAction(c, nil)
	c.Status(http.StatusNoContent)
}

type userRolesRequest struct {
	RoleIDs []int64 `json:"role_ids" binding:"required"`
}

type userRolesResponse struct {
	Roles   []roleResponse `json:"roles"`
	Added   *int64         `json:"added,omitempty"`
	Removed *int64         `json:"removed,omitempty"`
}

func (h HandlerSet) GetUserRoles(c *gin.Context) {
	id, err := pathID(c, "uid")
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	roles, err := h.userRoles.GetUserRoles(c.Request.Context(), id)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, userRolesResponse{Roles: toRoleResponses(roles)})
}

func (h HandlerSet) UpdateUserRoles(c *gin.Context) {
	id, err := pathID(c, "uid")
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	var req userRolesRequest
	if err := bindJSON(c, &req); err != nil {
		middleware.Fail(c, err)
		return
	}

	result, err := h.userRoles.UpdateUserRoles(c.Request.Context(), id, req.RoleIDs)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	h.logAdminAction(c, map[string]any{"role_ids": req.RoleIDs})
	c.JSON(http.StatusOK, userRolesResponse{
		Roles:   toRoleResponses(result.Roles),
		Added:   &result.Added,
		Removed: &result.Removed,
	})
}
