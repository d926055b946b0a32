package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"maplocate/api/internal/middleware"
	"maplocate/api/internal/models"
	"maplocate/api/internal/service"
)

type roleResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"role_name"`
	Permissions []string `json:"permissions"`
	Description string   `json:"description"`
}

func toRoleResponse(r models.Role) roleResponse {
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	return roleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Permissions: perms,
		Description: r.Description,
	}
}

func toRoleResponses(roles []models.Role) []roleResponse {
	out := make([]roleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRoleResponse(r))
	}
	return out
}

type createRoleRequest struct {
	Name        string   `json:"role_name" binding:"required,max=64"`
	Permissions []string `json:"permissions"`
	Description string   `json:"description" binding:"max=64"`
}

func (h HandlerSet) CreateRole(c *gin.Context) {
	var req createRoleRequest
	if err := bindJSON(c, &req); err != nil {
		middleware.Fail(c, err)
		return
	}

	role, err := h.roles.Create(c.Request.Context(), service.RoleInput{
		Name:        req.Name,
		Permissions: req.Permissions,
		Description: req.Description,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	h.logAdminAction(c, map[string]any{
		"role_name":   req.Name,
		"permissions": req.Permissions,
		"description": req.Description,
	})
	c.JSON(http.StatusCreated, toRoleResponse(role))
}

func (h HandlerSet) ListRoles(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toRoleResponses(roles)})
}

func (h HandlerSet) GetRole(c *gin.Context) {
	id, err := pathID(c, "role_id")
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	role, err := h.roles.Get(c.Request.Context(), id)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toRoleResponse(role))
}

type updateRoleRequest struct {
	Name        *string   `json:"role_name" binding:"omitempty,min=1,max=64"`
	Permissions *[]string `json:"permissions"`
	Description *string   `json:"description" binding:"omitempty,max=64"`
}

func (h HandlerSet) UpdateRole(c *gin.Context) {
	id, err := pathID(c, "role_id")
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	var req updateRoleRequest
	if err := bindJSON(c, &req); err != nil {
		middleware.Fail(c, err)
		return
	}

	role, err := h.roles.Update(c.Request.Context(), id, service.UpdateRoleInput{
		Name:        req.Name,
		Permissions: req.Permissions,
		Description: req.Description,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	h.logAdminAction(c, map[string]any{
		"role_name":   role.Name,
		"permissions": role.Permissions,
		"description": role.Description,
	})
	c.JSON(http.StatusOK, toRoleResponse(role))
}

func (h HandlerSet) DeleteRole(c *gin.Context) {
	id, err := pathID(c, "role_id")
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	if err := h.roles.Delete(c.Request.Context(), id); err != nil {
		middleware.Fail(c, err)
		return
	}

	h.logAdminAction(c, nil)
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) ListPermissions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.roles.ListPermissions()})
}
