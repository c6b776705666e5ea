package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub/api/internal/middleware"
	"learnhub/api/internal/models"
	"learnhub/api/internal/repository"
	"learnhub/api/internal/service"
)

func (h HandlerSet) Profile(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	principal, err := h.auth.Profile(c.Request.Context(), claims.PrincipalID)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "principal no longer exists")
			return
		}
		h.log.Error().Err(err).Msg("profile lookup failed")
		respondError(c, http.StatusInternalServerError, "internal_error", "profile lookup failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toPrincipalResponse(principal)})
}

type ownedQuery struct {
	Role string `form:"role" binding:"omitempty,subordinaterole"`
}

// ListOwned resolves the caller's subordinates. Without an explicit role
// the relation follows from the caller: admins list tutors, tutors list
// students.
func (h HandlerSet) ListOwned(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	var query ownedQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondInvalidInput(c, err)
		return
	}

	ownedRole := models.Role(query.Role)
	if query.Role == "" {
		callerRole, _ := models.ParseRole(claims.RoleName)
		if callerRole == models.RoleTutor {
			ownedRole = models.RoleStudent
		} else {
			ownedRole = models.RoleTutor
		}
	}

	owned, err := h.hierarchy.ListOwned(c.Request.Context(), claims.PrincipalID, ownedRole)
	if err != nil {
		h.log.Error().Err(err).Msg("list owned failed")
		respondError(c, http.StatusInternalServerError, "internal_error", "could not list owned principals")
		return
	}

	resp := make([]principalResponse, 0, len(owned))
	for _, p := range owned {
		resp = append(resp, toPrincipalResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"users": resp})
}

type subordinateRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"required"`
}

func (h HandlerSet) CreateTutor(c *gin.Context) {
	h.createSubordinate(c, models.RoleTutor)
}

func (h HandlerSet) CreateStudent(c *gin.Context) {
	h.createSubordinate(c, models.RoleStudent)
}

func (h HandlerSet) createSubordinate(c *gin.Context, role models.Role) {
	claims, _ := middleware.ClaimsFrom(c)

	var req subordinateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	principal, err := h.hierarchy.CreateOwned(c.Request.Context(), claims, service.SubordinateInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	}, role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			respondError(c, http.StatusConflict, "email_taken", "email already registered")
		case errors.Is(err, service.ErrWrongCreatorRole), errors.Is(err, service.ErrWrongSubordinateRole):
			respondError(c, http.StatusBadRequest, "wrong_role", err.Error())
		default:
			h.log.Error().Err(err).Msg("subordinate creation failed")
			respondError(c, http.StatusInternalServerError, "internal_error", "could not create account")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": toPrincipalResponse(principal)})
}

type statusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive"`
}

func (h HandlerSet) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	err := h.hierarchy.SetStatus(c.Request.Context(), c.Param("id"), models.Status(req.Status))
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "no such principal")
			return
		}
		h.log.Error().Err(err).Msg("status update failed")
		respondError(c, http.StatusInternalServerError, "internal_error", "status update failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": req.Status})
}

// deleteTarget validates the preconditions every delete shares: the target
// must exist, must not be the caller, and must already be deactivated.
// Nothing is deleted when any of these fail.
func (h HandlerSet) deleteTarget(c *gin.Context) (models.Principal, bool) {
	claims, _ := middleware.ClaimsFrom(c)
	id := c.Param("id")

	target, err := h.hierarchy.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "no such principal")
		} else {
			h.log.Error().Err(err).Msg("delete target lookup failed")
			respondError(c, http.StatusInternalServerError, "internal_error", "lookup failed")
		}
		return models.Principal{}, false
	}

	if claims != nil && claims.PrincipalID == target.ID {
		respondError(c, http.StatusBadRequest, "self_delete", "cannot delete your own account")
		return models.Principal{}, false
	}
	if target.Status == models.StatusActive {
		respondError(c, http.StatusConflict, "principal_active", "deactivate the account before deleting it")
		return models.Principal{}, false
	}

	return target, true
}

func (h HandlerSet) DeleteCascade(c *gin.Context) {
	target, ok := h.deleteTarget(c)
	if !ok {
		return
	}

	result, err := h.hierarchy.DeleteCascade(c.Request.Context(), target.ID)
	if err != nil {
		h.log.Error().Err(err).Str("principal_id", target.ID).Msg("cascade delete failed")
		respondError(c, http.StatusInternalServerError, "internal_error", "cascade delete failed")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h HandlerSet) DeleteSelfOnly(c *gin.Context) {
	target, ok := h.deleteTarget(c)
	if !ok {
		return
	}

	if err := h.hierarchy.DeleteSelfOnly(c.Request.Context(), target.ID); err != nil {
		h.log.Error().Err(err).Str("principal_id", target.ID).Msg("self-only delete failed")
		respondError(c, http.StatusInternalServerError, "internal_error", "delete failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": 1})
}

func (h HandlerSet) DeleteTutorCascade(c *gin.Context) {
	target, ok := h.deleteTarget(c)
	if !ok {
		return
	}
	if target.Role != models.RoleTutor {
		respondError(c, http.StatusBadRequest, "wrong_role", "principal is not a tutor")
		return
	}

	result, err := h.hierarchy.DeleteCascade(c.Request.Context(), target.ID)
	if err != nil {
		h.log.Error().Err(err).Str("principal_id", target.ID).Msg("tutor cascade failed")
		respondError(c, http.StatusInternalServerError, "internal_error", "cascade delete failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tutorDeleted":    result.DeletedSelf,
		"studentsDeleted": result.DeletedStudents,
	})
}

func (h HandlerSet) DeleteAdminCascade(c *gin.Context) {
	target, ok := h.deleteTarget(c)
	if !ok {
		return
	}
	if target.Role != models.RoleAdmin {
		respondError(c, http.StatusBadRequest, "wrong_role", "principal is not an admin")
		return
	}

	result, err := h.hierarchy.DeleteCascade(c.Request.Context(), target.ID)
	if err != nil {
		h.log.Error().Err(err).Str("principal_id", target.ID).Msg("admin cascade failed")
		respondError(c, http.StatusInternalServerError, "internal_error", "cascade delete failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"adminDeleted":    result.DeletedSelf,
		"tutorsDeleted":   result.DeletedTutors,
		"studentsDeleted": result.DeletedStudents,
	})
}
