package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"bizhub.io/internal/access"
	"bizhub.io/internal/auth"
	"bizhub.io/internal/permission"
)

type registrationCheckRequest struct {
	Email           string `json:"email"`
	InvitationToken string `json:"invitation_token"`
}

type createInvitationRequest struct {
	Email         string `json:"email"`
	Role          string `json:"role"`
	ExpiresInDays int    `json:"expires_in_days"`
	Notes         string `json:"notes"`
}

type overrideRequest struct {
	Permission string `json:"permission"`
	Effect     string `json:"effect"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (a *API) handleRegistrationCheck(w http.ResponseWriter, r *http.Request) {
	var req registrationCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	d := a.access.CanUserRegister(r.Context(), req.Email, strings.TrimSpace(req.InvitationToken))
	// The invitation carries its token; a registration check must not echo it.
	if d.Invitation != nil {
		inv := *d.Invitation
		inv.Token = ""
		d.Invitation = &inv
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) handleValidateInvitation(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	v, err := a.access.ValidateInvitation(r.Context(), token, r.URL.Query().Get("email"))
	if err != nil {
		a.logger.ErrorContext(r.Context(), "validate invitation", slog.Any("error", err))
		writeError(w, r, http.StatusInternalServerError, "invitation lookup failed")
		return
	}
	if v.Invitation != nil {
		inv := *v.Invitation
		inv.Token = ""
		v.Invitation = &inv
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	if err := a.access.AcceptInvitationAs(r.Context(), chi.URLParam(r, "token"), p.UserID, p.Email); err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: string(access.InvitationAccepted)})
}

func (a *API) handleGetAllowedDomains(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.access.AllowedDomains(r.Context())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *API) handleUpdateAllowedDomains(w http.ResponseWriter, r *http.Request) {
	var cfg access.AllowedDomainsConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	saved, err := a.access.UpdateAllowedDomains(r.Context(), cfg, p.UserID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (a *API) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter access.InvitationFilter
	if raw := q.Get("status"); raw != "" {
		status, err := access.ParseInvitationStatus(raw)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		filter.Status = status
	}
	filter.InvitedBy = q.Get("invited_by")
	if raw := q.Get("include_expired"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "include_expired must be a boolean")
			return
		}
		filter.IncludeExpired = include
	}
	list, err := a.access.Invitations(r.Context(), filter)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	for i := range list {
		list[i].Token = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitations": list})
}

func (a *API) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req createInvitationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var role permission.Role
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := permission.ParseRole(req.Role)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role = parsed
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	// Only super_admin may invite another super_admin.
	if role == permission.RoleSuperAdmin && p.Role != permission.RoleSuperAdmin {
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
		return
	}
	receipt, err := a.access.CreateInvitation(r.Context(), access.InvitationRequest{
		Email:         req.Email,
		Role:          role,
		InvitedBy:     p.UserID,
		ExpiresInDays: req.ExpiresInDays,
		Notes:         req.Notes,
	})
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (a *API) handleRevokeInvitation(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	if err := a.access.RevokeInvitation(r.Context(), chi.URLParam(r, "token"), p.UserID); err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: string(access.InvitationRevoked)})
}

func (a *API) handleCleanupInvitations(w http.ResponseWriter, r *http.Request) {
	n := a.access.CleanupExpiredInvitations(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"expired": n})
}

func (a *API) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	perm, err := permission.ParsePermission(req.Permission)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	effect, err := permission.ParseEffect(req.Effect)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	o := permission.Override{Permission: perm, Effect: effect}
	if err := a.access.SetPermissionOverride(r.Context(), chi.URLParam(r, "userID"), o, p.UserID); err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) handleRemoveOverride(w http.ResponseWriter, r *http.Request) {
	perm, err := permission.ParsePermission(chi.URLParam(r, "permission"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	if err := a.access.RemovePermissionOverride(r.Context(), chi.URLParam(r, "userID"), perm, p.UserID); err != nil {
		handleAccessError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type myPermissionsResponse struct {
	UserID      string                `json:"user_id"`
	Role        permission.Role       `json:"role"`
	Department  permission.Department `json:"department"`
	Permissions []string              `json:"permissions"`
	Resources   []permission.Resource `json:"resources"`
}

func (a *API) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	set, err := a.access.ResolvePermissions(r.Context(), p.UserID, p.Role, p.Department)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, myPermissionsResponse{
		UserID:      p.UserID,
		Role:        p.Role,
		Department:  p.Department,
		Permissions: set.Strings(),
		Resources:   set.Resources(),
	})
}

type catalogResource struct {
	Name permission.Resource `json:"name"`
	permission.ResourceInfo
}

type catalogRole struct {
	Role            permission.Role         `json:"role"`
	Description     string                  `json:"description"`
	Departments     []permission.Department `json:"departments"`
	PermissionCount int                     `json:"permission_count"`
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	resources := make([]catalogResource, 0, len(permission.AllResources()))
	for _, res := range permission.AllResources() {
		info, _ := permission.Info(res)
		resources = append(resources, catalogResource{Name: res, ResourceInfo: info})
	}
	roles := make([]catalogRole, 0, len(permission.AllRoles()))
	for _, role := range permission.AllRoles() {
		t, ok := permission.TemplateFor(role)
		if !ok {
			writeError(w, r, http.StatusInternalServerError, "permission catalog incomplete")
			a.logger.ErrorContext(r.Context(), "role without template", slog.String("role", string(role)))
			return
		}
		roles = append(roles, catalogRole{
			Role:            role,
			Description:     t.Description,
			Departments:     t.Departments,
			PermissionCount: len(t.Permissions),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"departments": permission.AllDepartments(),
		"actions":     permission.AllActions(),
		"resources":   resources,
		"roles":       roles,
	})
}
