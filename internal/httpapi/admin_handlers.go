package httpapi

import (
	"net/http"
	"strings"

	"esawitku.app/internal/auth"
)

type updateUserStatusRequest struct {
	Status string `json:"status"`
}

type updateUserRoleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	users, err := a.users.List(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, users, "")
}

// handleAdminUserResource routes /v1/admin/users/{id}/status and
// /v1/admin/users/{id}/role.
func (a *API) handleAdminUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/admin/users/")
	switch {
	case strings.HasSuffix(path, "/status"):
		a.updateUserStatus(w, r, strings.TrimSuffix(path, "/status"))
	case strings.HasSuffix(path, "/role"):
		a.updateUserRole(w, r, strings.TrimSuffix(path, "/role"))
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) updateUserStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	var req updateUserStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Status != auth.UserStatusActive && req.Status != auth.UserStatusDisabled {
		writeErrorDetails(w, r, http.StatusBadRequest, "validation failed",
			map[string]string{"status": "must be active or disabled"})
		return
	}
	// Admins cannot lock themselves out.
	identity, _ := auth.IdentityFromContext(r.Context())
	if identity.ID == id && req.Status == auth.UserStatusDisabled {
		writeError(w, r, http.StatusConflict, "cannot disable own account")
		return
	}
	if err := a.users.UpdateStatus(r.Context(), id, req.Status); err != nil {
		handleDomainError(w, r, err)
		return
	}
	noteAudit(r, "user", id, map[string]string{"status": req.Status})
	writeSuccess(w, http.StatusOK, nil, "status pengguna diperbarui")
}

func (a *API) updateUserRole(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	var req updateUserRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeErrorDetails(w, r, http.StatusBadRequest, "validation failed",
			map[string]string{"role": "must be user, admin or super_admin"})
		return
	}
	if err := a.users.UpdateRole(r.Context(), id, role); err != nil {
		handleDomainError(w, r, err)
		return
	}
	noteAudit(r, "user", id, map[string]string{"role": string(role)})
	writeSuccess(w, http.StatusOK, nil, "role pengguna diperbarui")
}
