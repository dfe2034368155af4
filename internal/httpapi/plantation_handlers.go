package httpapi

import (
	"net/http"
	"strings"
	"time"

	"esawitku.app/internal/auth"
	"esawitku.app/internal/plantation"
)

func (a *API) handleKebunCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listKebun(w, r)
	case http.MethodPost:
		a.createKebun(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleKebunResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/kebun/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if rest, found := strings.CutSuffix(path, "/panen"); found {
		a.handleKebunPanen(w, r, rest)
		return
	}
	if rest, found := strings.CutSuffix(path, "/pupuk"); found {
		a.handleKebunPupuk(w, r, rest)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getKebun(w, r, path)
	case http.MethodPut:
		a.updateKebun(w, r, path)
	case http.MethodDelete:
		a.deleteKebun(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listKebun(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	list, err := a.plantation.ListKebun(r.Context(), identity.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, list, "")
}

func (a *API) createKebun(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	var in plantation.KebunInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	k, err := a.plantation.CreateKebun(r.Context(), identity.ID, in)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	noteAudit(r, "kebun", k.ID, k)
	writeSuccess(w, http.StatusCreated, k, "kebun berhasil dibuat")
}

func (a *API) getKebun(w http.ResponseWriter, r *http.Request, id string) {
	identity, _ := auth.IdentityFromContext(r.Context())
	k, err := a.plantation.GetKebun(r.Context(), identity.ID, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, k, "")
}

func (a *API) updateKebun(w http.ResponseWriter, r *http.Request, id string) {
	identity, _ := auth.IdentityFromContext(r.Context())
	var in plantation.KebunInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	old, err := a.plantation.GetKebun(r.Context(), identity.ID, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	k, err := a.plantation.UpdateKebun(r.Context(), identity.ID, id, in)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	noteAuditOld(r, old)
	noteAudit(r, "kebun", k.ID, k)
	writeSuccess(w, http.StatusOK, k, "kebun berhasil diperbarui")
}

func (a *API) deleteKebun(w http.ResponseWriter, r *http.Request, id string) {
	identity, _ := auth.IdentityFromContext(r.Context())
	old, err := a.plantation.GetKebun(r.Context(), identity.ID, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.plantation.DeleteKebun(r.Context(), identity.ID, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	noteAuditOld(r, old)
	noteAudit(r, "kebun", id, nil)
	writeSuccess(w, http.StatusOK, nil, "kebun berhasil dihapus")
}

// --- Panen ---

func (a *API) handleKebunPanen(w http.ResponseWriter, r *http.Request, kebunID string) {
	if kebunID == "" || strings.Contains(kebunID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		list, err := a.plantation.ListPanen(r.Context(), identity.ID, kebunID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, list, "")
	case http.MethodPost:
		var in plantation.PanenInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p, err := a.plantation.CreatePanen(r.Context(), identity.ID, kebunID, in)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		noteAudit(r, "panen", p.ID, p)
		writeSuccess(w, http.StatusCreated, p, "data panen berhasil dicatat")
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePanenResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/panen/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		p, err := a.plantation.GetPanen(r.Context(), identity.ID, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, p, "")
	case http.MethodPut:
		var in plantation.PanenInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		old, err := a.plantation.GetPanen(r.Context(), identity.ID, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		p, err := a.plantation.UpdatePanen(r.Context(), identity.ID, id, in)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		noteAuditOld(r, old)
		noteAudit(r, "panen", p.ID, p)
		writeSuccess(w, http.StatusOK, p, "data panen berhasil diperbarui")
	case http.MethodDelete:
		if err := a.plantation.DeletePanen(r.Context(), identity.ID, id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		noteAudit(r, "panen", id, nil)
		writeSuccess(w, http.StatusOK, nil, "data panen berhasil dihapus")
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// --- Pupuk ---

func (a *API) handleKebunPupuk(w http.ResponseWriter, r *http.Request, kebunID string) {
	if kebunID == "" || strings.Contains(kebunID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		list, err := a.plantation.ListPupuk(r.Context(), identity.ID, kebunID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, list, "")
	case http.MethodPost:
		var in plantation.PupukInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p, err := a.plantation.CreatePupuk(r.Context(), identity.ID, kebunID, in)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		noteAudit(r, "pupuk", p.ID, p)
		writeSuccess(w, http.StatusCreated, p, "data pupuk berhasil dicatat")
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePupukResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/pupuk/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		p, err := a.plantation.GetPupuk(r.Context(), identity.ID, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, p, "")
	case http.MethodDelete:
		if err := a.plantation.DeletePupuk(r.Context(), identity.ID, id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		noteAudit(r, "pupuk", id, nil)
		writeSuccess(w, http.StatusOK, nil, "data pupuk berhasil dihapus")
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

// --- Dashboard & reports ---

type dashboardResponse struct {
	plantation.Summary
	ActivePackage string `json:"activePackage,omitempty"`
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	sum, err := a.plantation.Dashboard(r.Context(), identity.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	resp := dashboardResponse{Summary: sum}
	if a.billing != nil {
		if sub, err := a.billing.ActiveSubscription(r.Context(), identity.ID); err == nil {
			resp.ActivePackage = sub.PackageID
		}
	}
	writeSuccess(w, http.StatusOK, resp, "")
}

func (a *API) handlePanenReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())

	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeErrorDetails(w, r, http.StatusBadRequest, "validation failed", map[string]string{"from": "must be YYYY-MM-DD"})
			return
		}
		from = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeErrorDetails(w, r, http.StatusBadRequest, "validation failed", map[string]string{"to": "must be YYYY-MM-DD"})
			return
		}
		// Inclusive end of day.
		to = t.Add(24*time.Hour - time.Nanosecond)
	}

	rows, err := a.plantation.PanenReport(r.Context(), identity.ID, from, to)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, rows, "")
}
