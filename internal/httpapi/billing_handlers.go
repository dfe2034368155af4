package httpapi

import (
	"net/http"
	"strings"

	"esawitku.app/internal/auth"
	"esawitku.app/internal/billing"
)

func (a *API) handlePackages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	pkgs, err := a.billing.ListPackages(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, pkgs, "")
}

func (a *API) handleActiveSubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	sub, err := a.billing.ActiveSubscription(r.Context(), identity.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, sub, "")
}

func (a *API) handlePaymentsCollection(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		list, err := a.billing.ListPayments(r.Context(), identity.ID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, list, "")
	case http.MethodPost:
		var in billing.PaymentInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p, err := a.billing.SubmitPayment(r.Context(), identity.ID, in)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		noteAudit(r, "payment", p.ID, p)
		writeSuccess(w, http.StatusCreated, p, "pembayaran menunggu verifikasi")
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handlePaymentResourceRouting picks the right gate per sub-path:
// reads are open to the owner, verify/reject and the pending queue
// need the payment-verify permission.
func (a *API) handlePaymentResourceRouting(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/payments/")
	switch {
	case path == "pending":
		a.gate(Endpoint{Name: "payments.pending", Permissions: []auth.Permission{auth.PermissionPaymentVerify}}, a.listPendingPayments)(w, r)
	case strings.HasSuffix(path, "/verify"):
		id := strings.TrimSuffix(path, "/verify")
		a.gate(Endpoint{Name: "payments.verify", Permissions: []auth.Permission{auth.PermissionPaymentVerify}}, a.reviewPayment(id, true))(w, r)
	case strings.HasSuffix(path, "/reject"):
		id := strings.TrimSuffix(path, "/reject")
		a.gate(Endpoint{Name: "payments.reject", Permissions: []auth.Permission{auth.PermissionPaymentVerify}}, a.reviewPayment(id, false))(w, r)
	case path != "" && !strings.Contains(path, "/"):
		a.gate(Endpoint{Name: "payments", Permissions: []auth.Permission{auth.PermissionRead}}, a.getPayment(path))(w, r)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getPayment(id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		identity, _ := auth.IdentityFromContext(r.Context())
		p, err := a.billing.GetUserPayment(r.Context(), identity.ID, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, p, "")
	}
}

func (a *API) listPendingPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	list, err := a.billing.ListPendingPayments(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, list, "")
}

func (a *API) reviewPayment(id string, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		identity, _ := auth.IdentityFromContext(r.Context())
		var (
			p   *billing.Payment
			err error
			msg string
		)
		if approve {
			p, err = a.billing.VerifyPayment(r.Context(), id, identity.ID)
			msg = "pembayaran terverifikasi"
		} else {
			p, err = a.billing.RejectPayment(r.Context(), id, identity.ID)
			msg = "pembayaran ditolak"
		}
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		noteAudit(r, "payment", p.ID, p)
		writeSuccess(w, http.StatusOK, p, msg)
	}
}
