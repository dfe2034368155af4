package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"esawitku.app/internal/audit"
	"esawitku.app/internal/auth"
	"esawitku.app/internal/obs"
)

// Endpoint names one gated operation and the permissions it requires.
// The name doubles as the rate-limit bucket and the audit action.
type Endpoint struct {
	Name        string
	Permissions []auth.Permission
}

// auditNote is filled by handlers so the gate can record what changed.
// The pointer is placed in the request context before the handler runs.
type auditNote struct {
	Resource   string
	ResourceID string
	OldValues  json.RawMessage
	NewValues  json.RawMessage
}

type auditNoteKey struct{}

// noteAudit attaches resource details to the request's audit note.
// A no-op for requests that did not come through the gate.
func noteAudit(r *http.Request, resource, resourceID string, newValues any) {
	note, ok := r.Context().Value(auditNoteKey{}).(*auditNote)
	if !ok {
		return
	}
	note.Resource = resource
	note.ResourceID = resourceID
	if newValues != nil {
		if raw, err := json.Marshal(newValues); err == nil {
			note.NewValues = raw
		}
	}
}

func noteAuditOld(r *http.Request, oldValues any) {
	note, ok := r.Context().Value(auditNoteKey{}).(*auditNote)
	if !ok || oldValues == nil {
		return
	}
	if raw, err := json.Marshal(oldValues); err == nil {
		note.OldValues = raw
	}
}

// gate wraps a handler with the request pipeline: per-endpoint rate
// limit, authentication, authorization, then the handler, and finally
// an async audit record for every successful request. Each stage
// short-circuits without invoking the next.
func (a *API) gate(ep Endpoint, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.limiter != nil {
			dec := a.limiter.Check(r.Context(), clientIP(r), ep.Name)
			if !dec.Allowed {
				obs.GateDecision(ep.Name, "rate_limited")
				retry := int(dec.RetryAfter.Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, retry later")
				return
			}
		}

		identity, err := a.resolver.Resolve(r.Context(), credentialsFromRequest(r))
		if err != nil {
			obs.GateDecision(ep.Name, "unauthenticated")
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		if err := auth.Authorize(identity, ep.Permissions...); err != nil {
			obs.GateDecision(ep.Name, "forbidden")
			writeError(w, r, http.StatusForbidden, "insufficient permissions")
			return
		}

		note := &auditNote{}
		ctx := auth.ContextWithIdentity(r.Context(), identity)
		ctx = context.WithValue(ctx, auditNoteKey{}, note)
		sw := &statusWriter{ResponseWriter: w, code: 200}

		handler(sw, r.WithContext(ctx))

		if sw.code >= 400 {
			obs.GateDecision(ep.Name, "rejected")
			return
		}
		obs.GateDecision(ep.Name, "allowed")

		// Reads and mutations alike are audited, fire-and-forget.
		if a.recorder == nil {
			return
		}
		a.recorder.Record(ctx, audit.Entry{
			UserID:     identity.ID,
			Action:     ep.Name,
			Resource:   note.Resource,
			ResourceID: note.ResourceID,
			OldValues:  note.OldValues,
			NewValues:  note.NewValues,
			IPAddress:  clientIP(r),
			UserAgent:  r.UserAgent(),
		})
	}
}

// limited applies only the per-endpoint rate limit. Used on public
// endpoints where no identity exists yet.
func (a *API) limited(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.limiter != nil {
			dec := a.limiter.Check(r.Context(), clientIP(r), endpoint)
			if !dec.Allowed {
				obs.GateDecision(endpoint, "rate_limited")
				retry := int(dec.RetryAfter.Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, retry later")
				return
			}
		}
		handler(w, r)
	}
}

// credentialsFromRequest pulls every supported credential off the
// request. Precedence is decided by the resolver, not here.
func credentialsFromRequest(r *http.Request) auth.Credentials {
	var creds auth.Credentials
	if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		creds.BearerToken = h[7:]
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		creds.SessionToken = c.Value
	}
	creds.APIKey = r.Header.Get("X-API-Key")
	return creds
}
