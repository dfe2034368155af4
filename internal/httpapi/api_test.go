package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"esawitku.app/internal/auth"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Details map[string]string `json:"details"`
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func register(t *testing.T, client *http.Client, baseURL, email string) (token, userID string) {
	t.Helper()
	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/v1/auth/register", "", map[string]string{
		"nama":     "Pak Tani",
		"email":    email,
		"password": "rahasia-sawit",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d: %s", resp.StatusCode, env.Error)
	}
	var data struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode register data: %v", err)
	}
	return data.Token, data.User.ID
}

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.api.Handler())
	defer srv.Close()
	client := srv.Client()

	token, userID := register(t, client, srv.URL, "petani@sawit.id")
	if token == "" || userID == "" {
		t.Fatal("expected token and user id")
	}

	// Duplicate email conflicts.
	resp, _ := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/register", "", map[string]string{
		"nama": "X", "email": "petani@sawit.id", "password": "rahasia-sawit",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", resp.StatusCode)
	}

	// Validation failure carries a field map.
	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/register", "", map[string]string{
		"nama": "", "email": "not-an-email", "password": "short",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid register status = %d, want 400", resp.StatusCode)
	}
	if body.Details["email"] == "" || body.Details["nama"] == "" || body.Details["password"] == "" {
		t.Fatalf("expected per-field details, got %+v", body.Details)
	}

	resp, body = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", "", map[string]string{
		"email": "petani@sawit.id", "password": "rahasia-sawit",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d: %s", resp.StatusCode, body.Error)
	}

	resp, body = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", "", map[string]string{
		"email": "petani@sawit.id", "password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", resp.StatusCode)
	}

	resp, body = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d: %s", resp.StatusCode, body.Error)
	}
	var me auth.User
	if err := json.Unmarshal(body.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.ID != userID || me.Email != "petani@sawit.id" {
		t.Fatalf("unexpected me: %+v", me)
	}

	resp, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me without token status = %d, want 401", resp.StatusCode)
	}
}

func TestKebunPanenFlow(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.api.Handler())
	defer srv.Close()
	client := srv.Client()

	token, _ := register(t, client, srv.URL, "petani@sawit.id")

	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/v1/kebun", token, map[string]any{
		"nama": "Kebun Utara", "lokasi": "Riau", "luasHektar": 2.5, "jumlahPohon": 320,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create kebun status = %d: %s", resp.StatusCode, body.Error)
	}
	var kebun struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body.Data, &kebun); err != nil {
		t.Fatalf("decode kebun: %v", err)
	}

	// Gratis tier allows a single kebun.
	resp, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v1/kebun", token, map[string]any{
		"nama": "Kebun Kedua", "luasHektar": 1.0,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("over-quota kebun status = %d, want 409", resp.StatusCode)
	}

	resp, body = doJSON(t, client, http.MethodPost, srv.URL+"/v1/kebun/"+kebun.ID+"/panen", token, map[string]any{
		"beratKg": 100.0, "hargaPerKg": 2000, "totalPendapatan": 1,
	})
	// Client-supplied totalPendapatan is an unknown field for input.
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("panen with client total status = %d, want 400", resp.StatusCode)
	}

	resp, body = doJSON(t, client, http.MethodPost, srv.URL+"/v1/kebun/"+kebun.ID+"/panen", token, map[string]any{
		"beratKg": 100.0, "hargaPerKg": 2000,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create panen status = %d: %s", resp.StatusCode, body.Error)
	}
	var panen struct {
		ID              string `json:"id"`
		TotalPendapatan int64  `json:"totalPendapatan"`
	}
	if err := json.Unmarshal(body.Data, &panen); err != nil {
		t.Fatalf("decode panen: %v", err)
	}
	if panen.TotalPendapatan != 200000 {
		t.Fatalf("totalPendapatan = %d, want 200000", panen.TotalPendapatan)
	}

	// Another user cannot see or touch the kebun.
	otherToken, _ := register(t, client, srv.URL, "lain@sawit.id")
	resp, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/kebun/"+kebun.ID, otherToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign kebun status = %d, want 404", resp.StatusCode)
	}
	resp, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v1/kebun/"+kebun.ID+"/panen", otherToken, map[string]any{
		"beratKg": 1.0, "hargaPerKg": 1,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign panen create status = %d, want 404", resp.StatusCode)
	}

	// Dashboard reflects the owner's records.
	resp, body = doJSON(t, client, http.MethodGet, srv.URL+"/v1/dashboard", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status = %d: %s", resp.StatusCode, body.Error)
	}
	var dash struct {
		TotalKebun      int   `json:"totalKebun"`
		TotalPendapatan int64 `json:"totalPendapatan"`
	}
	if err := json.Unmarshal(body.Data, &dash); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dash.TotalKebun != 1 || dash.TotalPendapatan != 200000 {
		t.Fatalf("unexpected dashboard: %+v", dash)
	}
}

func TestPaymentVerificationFlow(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.api.Handler())
	defer srv.Close()
	client := srv.Client()

	token, _ := register(t, client, srv.URL, "petani@sawit.id")
	_, adminToken := env.seedUser(t, "admin@sawit.id", auth.RoleAdmin)

	// Catalogue is public.
	resp, body := doJSON(t, client, http.MethodGet, srv.URL+"/v1/packages", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("packages status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, client, http.MethodPost, srv.URL+"/v1/payments", token, map[string]any{
		"packageId": "pkg-premium", "jumlah": 299000,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit payment status = %d: %s", resp.StatusCode, body.Error)
	}
	var payment struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body.Data, &payment); err != nil {
		t.Fatalf("decode payment: %v", err)
	}
	if payment.Status != "pending" {
		t.Fatalf("payment status = %q, want pending", payment.Status)
	}

	// Wrong amount is rejected up front.
	resp, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v1/payments", token, map[string]any{
		"packageId": "pkg-premium", "jumlah": 100,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong amount status = %d, want 400", resp.StatusCode)
	}

	// A plain user may not verify.
	resp, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v1/payments/"+payment.ID+"/verify", token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("user verify status = %d, want 403", resp.StatusCode)
	}

	resp, body = doJSON(t, client, http.MethodPost, srv.URL+"/v1/payments/"+payment.ID+"/verify", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin verify status = %d: %s", resp.StatusCode, body.Error)
	}

	// Second verification conflicts.
	resp, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v1/payments/"+payment.ID+"/verify", adminToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double verify status = %d, want 409", resp.StatusCode)
	}

	// The paid subscription is now active.
	resp, body = doJSON(t, client, http.MethodGet, srv.URL+"/v1/subscriptions/active", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("active subscription status = %d: %s", resp.StatusCode, body.Error)
	}
	var sub struct {
		PackageID string `json:"packageId"`
	}
	if err := json.Unmarshal(body.Data, &sub); err != nil {
		t.Fatalf("decode subscription: %v", err)
	}
	if sub.PackageID != "pkg-premium" {
		t.Fatalf("active package = %q, want pkg-premium", sub.PackageID)
	}

	// Owner sees the payment; a stranger gets 404.
	resp, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/payments/"+payment.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get own payment status = %d", resp.StatusCode)
	}
	strangerToken, _ := register(t, client, srv.URL, "lain@sawit.id")
	resp, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/payments/"+payment.ID, strangerToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign payment status = %d, want 404", resp.StatusCode)
	}
}

func TestAdminUserManagement(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.api.Handler())
	defer srv.Close()
	client := srv.Client()

	userToken, userID := register(t, client, srv.URL, "petani@sawit.id")
	_, adminToken := env.seedUser(t, "admin@sawit.id", auth.RoleAdmin)

	// Plain users cannot list accounts.
	resp, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v1/admin/users", userToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("user list status = %d, want 403", resp.StatusCode)
	}

	resp, body := doJSON(t, client, http.MethodGet, srv.URL+"/v1/admin/users", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list status = %d: %s", resp.StatusCode, body.Error)
	}
	var users []auth.User
	if err := json.Unmarshal(body.Data, &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("user count = %d, want 2", len(users))
	}

	// Unknown roles are rejected, never defaulted.
	resp, _ = doJSON(t, client, http.MethodPut, srv.URL+"/v1/admin/users/"+userID+"/role", adminToken,
		map[string]string{"role": "moderator"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad role status = %d, want 400", resp.StatusCode)
	}

	// Disabling an account kills its credentials.
	resp, body = doJSON(t, client, http.MethodPut, srv.URL+"/v1/admin/users/"+userID+"/status", adminToken,
		map[string]string{"status": "disabled"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable status = %d: %s", resp.StatusCode, body.Error)
	}
	resp, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", userToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("disabled me status = %d, want 401", resp.StatusCode)
	}
}

func TestHealthAndInfoEndpoints(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.api.Handler())
	defer srv.Close()
	client := srv.Client()

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp, err := client.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, err := client.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", resp.StatusCode)
	}
}

func TestRequestIDEchoedAndGenerated(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.api.Handler())
	defer srv.Close()
	client := srv.Client()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("X-Request-ID = %q, want echo of req-123", got)
	}

	resp, err = client.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected generated X-Request-ID")
	}
}

func TestSessionCookieAuthenticates(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.api.Handler())
	defer srv.Close()
	client := srv.Client()

	token, _ := register(t, client, srv.URL, "petani@sawit.id")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cookie me status = %d, want 200", resp.StatusCode)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.api.Handler())
	defer srv.Close()
	client := srv.Client()

	token, userID := register(t, client, srv.URL, "petani@sawit.id")

	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/apikeys", token, map[string]string{"nama": "ci"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create api key status = %d: %s", resp.StatusCode, body.Error)
	}
	var created struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := json.Unmarshal(body.Data, &created); err != nil {
		t.Fatalf("decode api key: %v", err)
	}
	if created.Key == "" {
		t.Fatal("expected raw key in create response")
	}

	// The raw key authenticates as the owning user.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/me", nil)
	req.Header.Set("X-API-Key", created.Key)
	resp2, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("api key me status = %d, want 200", resp2.StatusCode)
	}
	var env2 envelope
	if err := json.NewDecoder(resp2.Body).Decode(&env2); err != nil {
		t.Fatal(err)
	}
	var me auth.User
	if err := json.Unmarshal(env2.Data, &me); err != nil {
		t.Fatal(err)
	}
	if me.ID != userID {
		t.Fatalf("api key resolved to %q, want %q", me.ID, userID)
	}

	resp, body = doJSON(t, client, http.MethodGet, srv.URL+"/v1/auth/apikeys", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list api keys status = %d", resp.StatusCode)
	}
	var keys []map[string]any
	if err := json.Unmarshal(body.Data, &keys); err != nil {
		t.Fatalf("decode key list: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("key count = %d, want 1", len(keys))
	}
	if fmt.Sprint(keys[0]["id"]) != created.ID {
		t.Fatalf("listed key id = %v, want %s", keys[0]["id"], created.ID)
	}
}
