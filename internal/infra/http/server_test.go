package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"veritas/internal/config"
	"veritas/internal/domain"
	"veritas/internal/infra/keys/soft"
	"veritas/internal/infra/memstore"
	"veritas/internal/usecase"
)

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	certs := store.Certificates()
	events := store.AuditEvents()
	anchors := store.Anchors()

	registry := soft.NewRegistry(store)
	manager := soft.NewManager(store)
	emitter := usecase.NewAuditEmitter(events, nil)

	if cfg.AnchorPeriod <= 0 {
		cfg.AnchorPeriod = time.Hour
	}

	return NewServer(cfg, ServerDeps{
		Issuer: &usecase.CertificateIssuer{
			Certificates: certs,
			Keys:         registry,
			KeyManager:   manager,
			Audit:        emitter,
			Nonces:       store,
		},
		Verifier: &usecase.CertificateVerifier{Keys: registry},
		Rotator:  &usecase.KeyRotator{Keys: registry, Audit: emitter},
		Purge:    &usecase.TenantPurge{Store: store, Audit: emitter},
		Anchorer: &usecase.LedgerAnchorer{Events: events, Anchors: anchors, Audit: emitter},

		Certificates: certs,
		AuditEvents:  events,
		Anchors:      anchors,
		Keys:         registry,

		AdminAPIKey: cfg.AdminAPIKey,
	})
}

func doRequest(t *testing.T, srv *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func tenantHeaders(tenantID string) map[string]string {
	return map[string]string{"X-Tenant-ID": tenantID}
}

func issueOverHTTP(t *testing.T, srv *Server, tenantID, content string) domain.Certificate {
	t.Helper()
	w := doRequest(t, srv, http.MethodPost, "/v1/certificates:issue", gin.H{
		"content_base64": base64.StdEncoding.EncodeToString([]byte(content)),
		"policy_id":      "default",
	}, tenantHeaders(tenantID))
	if w.Code != http.StatusOK {
		t.Fatalf("issue status = %d, body %s", w.Code, w.Body.String())
	}
	var cert domain.Certificate
	if err := json.Unmarshal(w.Body.Bytes(), &cert); err != nil {
		t.Fatalf("decode certificate: %v", err)
	}
	return cert
}

func TestIssueAndFetchCertificate(t *testing.T) {
	srv := newTestServer(t, config.Config{})

	cert := issueOverHTTP(t, srv, "t-1", "report body")
	if cert.Chain.LinkedHash != domain.GenesisHash {
		t.Errorf("linked_hash = %q, want genesis sentinel", cert.Chain.LinkedHash)
	}

	w := doRequest(t, srv, http.MethodGet, "/v1/certificates/"+cert.CertificateID, nil, tenantHeaders("t-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	// another tenant cannot see it
	w = doRequest(t, srv, http.MethodGet, "/v1/certificates/"+cert.CertificateID, nil, tenantHeaders("t-2"))
	if w.Code != http.StatusNotFound {
		t.Errorf("cross-tenant get status = %d, want 404", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/v1/certificates", nil, tenantHeaders("t-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listed []domain.Certificate
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("listed = %d certificates, want 1", len(listed))
	}
}

func TestIssueRequiresTenantHeader(t *testing.T) {
	srv := newTestServer(t, config.Config{})

	w := doRequest(t, srv, http.MethodPost, "/v1/certificates:issue", gin.H{"content_base64": "aGk="}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.Code != "TENANT_REQUIRED" {
		t.Errorf("code = %q, want TENANT_REQUIRED", resp.Code)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	cert := issueOverHTTP(t, srv, "t-1", "content")

	w := doRequest(t, srv, http.MethodPost, "/v1/certificates:verify", gin.H{"certificate": cert}, tenantHeaders("t-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body %s", w.Code, w.Body.String())
	}
	var result domain.VerificationResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected valid, failures: %v", result.Failures)
	}

	tampered := cert
	tampered.ContentHash = "1111111111111111111111111111111111111111111111111111111111111111"
	w = doRequest(t, srv, http.MethodPost, "/v1/certificates:verify", gin.H{"certificate": tampered}, tenantHeaders("t-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("verify tampered status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Valid {
		t.Error("tampered certificate reported valid")
	}

	// certificate from another tenant looks like unknown material
	w = doRequest(t, srv, http.MethodPost, "/v1/certificates:verify", gin.H{"certificate": cert}, tenantHeaders("t-2"))
	if w.Code != http.StatusNotFound {
		t.Errorf("cross-tenant verify status = %d, want 404", w.Code)
	}
}

func TestChainVerifyEndpoint(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	issueOverHTTP(t, srv, "t-1", "one")
	issueOverHTTP(t, srv, "t-1", "two")

	w := doRequest(t, srv, http.MethodGet, "/v1/chain/verify", nil, tenantHeaders("t-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var result domain.ChainVerificationResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Valid || len(result.Certificates) != 2 {
		t.Errorf("result = %+v", result)
	}
}

func TestKeyRotationEndpoints(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	cert := issueOverHTTP(t, srv, "t-1", "before")

	w := doRequest(t, srv, http.MethodPost, "/v1/keys:rotate", nil, tenantHeaders("t-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("rotate status = %d, body %s", w.Code, w.Body.String())
	}
	var rotated keyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &rotated); err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if rotated.KID == cert.Signature.KeyID {
		t.Error("rotation returned the old key")
	}

	w = doRequest(t, srv, http.MethodGet, "/v1/keys/active", nil, tenantHeaders("t-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("active key status = %d", w.Code)
	}
	var active keyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &active); err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if active.KID != rotated.KID {
		t.Errorf("active kid = %q, want %q", active.KID, rotated.KID)
	}

	// certificates signed before the rotation still verify
	w = doRequest(t, srv, http.MethodPost, "/v1/certificates:verify", gin.H{"certificate": cert}, tenantHeaders("t-1"))
	var result domain.VerificationResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Valid {
		t.Errorf("pre-rotation certificate invalid: %v", result.Failures)
	}
}

func TestAuditEndpoints(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	issueOverHTTP(t, srv, "t-1", "audited")

	w := doRequest(t, srv, http.MethodGet, "/v1/audit/events", nil, tenantHeaders("t-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("events status = %d", w.Code)
	}
	var events []auditEventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 1 || events[0].Action != string(domain.AuditActionCertificateIssued) {
		t.Fatalf("events = %+v", events)
	}

	w = doRequest(t, srv, http.MethodGet, "/v1/audit/verify", nil, tenantHeaders("t-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d", w.Code)
	}
	var result chainVerifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Valid {
		t.Errorf("audit chain invalid: %s", result.Error)
	}
}

func TestAnchorEndpointsRequireAdmin(t *testing.T) {
	srv := newTestServer(t, config.Config{AdminAPIKey: "s3cret"})
	issueOverHTTP(t, srv, "t-1", "anchored")

	w := doRequest(t, srv, http.MethodPost, "/v1/anchors/run", nil, tenantHeaders("t-1"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anchor without admin key status = %d, want 401", w.Code)
	}

	headers := tenantHeaders("t-1")
	headers["X-Admin-Key"] = "s3cret"
	start := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	end := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	w = doRequest(t, srv, http.MethodPost, "/v1/anchors/run?period_start="+start+"&period_end="+end, nil, headers)
	if w.Code != http.StatusOK {
		t.Fatalf("anchor status = %d, body %s", w.Code, w.Body.String())
	}
	var anchor anchorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &anchor); err != nil {
		t.Fatalf("decode anchor: %v", err)
	}
	if anchor.EventCount != 1 {
		t.Errorf("event_count = %d, want 1", anchor.EventCount)
	}

	w = doRequest(t, srv, http.MethodGet, "/v1/anchors", nil, tenantHeaders("t-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("list anchors status = %d", w.Code)
	}
	var anchors []anchorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &anchors); err != nil {
		t.Fatalf("decode anchors: %v", err)
	}
	if len(anchors) != 1 {
		t.Errorf("anchors = %d, want 1", len(anchors))
	}
}

func TestPurgeTenantEndpoint(t *testing.T) {
	srv := newTestServer(t, config.Config{AdminAPIKey: "s3cret"})
	issueOverHTTP(t, srv, "t-1", "doomed")

	w := doRequest(t, srv, http.MethodDelete, "/v1/tenants/t-1", nil, map[string]string{"X-Admin-Key": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("purge with wrong key status = %d, want 401", w.Code)
	}

	w = doRequest(t, srv, http.MethodDelete, "/v1/tenants/t-1", nil, map[string]string{"X-Admin-Key": "s3cret"})
	if w.Code != http.StatusOK {
		t.Fatalf("purge status = %d, body %s", w.Code, w.Body.String())
	}

	w = doRequest(t, srv, http.MethodGet, "/v1/keys/active", nil, tenantHeaders("t-1"))
	if w.Code != http.StatusNotFound {
		t.Errorf("active key after purge status = %d, want 404", w.Code)
	}

	// the audit ledger survives, with the purge recorded
	w = doRequest(t, srv, http.MethodGet, "/v1/audit/events", nil, tenantHeaders("t-1"))
	var events []auditEventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 2 || events[1].Action != string(domain.AuditActionTenantPurged) {
		t.Errorf("events after purge = %+v", events)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	srv := newTestServer(t, config.Config{RateLimitRPS: 1, RateLimitWindow: time.Minute})

	issueOverHTTP(t, srv, "t-1", "first")
	w := doRequest(t, srv, http.MethodPost, "/v1/certificates:issue", gin.H{
		"content_base64": base64.StdEncoding.EncodeToString([]byte("second")),
	}, tenantHeaders("t-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// other tenants are unaffected
	issueOverHTTP(t, srv, "t-2", "first")
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, config.Config{})

	w := doRequest(t, srv, http.MethodPost, "/v1/certificates:mint", nil, tenantHeaders("t-1"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
