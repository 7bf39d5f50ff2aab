package http

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"veritas/internal/domain"
	"veritas/internal/infra/crypto"
	"veritas/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type issueRequest struct {
	ContentBase64         string `json:"content_base64,omitempty"`
	ContentHash           string `json:"content_hash,omitempty"`
	PolicyID              string `json:"policy_id"`
	ExternalReferenceTime string `json:"external_reference_time,omitempty"`
}

type verifyRequest struct {
	Certificate domain.Certificate  `json:"certificate"`
	Predecessor *domain.Certificate `json:"predecessor,omitempty"`

	// PublicKeyPEM makes the check fully offline; when absent the key is
	// resolved from the registry by the certificate's key_id.
	PublicKeyPEM string `json:"public_key_pem,omitempty"`
}

type keyResponse struct {
	KID          string `json:"kid"`
	Alg          string `json:"alg"`
	Status       string `json:"status"`
	PublicKeyPEM string `json:"public_key_pem"`
	CreatedAt    string `json:"created_at"`
}

type auditEventResponse struct {
	EventID       string `json:"event_id"`
	TenantID      string `json:"tenant_id"`
	Seq           int64  `json:"seq"`
	OccurredAt    string `json:"occurred_at"`
	ActorIDHash   string `json:"actor_id_hash,omitempty"`
	ObjectType    string `json:"object_type"`
	ObjectID      string `json:"object_id"`
	Action        string `json:"action"`
	Payload       any    `json:"payload"`
	PayloadHash   string `json:"payload_hash"`
	PrevEventHash string `json:"prev_event_hash"`
	EventHash     string `json:"event_hash"`
}

type anchorResponse struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Root        string `json:"root"`
	Method      string `json:"method"`
	EventCount  int64  `json:"event_count"`
	AnchoredAt  string `json:"anchored_at"`
}

type chainVerifyResponse struct {
	Valid  bool   `json:"valid"`
	Length int    `json:"length"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleIssue(c *gin.Context) {
	tenantID, ok := s.tenantFrom(c)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, "certificates:issue", tenantID) {
		return
	}
	if s.issuer == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	issueReq := usecase.IssueRequest{
		TenantID:    tenantID,
		ContentHash: req.ContentHash,
		PolicyID:    req.PolicyID,
	}
	if req.ContentBase64 != "" {
		content, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_CONTENT_ENCODING", "content_base64 is not valid base64")
			return
		}
		issueReq.Content = content
	}
	if req.ExternalReferenceTime != "" {
		ref, err := time.Parse(time.RFC3339, req.ExternalReferenceTime)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_CERTIFICATE", "external_reference_time must be RFC 3339")
			return
		}
		refUTC := ref.UTC()
		issueReq.ExternalReferenceTime = &refUTC
	}

	cert, err := s.issuer.Issue(c.Request.Context(), issueReq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (s *Server) handleVerify(c *gin.Context) {
	tenantID, ok := s.tenantFrom(c)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, "certificates:verify", tenantID) {
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.Certificate.TenantID != tenantID {
		// cross-tenant verification is indistinguishable from unknown material
		writeError(c, domain.ErrNotFound)
		return
	}

	var result domain.VerificationResult
	if req.PublicKeyPEM != "" {
		pubDER, err := crypto.DecodePublicKeyPEM([]byte(req.PublicKeyPEM))
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_PUBLIC_KEY", "public_key_pem is not a valid key")
			return
		}
		result = usecase.VerifyCertificate(req.Certificate, req.Predecessor, pubDER)
	} else {
		if s.verifier == nil {
			writeError(c, domain.ErrNotFound)
			return
		}
		var err error
		result, err = s.verifier.Verify(c.Request.Context(), req.Certificate, req.Predecessor)
		if err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetCertificate(c *gin.Context) {
	tenantID, ok := s.tenantFrom(c)
	if !ok {
		return
	}
	if s.certs == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	cert, err := s.certs.GetByID(c.Request.Context(), tenantID, c.Param("certificate_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (s *Server) handleListCertificates(c *gin.Context) {
	tenantID, ok := s.tenantFrom(c)
	if !ok {
		return
	}
	if s.certs == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	certs, err := s.certs.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, certs)
}

func (s *Server) handleVerifyChain(c *gin.Context) {
	tenantID, ok := s.tenantFrom(c)
	if !ok {
		return
	}
	if s.certs == nil || s.keys == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	certs, err := s.certs.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	result := usecase.VerifyTenantChain(certs, func(kid string) []byte {
		key, err := s.keys.GetByKID(c.Request.Context(), tenantID, kid)
		if err != nil {
			return nil
		}
		return key.PublicKey
	})
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRotateKey(c *gin.Context) {
	tenantID, ok := s.tenantFrom(c)
	if !ok {
		return
	}
	if s.rotator == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	key, err := s.rotator.Rotate(c.Request.Context(), tenantID, c.GetHeader("X-Actor-ID"))
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := buildKeyResponse(key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleActiveKey(c *gin.Context) {
	tenantID, ok := s.tenantFrom(c)
	if !ok {
		return
	}
	if s.keys == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	key, err := s.keys.GetActive(c.Request.Context(), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := buildKeyResponse(key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleListAuditEvents(c *gin.Context) {
	tenantID, ok := s.tenantFrom(c)
	if !ok {
		return
	}
	if s.events == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var (
		events []domain.AuditEvent
		err    error
	)
	fromSeq, hasFrom := queryInt(c, "from_seq")
	toSeq, hasTo := queryInt(c, "to_seq")
	if hasFrom && hasTo {
		events, err = s.events.ListRange(c.Request.Context(), tenantID, fromSeq, toSeq)
	} else {
		events, err = s.events.ListByTenant(c.Request.Context(), tenantID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]auditEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, buildAuditEventResponse(event))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleVerifyAuditChain(c *gin.Context) {
	tenantID, ok := s.tenantFrom(c)
	if !ok {
		return
	}
	if s.events == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var err error
	fromSeq, hasFrom := queryInt(c, "from_seq")
	toSeq, hasTo := queryInt(c, "to_seq")
	if hasFrom && hasTo {
		err = usecase.VerifyTenantAuditChainRange(c.Request.Context(), s.events, tenantID, fromSeq, toSeq)
	} else {
		err = usecase.VerifyTenantAuditChain(c.Request.Context(), s.events, tenantID)
	}
	out := chainVerifyResponse{Valid: err == nil}
	if err != nil {
		out.Error = err.Error()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleListAnchors(c *gin.Context) {
	tenantID, ok := s.tenantFrom(c)
	if !ok {
		return
	}
	if s.anchors == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	anchors, err := s.anchors.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]anchorResponse, 0, len(anchors))
	for _, item := range anchors {
		out = append(out, buildAnchorResponse(item))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleRunAnchor(c *gin.Context) {
	tenantID, ok := s.tenantFrom(c)
	if !ok {
		return
	}
	if !s.requireAdmin(c) {
		return
	}
	if s.anchorer == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	periodEnd := time.Now().UTC().Truncate(time.Second)
	periodStart := periodEnd.Add(-s.cfg.AnchorPeriod)
	if raw := c.Query("period_start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_PERIOD", "period_start must be RFC 3339")
			return
		}
		periodStart = parsed.UTC()
	}
	if raw := c.Query("period_end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_PERIOD", "period_end must be RFC 3339")
			return
		}
		periodEnd = parsed.UTC()
	}
	out, err := s.anchorer.Anchor(c.Request.Context(), tenantID, periodStart, periodEnd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildAnchorResponse(out))
}

func (s *Server) handlePurgeTenant(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.purge == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if err := s.purge.Purge(c.Request.Context(), c.Param("tenant_id"), c.GetHeader("X-Actor-ID")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": true})
}

// tenantFrom resolves the caller's tenant from the authentication layer. The
// tenant is never read from a request body.
func (s *Server) tenantFrom(c *gin.Context) (string, bool) {
	tenantID := c.GetHeader("X-Tenant-ID")
	if tenantID == "" {
		writeError(c, domain.ErrTenantRequired)
		return "", false
	}
	return tenantID, true
}

func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return false
	}
	key := c.GetHeader("X-Admin-Key")
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func buildKeyResponse(key domain.SigningKey) (keyResponse, error) {
	pem, err := crypto.EncodePublicKeyPEM(key.PublicKey)
	if err != nil {
		return keyResponse{}, err
	}
	return keyResponse{
		KID:          key.KID,
		Alg:          key.Alg,
		Status:       string(key.Status),
		PublicKeyPEM: string(pem),
		CreatedAt:    key.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func buildAuditEventResponse(event domain.AuditEvent) auditEventResponse {
	return auditEventResponse{
		EventID:       event.EventID,
		TenantID:      event.TenantID,
		Seq:           event.Seq,
		OccurredAt:    event.OccurredAt.UTC().Format(time.RFC3339),
		ActorIDHash:   event.ActorIDHash,
		ObjectType:    string(event.ObjectType),
		ObjectID:      event.ObjectID,
		Action:        string(event.Action),
		Payload:       event.Payload,
		PayloadHash:   event.PayloadHash,
		PrevEventHash: event.PrevEventHash,
		EventHash:     event.EventHash,
	}
}

func buildAnchorResponse(item domain.LedgerAnchor) anchorResponse {
	return anchorResponse{
		ID:          item.ID,
		TenantID:    item.TenantID,
		PeriodStart: item.PeriodStart.UTC().Format(time.RFC3339),
		PeriodEnd:   item.PeriodEnd.UTC().Format(time.RFC3339),
		Root:        item.Root,
		Method:      item.Method,
		EventCount:  item.EventCount,
		AnchoredAt:  item.AnchoredAt.UTC().Format(time.RFC3339),
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrTenantRequired):
		status, code = http.StatusBadRequest, "TENANT_REQUIRED"
	case errors.Is(err, domain.ErrInvalidCertificate):
		status, code = http.StatusBadRequest, "INVALID_CERTIFICATE"
	case errors.Is(err, domain.ErrCanonicalization):
		status, code = http.StatusBadRequest, "CANONICALIZATION_FAILED"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrReplayDetected):
		status, code = http.StatusConflict, "REPLAY_DETECTED"
	case errors.Is(err, domain.ErrChainConflict):
		status, code = http.StatusConflict, "CHAIN_CONFLICT"
	case errors.Is(err, domain.ErrKeyNotFound):
		status, code = http.StatusNotFound, "KEY_NOT_FOUND"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
