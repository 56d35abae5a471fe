// Copyright 2025 Certen Protocol
//
// Reference ML verifier client over a remote JSON endpoint.

package mlclient

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/certen/ml-consensus/internal/types"
)

// HTTPConfig configures an HTTPVerifier.
type HTTPConfig struct {
	// BaseURL is the base address of the ML verification service, e.g.
	// "http://127.0.0.1:8080".
	BaseURL string
	// Timeout bounds a single verify call. No retries are performed by
	// this client; retry policy is a future, host-level concern.
	Timeout time.Duration
}

// DefaultHTTPConfig returns the documented defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{BaseURL: "http://127.0.0.1:8080", Timeout: 2 * time.Second}
}

// HTTPVerifier is the reference Verifier implementation: it POSTs to
// {base_url}/verify and maps transport/parse/status failures onto
// VerifierError's three-way taxonomy.
type HTTPVerifier struct {
	endpoint   string
	httpClient *http.Client
	logger     *log.Logger
}

// NewHTTPVerifier builds an HTTPVerifier from cfg. A single http.Client
// with a fixed Timeout bounds every call.
func NewHTTPVerifier(cfg HTTPConfig) *HTTPVerifier {
	base := strings.TrimRight(cfg.BaseURL, "/")
	endpoint := base + "/" + strings.TrimLeft("verify", "/")
	return &HTTPVerifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.New(os.Stdout, "[MLVerifier] ", log.LstdFlags|log.Lmicroseconds),
	}
}

type verifyRequest struct {
	Aid          string           `json:"aid"`
	SchemeID     string           `json:"scheme_id"`
	EvidenceHash string           `json:"evidence_hash"`
	WmProfile    wmProfileRequest `json:"wm_profile"`
}

type wmProfileRequest struct {
	TauInput      float32 `json:"tau_input"`
	TauFeat       float32 `json:"tau_feat"`
	LogitBandLow  float32 `json:"logit_band_low"`
	LogitBandHigh float32 `json:"logit_band_high"`
}

type verifyResponse struct {
	Ok         bool     `json:"ok"`
	TriggerAcc *float32 `json:"trigger_acc,omitempty"`
	FeatDist   *float32 `json:"feat_dist,omitempty"`
	LogitStat  *float32 `json:"logit_stat,omitempty"`
	LatencyMs  *uint64  `json:"latency_ms,omitempty"`
}

// Verify implements Verifier.
func (v *HTTPVerifier) Verify(aid types.Aid, evidence types.EvidenceRef) (Verdict, error) {
	reqID := uuid.New()

	reqBody := verifyRequest{
		Aid:          hex.EncodeToString(aid.Bytes()),
		SchemeID:     evidence.SchemeID,
		EvidenceHash: hex.EncodeToString(evidence.EvidenceHash.Bytes()),
		WmProfile: wmProfileRequest{
			TauInput:      evidence.WmProfile.TauInput,
			TauFeat:       evidence.WmProfile.TauFeat,
			LogitBandLow:  evidence.WmProfile.LogitBandLow,
			LogitBandHigh: evidence.WmProfile.LogitBandHigh,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Verdict{}, newError(KindProtocol, "failed to marshal verify request", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, v.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Verdict{}, newError(KindTransport, "failed to build verify request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", reqID.String())

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return Verdict{}, newError(KindTransport, fmt.Sprintf("request %s failed", reqID), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Verdict{}, newError(KindTransport, fmt.Sprintf("request %s: reading response body", reqID), err)
	}

	if resp.StatusCode >= 400 {
		return Verdict{}, newError(KindService, fmt.Sprintf("request %s: verifier returned status %d", reqID, resp.StatusCode), nil)
	}

	var respBody verifyResponse
	if err := json.Unmarshal(body, &respBody); err != nil {
		return Verdict{}, newError(KindProtocol, fmt.Sprintf("request %s: malformed verify response", reqID), err)
	}

	v.logger.Printf("aid=%s request=%s ok=%v", aid.Hex(), reqID, respBody.Ok)

	return Verdict{
		Ok:         respBody.Ok,
		TriggerAcc: respBody.TriggerAcc,
		FeatDist:   respBody.FeatDist,
		LogitStat:  respBody.LogitStat,
		LatencyMs:  respBody.LatencyMs,
	}, nil
}
