// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trialmatch/internal/chat"
	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/llm"
	"github.com/pdiddy/trialmatch/internal/registry"
	"github.com/pdiddy/trialmatch/internal/search"
	"github.com/pdiddy/trialmatch/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- fakes ---

type fakeSearcher struct {
	out search.Output
	err error
	got search.Request
}

func (f *fakeSearcher) Search(_ context.Context, req search.Request) (search.Output, error) {
	f.got = req
	return f.out, f.err
}

type fakeTrials map[string]registry.Study

func (f fakeTrials) GetStudy(_ context.Context, id string) (registry.Study, error) {
	s, ok := f[id]
	if !ok {
		return registry.Study{}, fmt.Errorf("%w: %s", errs.ErrTrialNotFound, id)
	}
	return s, nil
}

type fakeGeocoder struct{}

func (fakeGeocoder) Geocode(_ context.Context, location string) (types.GeoPoint, error) {
	switch location {
	case "":
		return types.GeoPoint{}, errs.Invalid("location", "must not be empty")
	case "Boston":
		return types.GeoPoint{Latitude: 42.36, Longitude: -71.06}, nil
	default:
		return types.GeoPoint{}, errs.ErrLocationNotFound
	}
}

type fakeEnhancer struct{}

func (fakeEnhancer) Enhance(_ context.Context, query, profile string) string {
	return query + " OR " + profile
}

type fakeRanker struct {
	profile types.UserProfile
	err     error
}

func (f *fakeRanker) Rank(_ context.Context, p types.UserProfile, trials []types.TrialRecord) ([]types.RankedTrial, error) {
	f.profile = p
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.RankedTrial, len(trials))
	for i, t := range trials {
		out[i] = types.RankedTrial{TrialRecord: t, RelevanceScore: 7, RelevanceExplanation: "good"}
	}
	return out, nil
}

type fakeAssistant struct {
	got []llm.Message
}

func (f *fakeAssistant) Reply(_ context.Context, messages []llm.Message) (chat.Reply, error) {
	f.got = messages
	if len(messages) == 0 {
		return chat.Reply{}, errs.Invalid("messages", "must not be empty")
	}
	return chat.Reply{Message: "hello", Topic: chat.TopicClinicalTrial}, nil
}

type fakeDocuments struct{}

func (fakeDocuments) Parse(_ context.Context, source string) (types.ParsedDocument, error) {
	if strings.HasSuffix(source, "bad.pdf") {
		return types.ParsedDocument{}, errs.Parse("document entities", nil)
	}
	return types.ParsedDocument{Conditions: "asthma"}, nil
}

type fakeProfiles map[string]types.UserProfile

func (f fakeProfiles) Get(_ context.Context, userID string) (types.UserProfile, error) {
	p, ok := f[userID]
	if !ok {
		return types.UserProfile{}, errs.ErrProfileNotFound
	}
	return p, nil
}

func (f fakeProfiles) Upsert(_ context.Context, p types.UserProfile) (types.UserProfile, error) {
	f[p.UserID] = p
	return p, nil
}

func (f fakeProfiles) ApplyDocument(_ context.Context, userID string, doc types.ParsedDocument, source string) (types.UserProfile, error) {
	p := f[userID]
	p.UserID = userID
	doc.MergeInto(&p, source)
	f[userID] = p
	return p, nil
}

// --- helpers ---

func newTestServer() (*Server, *fakeSearcher, *fakeRanker, fakeProfiles) {
	fs := &fakeSearcher{out: search.Output{Trials: []types.RankedTrial{{TrialRecord: types.TrialRecord{ID: "NCT00000001"}}}, Query: "asthma"}}
	fr := &fakeRanker{}
	fp := fakeProfiles{"u1": {UserID: "u1", Conditions: "asthma"}}
	s := &Server{
		Search: fs,
		Trials: fakeTrials{"NCT12345678": {ProtocolSection: &registry.ProtocolSection{
			IdentificationModule: &registry.IdentificationModule{NCTID: "NCT12345678", BriefTitle: "Asthma Study"},
		}}},
		Geocoder:  fakeGeocoder{},
		Enhancer:  fakeEnhancer{},
		Ranker:    fr,
		Chat:      &fakeAssistant{},
		Documents: fakeDocuments{},
		Profiles:  fp,
	}
	return s, fs, fr, fp
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var e APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

var asUser = map[string]string{UserIDHeader: "u1"}

// --- tests ---

func TestHealthAndMetrics(t *testing.T) {
	s, _, _, _ := newTestServer()
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(t, h, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trialmatch_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	s, _, _, _ := newTestServer()
	w := do(t, s.Handler(), http.MethodOptions, "/api/trials/search", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), UserIDHeader)
}

func TestSearchHandler(t *testing.T) {
	s, fs, _, _ := newTestServer()
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/api/trials/search?keyword=asthma&phase=PHASE2&status=RECRUITING&location=Boston&distance=50mi&pageSize=5&pageToken=abc&enhanced=true", nil, asUser)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, search.Request{
		Criteria: types.SearchCriteria{
			Keyword: "asthma", Phase: "PHASE2", Status: "RECRUITING",
			Location: "Boston", Distance: "50mi", PageSize: 5, PageToken: "abc",
		},
		Enhanced: true,
		UserID:   "u1",
	}, fs.got)

	var out search.Output
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "NCT00000001", out.Trials[0].ID)
}

func TestSearchHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{name: "bad page size", query: "pageSize=ten", wantStatus: http.StatusBadRequest, wantCode: ErrorCodeInvalidRequest},
		{name: "bad enhanced flag", query: "enhanced=maybe", wantStatus: http.StatusBadRequest, wantCode: ErrorCodeInvalidRequest},
		{name: "invalid distance", err: fmt.Errorf("search failed: %w", errs.Invalid("distance", "bad")), wantStatus: http.StatusBadRequest, wantCode: ErrorCodeInvalidRequest},
		{name: "location not found", err: fmt.Errorf("search failed: geo filter: %w", errs.ErrLocationNotFound), wantStatus: http.StatusNotFound, wantCode: ErrorCodeLocationNotFound},
		{name: "registry down", err: fmt.Errorf("search failed: %w", errs.Upstream("registry", 503, []byte("maintenance"))), wantStatus: http.StatusBadGateway, wantCode: ErrorCodeUpstream},
		{name: "malformed registry body", err: fmt.Errorf("search failed: %w", errs.Parse("studies", nil)), wantStatus: http.StatusBadGateway, wantCode: ErrorCodeParseFailure},
		{name: "timeout", err: fmt.Errorf("search failed: %w", context.DeadlineExceeded), wantStatus: http.StatusGatewayTimeout, wantCode: ErrorCodeTimeout},
		{name: "other", err: fmt.Errorf("search failed: boom"), wantStatus: http.StatusInternalServerError, wantCode: ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fs, _, _ := newTestServer()
			fs.err = tt.err
			w := do(t, s.Handler(), http.MethodGet, "/api/trials/search?"+tt.query, nil, map[string]string{"X-Request-ID": "req-1"})
			assert.Equal(t, tt.wantStatus, w.Code)
			e := decodeError(t, w)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, "req-1", e.RequestID)
			assert.False(t, e.Timestamp.IsZero())
		})
	}
}

func TestUpstreamErrorDetails(t *testing.T) {
	s, fs, _, _ := newTestServer()
	fs.err = fmt.Errorf("search failed: %w", errs.Upstream("registry", 503, []byte("maintenance")))
	e := decodeError(t, do(t, s.Handler(), http.MethodGet, "/api/trials/search", nil, nil))
	assert.Equal(t, []ErrorDetail{
		{Field: "status", Message: "503", Code: "registry"},
		{Field: "body", Message: "maintenance", Code: "registry"},
	}, e.Details)
}

func TestTrialHandler(t *testing.T) {
	s, _, _, _ := newTestServer()
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/api/trials/NCT12345678", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec types.TrialRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "Asthma Study", rec.Title)
	assert.Equal(t, "https://clinicaltrials.gov/study/NCT12345678", rec.URL)
	assert.Equal(t, types.FallbackStatus, rec.Status)

	w = do(t, h, http.MethodGet, "/api/trials/NCT99999999", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorCodeTrialNotFound, decodeError(t, w).Code)
}

func TestGeocodeHandler(t *testing.T) {
	s, _, _, _ := newTestServer()
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/api/geocode?location=Boston", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"lat":42.36,"lng":-71.06}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/geocode", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/geocode?location=Atlantis", nil, nil).Code)
}

func TestEnhanceHandler(t *testing.T) {
	s, _, _, _ := newTestServer()
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/api/ai/enhance-query", enhanceRequest{Query: "asthma", Profile: "wheezing"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"enhancedQuery":"asthma OR wheezing"}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/ai/enhance-query", enhanceRequest{}, nil).Code)

	w = do(t, h, http.MethodPost, "/api/ai/enhance-query", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorCodeInvalidJSON, decodeError(t, w).Code)
}

func TestRankHandler(t *testing.T) {
	trials := []types.TrialRecord{{ID: "NCT1"}, {ID: "NCT2"}}

	t.Run("profile in body", func(t *testing.T) {
		s, _, fr, _ := newTestServer()
		body := rankRequest{Profile: &types.UserProfile{Conditions: "migraine"}, Trials: trials}
		w := do(t, s.Handler(), http.MethodPost, "/api/ai/rank-trial", body, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var ranked []types.RankedTrial
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ranked))
		require.Len(t, ranked, 2)
		assert.Equal(t, "NCT2", ranked[1].ID)
		assert.Equal(t, 7, ranked[1].RelevanceScore)
		assert.Equal(t, "migraine", fr.profile.Conditions)
	})

	t.Run("stored profile", func(t *testing.T) {
		s, _, fr, _ := newTestServer()
		w := do(t, s.Handler(), http.MethodPost, "/api/ai/rank-trial", rankRequest{Trials: trials}, asUser)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "asthma", fr.profile.Conditions)
	})

	t.Run("errors", func(t *testing.T) {
		s, _, fr, _ := newTestServer()
		h := s.Handler()
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/ai/rank-trial", rankRequest{Trials: trials}, nil).Code)
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/ai/rank-trial", rankRequest{Profile: &types.UserProfile{}}, nil).Code)
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/ai/rank-trial", rankRequest{Trials: trials}, map[string]string{UserIDHeader: "nobody"}).Code)

		fr.err = fmt.Errorf("%w: all 2 ranking calls failed", errs.ErrUpstreamUnavailable)
		assert.Equal(t, http.StatusBadGateway, do(t, h, http.MethodPost, "/api/ai/rank-trial", rankRequest{Trials: trials}, asUser).Code)
	})
}

func TestChatHandler(t *testing.T) {
	s, _, _, _ := newTestServer()
	fa := s.Chat.(*fakeAssistant)
	h := s.Handler()

	body := `{"messages":[{"role":"user","text":"hi"},{"role":"bot","text":"hello"},{"role":"user","content":"trials?"}]}`
	w := do(t, h, http.MethodPost, "/api/ai/chat", body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"hello","topic":"clinical trial"}`, w.Body.String())
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: llm.RoleUser, Content: "trials?"},
	}, fa.got)

	w = do(t, h, http.MethodPost, "/api/ai/chat", `{"messages":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseDocumentHandler(t *testing.T) {
	s, _, _, fp := newTestServer()
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/api/ai/parse-document", parseDocumentRequest{FileURL: "https://example.org/visit.pdf"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"document":{"conditions":"asthma","treatments":"","outcomes":"","side_effects":"","discontinuation_reasons":""}}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/ai/parse-document", parseDocumentRequest{FileURL: "/etc/passwd"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/ai/parse-document", parseDocumentRequest{FileURL: "https://example.org/visit.pdf", Apply: true}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodPost, "/api/ai/parse-document", parseDocumentRequest{FileURL: "https://example.org/bad.pdf"}, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, ErrorCodeParseFailure, decodeError(t, w).Code)

	w = do(t, h, http.MethodPost, "/api/ai/parse-document", parseDocumentRequest{FileURL: "https://example.org/v2.pdf", Apply: true}, map[string]string{UserIDHeader: "u2"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp parseDocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Profile)
	assert.Equal(t, "asthma", fp["u2"].Conditions)
	assert.Equal(t, []string{"https://example.org/v2.pdf"}, fp["u2"].Documents)
}

func TestProfileHandlers(t *testing.T) {
	s, _, _, fp := newTestServer()
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/api/profile", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrorCodeUnauthorized, decodeError(t, w).Code)

	w = do(t, h, http.MethodGet, "/api/profile", nil, asUser)
	require.Equal(t, http.StatusOK, w.Code)
	var p types.UserProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "asthma", p.Conditions)

	w = do(t, h, http.MethodGet, "/api/profile", nil, map[string]string{UserIDHeader: "u3"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := types.UserProfile{UserID: "spoofed", Conditions: "eczema"}
	w = do(t, h, http.MethodPost, "/api/profile", body, map[string]string{UserIDHeader: "u3"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "eczema", fp["u3"].Conditions)
	_, spoofed := fp["spoofed"]
	assert.False(t, spoofed, "the user id comes from the header")
}

func TestRequestSizeLimit(t *testing.T) {
	s, _, _, _ := newTestServer()
	s.MaxBodyBytes = 64
	body := enhanceRequest{Query: strings.Repeat("a", 200)}
	w := do(t, s.Handler(), http.MethodPost, "/api/ai/enhance-query", body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, ErrorCodeBodyTooLarge, decodeError(t, w).Code)
}

func TestNotConfigured(t *testing.T) {
	h := (&Server{}).Handler()
	for _, path := range []string{"/api/trials/search", "/api/trials/NCT12345678", "/api/geocode?location=x"} {
		assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, path, nil, nil).Code, path)
	}
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/profile", nil, asUser).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/nope", nil, nil).Code)
}
