// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/llm"
	"github.com/pdiddy/trialmatch/internal/registry"
	"github.com/pdiddy/trialmatch/internal/search"
	"github.com/pdiddy/trialmatch/pkg/types"
)

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// searchHandler handles GET /api/trials/search. Query parameters: keyword,
// phase, status, location, distance, pageSize, pageToken, enhanced. The
// results are ranked when X-User-ID names a stored profile.
func (s *Server) searchHandler(c *gin.Context) {
	if notConfigured(c, s.Search == nil, "search") {
		return
	}

	criteria := types.SearchCriteria{
		Keyword:   c.Query("keyword"),
		Phase:     c.Query("phase"),
		Status:    c.Query("status"),
		Location:  c.Query("location"),
		Distance:  c.Query("distance"),
		PageToken: c.Query("pageToken"),
	}
	if v := c.Query("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendErr(c, errs.Invalid("pageSize", "%q is not a non-negative integer", v))
			return
		}
		criteria.PageSize = n
	}
	var enhanced bool
	if v := c.Query("enhanced"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			sendErr(c, errs.Invalid("enhanced", "%q is not a boolean", v))
			return
		}
		enhanced = b
	}

	out, err := s.Search.Search(c.Request.Context(), search.Request{
		Criteria: criteria,
		Enhanced: enhanced,
		UserID:   userID(c),
	})
	if err != nil {
		sendErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// trialHandler handles GET /api/trials/:id.
func (s *Server) trialHandler(c *gin.Context) {
	if notConfigured(c, s.Trials == nil, "registry") {
		return
	}
	study, err := s.Trials.GetStudy(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendErr(c, err)
		return
	}
	c.JSON(http.StatusOK, registry.Project(study))
}

// geocodeHandler handles GET /api/geocode?location=.
func (s *Server) geocodeHandler(c *gin.Context) {
	if notConfigured(c, s.Geocoder == nil, "geocoder") {
		return
	}
	pt, err := s.Geocoder.Geocode(c.Request.Context(), c.Query("location"))
	if err != nil {
		sendErr(c, err)
		return
	}
	c.JSON(http.StatusOK, pt)
}

type enhanceRequest struct {
	Query   string `json:"query"`
	Profile string `json:"profile"`
}

// enhanceHandler handles POST /api/ai/enhance-query. The enhancer never
// fails; the original query comes back when the model is unavailable.
func (s *Server) enhanceHandler(c *gin.Context) {
	if notConfigured(c, s.Enhancer == nil, "query enhancer") {
		return
	}
	var req enhanceRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		sendErr(c, errs.Invalid("query", "must not be empty"))
		return
	}
	enhanced := s.Enhancer.Enhance(c.Request.Context(), req.Query, req.Profile)
	c.JSON(http.StatusOK, gin.H{"enhancedQuery": enhanced})
}

type rankRequest struct {
	Profile *types.UserProfile  `json:"profile"`
	Trials  []types.TrialRecord `json:"trials"`
}

// rankHandler handles POST /api/ai/rank-trial. Without a profile in the
// body the stored profile of X-User-ID is used.
func (s *Server) rankHandler(c *gin.Context) {
	if notConfigured(c, s.Ranker == nil, "ranker") {
		return
	}
	var req rankRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Trials) == 0 {
		sendErr(c, errs.Invalid("trials", "must not be empty"))
		return
	}

	profile := req.Profile
	if profile == nil {
		if userID(c) == "" || s.Profiles == nil {
			sendErr(c, errs.Invalid("profile", "profile is required"))
			return
		}
		stored, err := s.Profiles.Get(c.Request.Context(), userID(c))
		if err != nil {
			sendErr(c, err)
			return
		}
		profile = &stored
	}

	ranked, err := s.Ranker.Rank(c.Request.Context(), *profile, req.Trials)
	if err != nil {
		sendErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ranked)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Text is accepted as an alias of Content.
	Text string `json:"text"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

// chatHandler handles POST /api/ai/chat.
func (s *Server) chatHandler(c *gin.Context) {
	if notConfigured(c, s.Chat == nil, "assistant") {
		return
	}
	var req chatRequest
	if !bindJSON(c, &req) {
		return
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		content := m.Content
		if content == "" {
			content = m.Text
		}
		role := m.Role
		if role == "" || role == "bot" {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: content})
	}

	reply, err := s.Chat.Reply(c.Request.Context(), messages)
	if err != nil {
		sendErr(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

type parseDocumentRequest struct {
	FileURL string `json:"fileUrl"`

	// Apply merges the parsed entities into the caller's profile.
	Apply bool `json:"apply"`
}

type parseDocumentResponse struct {
	Document types.ParsedDocument `json:"document"`
	Profile  *types.UserProfile   `json:"profile,omitempty"`
}

// parseDocumentHandler handles POST /api/ai/parse-document. Only http(s)
// URLs are accepted; local paths are a CLI feature.
func (s *Server) parseDocumentHandler(c *gin.Context) {
	if notConfigured(c, s.Documents == nil, "document parser") {
		return
	}
	var req parseDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	u := strings.TrimSpace(req.FileURL)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		sendErr(c, errs.Invalid("fileUrl", "must be an http or https URL"))
		return
	}
	if req.Apply {
		if userID(c) == "" {
			SendError(c, http.StatusUnauthorized, ErrorCodeUnauthorized, UserIDHeader+" header is required to apply a document")
			return
		}
		if notConfigured(c, s.Profiles == nil, "profile store") {
			return
		}
	}

	doc, err := s.Documents.Parse(c.Request.Context(), u)
	if err != nil {
		sendErr(c, err)
		return
	}
	resp := parseDocumentResponse{Document: doc}
	if req.Apply {
		p, err := s.Profiles.ApplyDocument(c.Request.Context(), userID(c), doc, u)
		if err != nil {
			sendErr(c, err)
			return
		}
		resp.Profile = &p
	}
	c.JSON(http.StatusOK, resp)
}

// getProfileHandler handles GET /api/profile.
func (s *Server) getProfileHandler(c *gin.Context) {
	if notConfigured(c, s.Profiles == nil, "profile store") {
		return
	}
	p, err := s.Profiles.Get(c.Request.Context(), userID(c))
	if err != nil {
		sendErr(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// saveProfileHandler handles POST /api/profile, replacing the caller's
// profile. The user id always comes from X-User-ID.
func (s *Server) saveProfileHandler(c *gin.Context) {
	if notConfigured(c, s.Profiles == nil, "profile store") {
		return
	}
	var p types.UserProfile
	if !bindJSON(c, &p) {
		return
	}
	p.UserID = userID(c)
	saved, err := s.Profiles.Upsert(c.Request.Context(), p)
	if err != nil {
		sendErr(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}
