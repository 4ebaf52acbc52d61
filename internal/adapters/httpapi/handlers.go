package httpapi

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/phishguard/phishguard/internal/adapters/oauth"
	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

const (
	defaultLatestLimit = 20
	maxLatestLimit     = 100
)

type scanResponse struct {
	Scanned          int               `json:"scanned"`
	PhishingDetected int               `json:"phishing_detected"`
	Emails           []core.ScanResult `json:"emails"`
}

type predictRequest struct {
	Text string `json:"text"`
}

type predictResponse struct {
	Score float64    `json:"score"`
	Label core.Label `json:"label"`
}

func (s *Server) handleScan(c *gin.Context) {
	var req core.ScanRequest
	// An empty body means defaults
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	outcome, err := s.service.Scan(c.Request.Context(), principalFrom(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	emails := outcome.Results
	if emails == nil {
		emails = []core.ScanResult{}
	}
	c.JSON(http.StatusOK, scanResponse{
		Scanned:          outcome.Scanned,
		PhishingDetected: outcome.Flagged,
		Emails:           emails,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.service.Stats(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleLatest(c *gin.Context) {
	limit := defaultLatestLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = min(n, maxLatestLimit)
	}

	results, err := s.service.Latest(c.Request.Context(), principalFrom(c).ID, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if results == nil {
		results = []core.ScanResult{}
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	score, label, err := s.service.Predict(c.Request.Context(), req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, predictResponse{Score: score, Label: label})
}

func (s *Server) handleGoogleConnect(c *gin.Context) {
	authURL, state, err := s.connector.AuthURL(principalFrom(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": authURL, "state": state})
}

func (s *Server) handleGoogleCallback(c *gin.Context) {
	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code or state"})
		return
	}

	principalID, err := s.connector.Complete(c.Request.Context(), code, state)
	if err != nil {
		if errors.Is(err, oauth.ErrInvalidState) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired state"})
			return
		}
		if errors.Is(err, core.ErrPersistence) {
			s.fail(c, err)
			return
		}
		s.logger.Error("OAuth callback failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not complete Gmail connection"})
		return
	}

	s.logger.Info("Gmail connected", zap.String("principal_id", principalID))
	c.Redirect(http.StatusFound, connectedURL(s.frontendURL))
}

func connectedURL(frontendURL string) string {
	u, err := url.Parse(frontendURL)
	if err != nil {
		return frontendURL + "?gmail_connected=1"
	}
	q := u.Query()
	q.Set("gmail_connected", "1")
	u.RawQuery = q.Encode()
	return u.String()
}
