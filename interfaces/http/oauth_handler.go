package http

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"insight-hub/domain/model"
	"insight-hub/infrastructure/configuration"
	"insight-hub/infrastructure/logger"
	"insight-hub/usecase"
)

type IOAuthHandler interface {
	GetAuthURL(ctx *gin.Context)
	Callback(ctx *gin.Context)
	Status(ctx *gin.Context)
	LinkIdentity(ctx *gin.Context)
	Disconnect(ctx *gin.Context)
}

type pendingAuth struct {
	platform model.Platform
	userID   string
	identity string
	expiry   time.Time
}

type oauthHandler struct {
	tokens  usecase.ITokenUsecase
	configs map[model.Platform]*oauth2.Config
	stateMu sync.Mutex
	states  map[string]pendingAuth
}

// NewOAuthHandler builds the connect-flow handler over the per-platform
// endpoint configs.
func NewOAuthHandler(tokens usecase.ITokenUsecase, cfg configuration.OAuth) IOAuthHandler {
	return &oauthHandler{
		tokens:  tokens,
		configs: cfg.PlatformConfigs(),
		states:  map[string]pendingAuth{},
	}
}

func randomState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (h *oauthHandler) platformConfig(c *gin.Context) (model.Platform, *oauth2.Config, bool) {
	platform, err := model.ParsePlatform(c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", nil, false
	}
	cfg := h.configs[platform]
	if cfg == nil || cfg.ClientID == "" || cfg.RedirectURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "oauth not configured for " + string(platform)})
		return "", nil, false
	}
	return platform, cfg, true
}

// GetAuthURL returns the provider consent URL for GET /api/oauth/:platform/url.
// An optional identity query pre-links the resulting credential to one
// provider account.
func (h *oauthHandler) GetAuthURL(c *gin.Context) {
	platform, cfg, ok := h.platformConfig(c)
	if !ok {
		return
	}

	state := randomState()
	h.stateMu.Lock()
	h.states[state] = pendingAuth{
		platform: platform,
		userID:   c.GetString("user_id"),
		identity: c.Query("identity"),
		expiry:   time.Now().Add(10 * time.Minute),
	}
	h.stateMu.Unlock()

	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	c.JSON(http.StatusOK, gin.H{"auth_url": url, "state": state})
}

// Callback handles the provider redirect, exchanges the code and persists
// the credential.
func (h *oauthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	h.stateMu.Lock()
	pending, ok := h.states[state]
	if ok && time.Now().After(pending.expiry) {
		ok = false
	}
	if ok {
		delete(h.states, state)
	}
	h.stateMu.Unlock()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state"})
		return
	}

	cfg := h.configs[pending.platform]
	token, err := cfg.Exchange(c.Request.Context(), code)
	if err != nil {
		logger.GetLogger().
			WithField("platform", pending.platform).
			WithField("error", err).
			Error("OAuth code exchange failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "token_exchange_failed"})
		return
	}

	pair := model.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scopes:       strings.Join(cfg.Scopes, " "),
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		pair.ExpiresAt = &expiry
	}

	var identity *string
	if pending.identity != "" {
		identity = &pending.identity
	}
	userID := pending.userID
	if userID == "" {
		userID = c.GetString("user_id")
	}
	if err := h.tokens.Save(c.Request.Context(), userID, pending.platform, pair, identity); err != nil {
		logger.GetLogger().WithField("error", err).Error("Credential save failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "credential_save_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"connected": true, "platform": pending.platform})
}

// Status lists the caller's connected platforms.
func (h *oauthHandler) Status(c *gin.Context) {
	userID := c.GetString("user_id")
	creds, err := h.tokens.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	connections := make([]gin.H, 0, len(creds))
	for _, cred := range creds {
		entry := gin.H{
			"platform":  cred.Platform,
			"scopes":    cred.Scopes,
			"updatedAt": cred.UpdatedAt,
		}
		if cred.IdentityRef != nil {
			entry["identity"] = *cred.IdentityRef
		}
		if cred.IdentityName != nil {
			entry["identityName"] = *cred.IdentityName
		}
		if cred.ExpiresAt != nil {
			entry["expiresAt"] = cred.ExpiresAt
		}
		connections = append(connections, entry)
	}
	c.JSON(http.StatusOK, gin.H{"connections": connections})
}

// LinkIdentity binds an existing credential to a specific provider account,
// POST /api/oauth/:platform/link-identity.
func (h *oauthHandler) LinkIdentity(c *gin.Context) {
	platform, err := model.ParsePlatform(c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body struct {
		Identity     string `json:"identity" binding:"required"`
		IdentityName string `json:"identityName"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity required"})
		return
	}

	userID := c.GetString("user_id")
	cred, err := h.tokens.GetCredential(c.Request.Context(), userID, platform, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if cred == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no credential to link"})
		return
	}

	pair := model.TokenPair{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cred.ExpiresAt,
		Scopes:       cred.Scopes,
	}
	if err := h.tokens.Save(c.Request.Context(), userID, platform, pair, &body.Identity); err != nil {
		logger.GetLogger().WithField("error", err).Error("Identity link failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "link_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"linked": true, "platform": platform, "identity": body.Identity})
}

// Disconnect removes a stored grant, DELETE /api/oauth/:platform.
func (h *oauthHandler) Disconnect(c *gin.Context) {
	platform, err := model.ParsePlatform(c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var identity *string
	if id := c.Query("identity"); id != "" {
		identity = &id
	}
	if err := h.tokens.Disconnect(c.Request.Context(), c.GetString("user_id"), platform, identity); err != nil {
		logger.GetLogger().WithField("error", err).Error("Disconnect failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "disconnect_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"disconnected": true, "platform": platform})
}
