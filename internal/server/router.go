package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hdnotes/hdnotes/backend/internal/auth"
	"github.com/hdnotes/hdnotes/backend/internal/notes"
	"github.com/hdnotes/hdnotes/backend/internal/otp"
	"github.com/hdnotes/hdnotes/backend/internal/users"
)

const (
	userIDContextKey    = "hdnotes_user_id"
	userEmailContextKey = "hdnotes_user_email"

	msgInvalidOrExpiredOTP = "Invalid or expired OTP"
	msgInternalError       = "Internal server error"
	msgUnauthorized        = "Unauthorized"
)

var (
	errMissingGoogleVerifier   = errors.New("google verifier dependency required")
	errMissingOTPService       = errors.New("otp service dependency required")
	errMissingSessionIssuer    = errors.New("session issuer dependency required")
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingUsersService     = errors.New("users service dependency required")
	errMissingNotesService     = errors.New("notes service dependency required")
)

// GoogleVerifier validates an externally supplied Google ID token.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

// OTPService issues and consumes one-time passcodes.
type OTPService interface {
	Issue(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
}

// Dependencies wires the services the router dispatches to.
type Dependencies struct {
	GoogleVerifier   GoogleVerifier
	OTPService       OTPService
	SessionIssuer    *auth.SessionIssuer
	SessionValidator *auth.SessionValidator
	UsersService     *users.Service
	NotesService     *notes.Service
	CORSOrigin       string
	Logger           *zap.Logger
}

// NewHTTPHandler builds the gin router serving the auth and notes endpoints.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.GoogleVerifier == nil {
		return nil, errMissingGoogleVerifier
	}
	if deps.OTPService == nil {
		return nil, errMissingOTPService
	}
	if deps.SessionIssuer == nil {
		return nil, errMissingSessionIssuer
	}
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.NotesService == nil {
		return nil, errMissingNotesService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	corsOrigin := strings.TrimSpace(deps.CORSOrigin)
	if corsOrigin == "" {
		corsOrigin = "http://localhost:8080"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier:  deps.GoogleVerifier,
		otp:       deps.OTPService,
		sessions:  deps.SessionIssuer,
		validator: deps.SessionValidator,
		users:     deps.UsersService,
		notes:     deps.NotesService,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)

	authGroup := router.Group("/auth")
	authGroup.POST("/send-otp", handler.handleSendOTP)
	authGroup.POST("/verify-otp", handler.handleVerifyOTP)
	authGroup.POST("/google", handler.handleGoogleAuth)
	authGroup.POST("/logout", handler.handleLogout)
	authGroup.GET("/me", handler.requireSession, handler.handleMe)

	notesGroup := router.Group("/notes")
	notesGroup.Use(handler.requireSession)
	notesGroup.GET("", handler.handleListNotes)
	notesGroup.POST("", handler.handleCreateNote)
	notesGroup.GET("/:id", handler.handleGetNote)
	notesGroup.PUT("/:id", handler.handleUpdateNote)
	notesGroup.DELETE("/:id", handler.handleDeleteNote)

	return router, nil
}

type httpHandler struct {
	verifier  GoogleVerifier
	otp       OTPService
	sessions  *auth.SessionIssuer
	validator *auth.SessionValidator
	users     *users.Service
	notes     *notes.Service
	logger    *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

func (h *httpHandler) handleSendOTP(c *gin.Context) {
	var request sendOTPRequest
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing email field"})
		return
	}

	if err := h.otp.Issue(c.Request.Context(), request.Email); err != nil {
		if errors.Is(err, otp.ErrInvalidEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing email field"})
			return
		}
		h.logger.Error("otp issuance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (h *httpHandler) handleVerifyOTP(c *gin.Context) {
	var request verifyOTPRequest
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.Email) == "" || strings.TrimSpace(request.OTP) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing email or OTP"})
		return
	}

	if err := h.otp.Verify(c.Request.Context(), request.Email, request.OTP); err != nil {
		if errors.Is(err, otp.ErrInvalidOrExpired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidOrExpiredOTP})
			return
		}
		h.logger.Error("otp verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	user, err := h.users.ResolveOrCreate(c.Request.Context(), strings.TrimSpace(request.Email), users.Attributes{
		Provider: users.ProviderOTP,
	})
	if err != nil {
		h.logger.Error("identity resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	if !h.issueSessionCookie(c, user) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type googleAuthRequest struct {
	IDToken string `json:"idToken"`
}

func (h *httpHandler) handleGoogleAuth(c *gin.Context) {
	var request googleAuthRequest
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing idToken"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		if errors.Is(err, auth.ErrMissingEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
			return
		}
		h.logger.Warn("google token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Google authentication failed"})
		return
	}

	user, err := h.users.ResolveOrCreate(c.Request.Context(), claims.Email, users.Attributes{
		Name:         claims.Name,
		FallbackName: localPart(claims.Email),
		Picture:      claims.Picture,
		Provider:     users.ProviderGoogle,
	})
	if err != nil {
		h.logger.Error("identity resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	if !h.issueSessionCookie(c, user) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}
		h.logger.Error("user lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"userId":   user.ID,
			"name":     user.Name,
			"email":    user.Email,
			"provider": user.Provider,
		},
	})
}

type notePayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type noteResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at_s"`
	UpdatedAt int64  `json:"updated_at_s"`
}

func renderNote(note notes.Note) noteResponse {
	return noteResponse{
		ID:        note.ID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: note.CreatedAt.Unix(),
		UpdatedAt: note.UpdatedAt.Unix(),
	}
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	records, err := h.notes.List(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.logger.Error("failed to list notes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}
	rendered := make([]noteResponse, 0, len(records))
	for _, record := range records {
		rendered = append(rendered, renderNote(record))
	}
	c.JSON(http.StatusOK, gin.H{"notes": rendered})
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	var request notePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	note, err := h.notes.Create(c.Request.Context(), c.GetString(userIDContextKey), request.Title, request.Content)
	if err != nil {
		h.logger.Error("failed to create note", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"note": renderNote(note)})
}

func (h *httpHandler) handleGetNote(c *gin.Context) {
	note, err := h.notes.Get(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id"))
	if err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
			return
		}
		h.logger.Error("failed to fetch note", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": renderNote(note)})
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	var request notePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	note, err := h.notes.Update(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id"), request.Title, request.Content)
	if err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
			return
		}
		h.logger.Error("failed to update note", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": renderNote(note)})
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	err := h.notes.Delete(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id"))
	if err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
			return
		}
		h.logger.Error("failed to delete note", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// requireSession validates the session cookie, checks the identity still
// exists and attaches it to the request context. A stale or corrupt cookie is
// cleared so the client stops replaying it.
func (h *httpHandler) requireSession(c *gin.Context) {
	claims, err := h.validator.ValidateRequest(c.Request)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingSessionToken) {
			h.clearSessionCookie(c)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	if _, err := h.users.GetByID(c.Request.Context(), claims.UserID); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			h.clearSessionCookie(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}
		h.logger.Error("session identity lookup failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return
	}

	c.Set(userIDContextKey, claims.UserID)
	c.Set(userEmailContextKey, claims.UserEmail)
	c.Next()
}

func (h *httpHandler) issueSessionCookie(c *gin.Context, user users.User) bool {
	token, err := h.sessions.Mint(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to mint session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
		return false
	}
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(auth.SessionCookieName, token, int(h.sessions.TTL().Seconds()), "/", "", true, true)
	return true
}

func (h *httpHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(auth.SessionCookieName, "", -1, "/", "", true, true)
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
