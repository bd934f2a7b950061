package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hdnotes/hdnotes/backend/internal/auth"
	"github.com/hdnotes/hdnotes/backend/internal/notes"
	"github.com/hdnotes/hdnotes/backend/internal/otp"
	"github.com/hdnotes/hdnotes/backend/internal/users"
)

const testSigningSecret = "router-test-secret"

type captureSender struct {
	codes []string
}

func (s *captureSender) SendCode(_ context.Context, _ string, code string) error {
	s.codes = append(s.codes, code)
	return nil
}

func (s *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	if len(s.codes) == 0 {
		t.Fatalf("no code was delivered")
	}
	return s.codes[len(s.codes)-1]
}

type stubGoogleVerifier struct {
	claims auth.GoogleClaims
	err    error
}

func (s stubGoogleVerifier) Verify(context.Context, string) (auth.GoogleClaims, error) {
	return s.claims, s.err
}

type routerFixture struct {
	handler http.Handler
	sender  *captureSender
	db      *gorm.DB
	users   *users.Service
}

func newRouterFixture(t *testing.T, verifier GoogleVerifier) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&users.User{}, &otp.Record{}, &notes.Note{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	usersService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build users service: %v", err)
	}

	sender := &captureSender{}
	otpService, err := otp.NewService(otp.ServiceConfig{Database: db, Sender: sender})
	if err != nil {
		t.Fatalf("failed to build otp service: %v", err)
	}

	sessionIssuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{SigningSecret: []byte(testSigningSecret)})
	if err != nil {
		t.Fatalf("failed to build session issuer: %v", err)
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{SigningSecret: []byte(testSigningSecret)})
	if err != nil {
		t.Fatalf("failed to build session validator: %v", err)
	}

	notesService, err := notes.NewService(notes.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build notes service: %v", err)
	}

	if verifier == nil {
		verifier = stubGoogleVerifier{err: auth.ErrInvalidToken}
	}

	handler, err := NewHTTPHandler(Dependencies{
		GoogleVerifier:   verifier,
		OTPService:       otpService,
		SessionIssuer:    sessionIssuer,
		SessionValidator: sessionValidator,
		UsersService:     usersService,
		NotesService:     notesService,
		Logger:           zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return &routerFixture{handler: handler, sender: sender, db: db, users: usersService}
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func sessionCookie(t *testing.T, recorder *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == auth.SessionCookieName {
			return cookie
		}
	}
	t.Fatalf("expected a session cookie in response")
	return nil
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}
