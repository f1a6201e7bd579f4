package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coinsora/server/internal/api"
	"github.com/coinsora/server/internal/app"
	iauth "github.com/coinsora/server/internal/auth"
	"github.com/coinsora/server/internal/catalog"
	sharedtestutil "github.com/coinsora/server/internal/database/testutil"
	"github.com/coinsora/server/pkg/mail"
	"github.com/coinsora/server/pkg/response"
)

// FixedOTP is the deterministic code issued by every test environment.
const FixedOTP = "123456"

// CapturingMailer records outbound messages and can be told to fail.
type CapturingMailer struct {
	mu       sync.Mutex
	sent     []mail.Message
	failWith error
}

// Send records the message, or returns the configured failure.
func (m *CapturingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (m *CapturingMailer) Sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// FailWith makes subsequent sends return err. Pass nil to restore delivery.
func (m *CapturingMailer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

type sheetReader struct {
	sheets []catalog.Sheet
}

func (r sheetReader) ReadSheets() ([]catalog.Sheet, error) {
	return r.sheets, nil
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	Mailer *CapturingMailer
}

// Option customises the test environment before the router is built.
type Option func(*envConfig)

type envConfig struct {
	sheets []catalog.Sheet
}

// WithSheets seeds the catalog with the given workbook sheets.
func WithSheets(sheets ...catalog.Sheet) Option {
	return func(c *envConfig) {
		c.sheets = sheets
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied
// and a deterministic OTP generator.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	var ec envConfig
	for _, opt := range opts {
		opt(&ec)
	}

	db := sharedtestutil.MustOpenTestDB(t)
	mailer := &CapturingMailer{}

	otpSvc, err := iauth.NewOTPService(db, mailer,
		iauth.WithGenerator(func() (string, error) { return FixedOTP, nil }))
	require.NoError(t, err)

	cache, err := catalog.NewCache(sheetReader{sheets: ec.sheets})
	require.NoError(t, err)

	catalogSvc, err := catalog.NewService(cache)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Monitoring.Health.Enabled = true

	router, err := api.NewRouter(db, otpSvc, catalogSvc, cfg)
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		Mailer: mailer,
	}
}

// Signup runs the full signup flow for contact and leaves a verified account behind.
func (e *Env) Signup(name, contact, password string) {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"name":     name,
		"contact":  contact,
		"password": password,
	})
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	w = e.Request(http.MethodPost, "/api/auth/verify-otp", map[string]string{
		"contact": contact,
		"otp":     FixedOTP,
	})
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router with JSON encoding applied.
func (e *Env) Request(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
