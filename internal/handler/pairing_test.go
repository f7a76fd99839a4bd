package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/pairing-server-go/internal/middleware"
	"github.com/openclaw/pairing-server-go/internal/model"
	"github.com/openclaw/pairing-server-go/internal/service"
	"github.com/openclaw/pairing-server-go/internal/store"
)

// Mock repositories
type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Disable(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockCredRepo struct {
	mock.Mock
}

func (m *mockCredRepo) Create(ctx context.Context, params model.CreateCredentialParams) (*model.Credential, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Credential), args.Error(1)
}

func (m *mockCredRepo) FindByUserID(ctx context.Context, userID string) ([]model.Credential, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Credential), args.Error(1)
}

func (m *mockCredRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type mockIssuer struct {
	mock.Mock
}

func (m *mockIssuer) Mint(ctx context.Context, user *model.User, agentName, agentID string) (*model.MintedCredential, error) {
	args := m.Called(ctx, user, agentName, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MintedCredential), args.Error(1)
}

var operatorUser = &model.User{ID: "user-1", Username: "alice", Role: model.RoleOperator}

type fixture struct {
	router chi.Router
	users  *mockUserRepo
	creds  *mockCredRepo
	issuer *mockIssuer
}

// newFixture wires the handler over a real handshake service and an
// in-memory pairing store, with the operator pre-authenticated.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := new(mockUserRepo)
	creds := new(mockCredRepo)
	issuer := new(mockIssuer)

	svc := service.NewHandshakeService(
		store.NewMemoryStore(nil), users, issuer,
		service.SiteInfo{
			Name:        "OpenClaw",
			URL:         "https://claw.example.com",
			RestURL:     "https://claw.example.com/v1",
			ManifestURL: "https://claw.example.com/.well-known/openclaw.json",
		},
		5*time.Minute, 30*time.Second,
	)

	h := NewPairingHandler(svc, creds)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(fakeAuth(operatorUser))
		h.RegisterAuthed(r)
	})
	r.Get("/pairing/status", h.Status)
	r.Post("/pairing/claim", h.Claim)

	return &fixture{router: r, users: users, creds: creds, issuer: issuer}
}

func fakeAuth(user *model.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) generateCode(t *testing.T) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/pairing/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["code"].(string)
}

func minted() *model.MintedCredential {
	return &model.MintedCredential{
		Credential: model.Credential{ID: "cred-1", UserID: "user-1", Name: "Clawdbot (abcd1234)"},
		Secret:     "abcdefghijklmnopqrstuvwx",
		Display:    "abcd efgh ijkl mnop qrst uvwx",
	}
}

func TestGenerateEndpoint(t *testing.T) {
	t.Run("issues a code for the caller", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/pairing/generate", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp["code"], 6)
		assert.Equal(t, float64(300), resp["expires_in"])
		assert.Equal(t, "alice", resp["for_user"])
		assert.NotEmpty(t, resp["expires_at"])
	})

	t.Run("rejects malformed target user id", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/pairing/generate", map[string]string{
			"target_user_id": "not-a-uuid",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		f := newFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/pairing/generate", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStatusEndpoint(t *testing.T) {
	t.Run("valid code", func(t *testing.T) {
		f := newFixture(t)
		code := f.generateCode(t)

		rec := f.do(t, http.MethodGet, "/pairing/status?code="+code, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["valid"])
		assert.Equal(t, "OpenClaw", resp["site_name"])
		assert.Equal(t, "https://claw.example.com", resp["site_url"])
	})

	t.Run("unknown code is 404 with a message", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodGet, "/pairing/status?code=ABCDEF", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, false, resp["valid"])
		assert.NotEmpty(t, resp["message"])
	})

	t.Run("malformed code is 400", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodGet, "/pairing/status?code=zzz", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("used code is 410", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("FindByID", mock.Anything, "user-1").Return(operatorUser, nil)
		f.issuer.On("Mint", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(minted(), nil)

		code := f.generateCode(t)
		claim := f.do(t, http.MethodPost, "/pairing/claim", map[string]string{"code": code})
		require.Equal(t, http.StatusCreated, claim.Code)

		rec := f.do(t, http.MethodGet, "/pairing/status?code="+code, nil)
		assert.Equal(t, http.StatusGone, rec.Code)
	})
}

func TestClaimEndpoint(t *testing.T) {
	t.Run("delivers the credential exactly once", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("FindByID", mock.Anything, "user-1").Return(operatorUser, nil)
		f.issuer.On("Mint", mock.Anything, operatorUser, "Clawdbot", "agent-7").
			Return(minted(), nil)

		code := f.generateCode(t)

		rec := f.do(t, http.MethodPost, "/pairing/claim", map[string]string{
			"code":       code,
			"agent_name": "Clawdbot",
			"agent_id":   "agent-7",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, "OpenClaw", resp["site_name"])
		assert.Equal(t, "https://claw.example.com/v1", resp["base_url"])
		assert.Equal(t, "alice", resp["username"])
		assert.Equal(t, "abcd efgh ijkl mnop qrst uvwx", resp["password"])
		assert.Equal(t, "Clawdbot", resp["agent_name"])
		assert.NotEmpty(t, resp["manifest_url"])
		assert.NotEmpty(t, resp["message"])

		// Second claim hits the terminal state.
		again := f.do(t, http.MethodPost, "/pairing/claim", map[string]string{"code": code})
		assert.Equal(t, http.StatusGone, again.Code)
	})

	t.Run("missing code is 400", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/pairing/claim", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown code is 404", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/pairing/claim", map[string]string{"code": "ABCDEF"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("mint failure is 500 and burns the code", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("FindByID", mock.Anything, "user-1").Return(operatorUser, nil)
		f.issuer.On("Mint", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, assert.AnError)

		code := f.generateCode(t)

		rec := f.do(t, http.MethodPost, "/pairing/claim", map[string]string{"code": code})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		again := f.do(t, http.MethodPost, "/pairing/claim", map[string]string{"code": code})
		assert.Equal(t, http.StatusGone, again.Code)
	})
}

func TestListCredentialsEndpoint(t *testing.T) {
	t.Run("lists names and timestamps only", func(t *testing.T) {
		f := newFixture(t)
		created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		f.creds.On("FindByUserID", mock.Anything, "user-1").Return([]model.Credential{
			{ID: "cred-1", UserID: "user-1", Name: "Clawdbot (abcd1234)", AgentName: "Clawdbot", SecretHash: "deadbeef", CreatedAt: created},
		}, nil)

		rec := f.do(t, http.MethodGet, "/credentials", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, float64(1), resp["count"])
		assert.NotContains(t, rec.Body.String(), "deadbeef")

		entries := resp["credentials"].([]any)
		entry := entries[0].(map[string]any)
		assert.Equal(t, "Clawdbot (abcd1234)", entry["name"])
		assert.Equal(t, "Clawdbot", entry["agent_name"])
	})

	t.Run("repository failure is 500", func(t *testing.T) {
		f := newFixture(t)
		f.creds.On("FindByUserID", mock.Anything, "user-1").Return(nil, assert.AnError)

		rec := f.do(t, http.MethodGet, "/credentials", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
