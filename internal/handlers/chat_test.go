package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/chatline/internal/chat"
	"github.com/nfrund/chatline/internal/directory"
	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/history"
	"github.com/nfrund/chatline/internal/pubsub"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, pubsub.Message) error { return nil }
func (nopPublisher) Close() error                                  { return nil }

func newTestAPI(t *testing.T) (*echo.Echo, *directory.Memory) {
	t.Helper()
	users := directory.NewMemory()
	service := chat.NewService(history.New(), users, nopPublisher{})

	e := echo.New()
	e.Validator = NewValidator()
	NewChatHandler(service).Register(e.Group("/api"))
	return e, users
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterUserEndpoint(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := do(e, http.MethodPost, "/api/users", `{"name":"alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "alice", created.DisplayName)
	assert.Equal(t, "new", created.State)

	rec = do(e, http.MethodPost, "/api/users", `{"name":"Alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var again UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, created.ID, again.ID)

	rec = do(e, http.MethodPost, "/api/users", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestMessageEndpoints(t *testing.T) {
	e, users := newTestAPI(t)
	alice, _, err := users.AddOrUpdate(context.Background(), "alice")
	require.NoError(t, err)

	rec := do(e, http.MethodPost, "/api/messages", `{"ownerId":1,"content":"hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(e, http.MethodPost, "/api/messages", `{"ownerId":1,"content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/messages", `{"ownerId":42,"content":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var problem ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "not_found", problem.Code)

	rec = do(e, http.MethodGet, "/api/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page []MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page, 1)
	assert.Equal(t, alice.ID, page[0].OwnerID)

	rec = do(e, http.MethodGet, "/api/messages?before=2000-01-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(e, http.MethodGet, "/api/messages?before=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserStateEndpoints(t *testing.T) {
	e, users := newTestAPI(t)
	ctx := context.Background()
	alice, _, err := users.AddOrUpdate(ctx, "alice")
	require.NoError(t, err)

	rec := do(e, http.MethodPost, "/api/users/1/writing", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	u, _ := users.Get(ctx, alice.ID)
	assert.Equal(t, domain.StateWriting, u.State)

	rec = do(e, http.MethodDelete, "/api/users/1/writing", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	u, _ = users.Get(ctx, alice.ID)
	assert.Equal(t, domain.StateOnline, u.State)

	rec = do(e, http.MethodPost, "/api/users/1/session/close", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	u, _ = users.Get(ctx, alice.ID)
	assert.Equal(t, domain.StateOffline, u.State)

	rec = do(e, http.MethodDelete, "/api/users/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, err = users.Get(ctx, alice.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodDelete, "/api/users/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/api/users/abc/writing", "").Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.Validation("op", "bad"), http.StatusBadRequest},
		{domain.NotFound("op", "user"), http.StatusNotFound},
		{domain.Conflict("op", "taken"), http.StatusConflict},
		{domain.Transport("op", context.DeadlineExceeded), http.StatusBadGateway},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}
