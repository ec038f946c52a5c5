package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propnest/internal/app/dto"
	authsvc "propnest/internal/app/services/auth"
	inquirysvc "propnest/internal/app/services/inquiry"
	listingsvc "propnest/internal/app/services/listing"
	domainuser "propnest/internal/domain/user"
	"propnest/internal/infra/config"
	"propnest/internal/infra/obs"
	"propnest/internal/infra/realtime"
	"propnest/internal/infra/security"
	"propnest/internal/infra/storage/memory"
	"propnest/internal/infra/storage/s3"
)

type testApp struct {
	server *httptest.Server
	hub    *realtime.Hub
}

// newTestApp assembles the full application on in-memory storage, exactly as
// the binary wires it minus Mongo, Kafka, and object storage.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := memory.NewUserRepository()
	sessions := memory.NewSessionStore()
	listings := memory.NewListingRepository()
	inquiries := memory.NewInquiryRepository()
	hub := realtime.NewHub(logger)

	listingService := &listingsvc.Service{Listings: listings, Photos: s3.NoopUploader{}, Logger: logger}
	inquiryService := &inquirysvc.Service{
		Inquiries: inquiries,
		Listings:  listingService,
		Users:     users,
		Notifier:  hub,
		Logger:    logger,
	}
	authService := &authsvc.Service{
		Users:      users,
		Sessions:   sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		Purger:     inquiryService,
		SessionTTL: time.Hour,
		Logger:     logger,
	}

	wsHandler := &realtime.Handler{
		Hub: hub,
		Resolve: func(ctx context.Context, token string) (domainuser.ID, error) {
			resolved, err := authService.ResolveToken(ctx, token)
			if err != nil {
				return "", err
			}
			return resolved.User.ID, nil
		},
		Logger: logger,
	}

	authMW := AuthMiddleware{Service: authService, Logger: logger}
	srv := NewServer(config.Config{Env: "test"}, obs.Middleware{Logger: logger}, obs.HealthHandlers{}, Handlers{
		Auth:           AuthHandler{Service: authService, Logger: logger},
		Listing:        ListingHandler{Service: listingService, Logger: logger},
		Inquiry:        InquiryHandler{Service: inquiryService, Logger: logger},
		Realtime:       wsHandler.Serve,
		AuthMiddleware: authMW.Handle,
	})

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		hub.CloseAll()
	})
	return &testApp{server: ts, hub: hub}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, payload)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, raw
}

func (a *testApp) register(t *testing.T, email, name string) (userID, token string) {
	t.Helper()
	resp, raw := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"name":     name,
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var out dto.AuthResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	return out.User.ID, out.Token
}

func (a *testApp) createListing(t *testing.T, token, title string) string {
	t.Helper()
	resp, raw := a.do(t, http.MethodPost, "/api/v1/listings", token, map[string]any{
		"title":       title,
		"price_cents": int64(48500000),
		"city":        "Lisbon",
		"country":     "PT",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var out dto.Listing
	require.NoError(t, json.Unmarshal(raw, &out))
	return out.ID
}

// connectWS opens a realtime session for the user and joins their room.
func (a *testApp) connectWS(t *testing.T, token, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	join, err := json.Marshal(map[string]any{"event": realtime.EventJoinRoom, "data": userID})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, join))
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return a.hub.Connections(domainuser.ID(userID)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) realtime.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	var env realtime.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

func TestAPI_InquiryLifecycle(t *testing.T) {
	app := newTestApp(t)

	ownerID, ownerToken := app.register(t, "olga@example.com", "Olga")
	buyerID, buyerToken := app.register(t, "ben@example.com", "Ben")
	listingID := app.createListing(t, ownerToken, "Sunny flat near the river")

	ownerConn := app.connectWS(t, ownerToken, ownerID)
	buyerConn := app.connectWS(t, buyerToken, buyerID)

	resp, raw := app.do(t, http.MethodPost, "/api/v1/inquiries", buyerToken, map[string]string{
		"propertyId": listingID,
		"message":    "Is it still available?",
		"buyerPhone": "+351 900 000 000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var created dto.Inquiry
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, listingID, created.ListingID)
	assert.Equal(t, buyerID, created.BuyerID)
	assert.Equal(t, ownerID, created.OwnerID)
	assert.Equal(t, "PENDING", created.Status)
	require.Len(t, created.Messages, 1)
	assert.Equal(t, "Is it still available?", created.Messages[0].Text)

	env := readEnvelope(t, ownerConn)
	assert.Equal(t, inquirysvc.EventNewInquiry, env.Event)

	// Owner sees the conversation in the inbox with listing and buyer joined.
	resp, raw = app.do(t, http.MethodGet, "/api/v1/inquiries/inbox", ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var inbox []dto.InboxItem
	require.NoError(t, json.Unmarshal(raw, &inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, created.ID, inbox[0].Inquiry.ID)
	assert.Equal(t, "Sunny flat near the river", inbox[0].Listing.Title)
	assert.Equal(t, "Ben", inbox[0].Buyer.Name)

	resp, raw = app.do(t, http.MethodPost, "/api/v1/inquiries/reply/"+created.ID, ownerToken, map[string]string{
		"text": "Sure, call me",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var replied dto.Inquiry
	require.NoError(t, json.Unmarshal(raw, &replied))
	assert.Equal(t, "CONTACTED", replied.Status)
	require.Len(t, replied.Messages, 2)
	assert.Equal(t, ownerID, replied.Messages[1].Sender)
	assert.Equal(t, "Sure, call me", replied.Messages[1].Text)

	// The buyer's open session receives the reply without polling.
	env = readEnvelope(t, buyerConn)
	require.Equal(t, inquirysvc.EventReceiveMessage, env.Event)
	var event inquirysvc.MessageEvent
	require.NoError(t, json.Unmarshal(env.Data, &event))
	assert.Equal(t, created.ID, event.InquiryID)
	assert.Equal(t, "Sure, call me", event.Message.Text)
}

func TestAPI_ReplyByNonParticipantIsRejected(t *testing.T) {
	app := newTestApp(t)

	_, ownerToken := app.register(t, "olga@example.com", "Olga")
	_, buyerToken := app.register(t, "ben@example.com", "Ben")
	_, strangerToken := app.register(t, "sven@example.com", "Sven")
	listingID := app.createListing(t, ownerToken, "Downtown loft")

	resp, raw := app.do(t, http.MethodPost, "/api/v1/inquiries", buyerToken, map[string]string{
		"propertyId": listingID,
		"message":    "What floor is it on?",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var created dto.Inquiry
	require.NoError(t, json.Unmarshal(raw, &created))

	resp, _ = app.do(t, http.MethodPost, "/api/v1/inquiries/reply/"+created.ID, strangerToken, map[string]string{
		"text": "let me in",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = app.do(t, http.MethodGet, "/api/v1/inquiries/"+created.ID, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The transcript is untouched.
	resp, raw = app.do(t, http.MethodGet, "/api/v1/inquiries/"+created.ID, buyerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var fetched dto.Inquiry
	require.NoError(t, json.Unmarshal(raw, &fetched))
	assert.Len(t, fetched.Messages, 1)
	assert.Equal(t, "PENDING", fetched.Status)
}

func TestAPI_CreateInquiryAgainstMissingListing(t *testing.T) {
	app := newTestApp(t)
	_, buyerToken := app.register(t, "ben@example.com", "Ben")

	resp, _ := app.do(t, http.MethodPost, "/api/v1/inquiries", buyerToken, map[string]string{
		"propertyId": "no-such-listing",
		"message":    "hello?",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	app := newTestApp(t)

	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/v1/inquiries", map[string]string{"propertyId": "x", "message": "hi"}},
		{http.MethodGet, "/api/v1/inquiries/inbox", nil},
		{http.MethodPost, "/api/v1/listings", map[string]any{"title": "x"}},
		{http.MethodGet, "/api/v1/auth/me", nil},
	} {
		t.Run(fmt.Sprintf("%s %s", tc.method, tc.path), func(t *testing.T) {
			resp, _ := app.do(t, tc.method, tc.path, "", tc.body)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestAPI_RegisterLoginRoundTrip(t *testing.T) {
	app := newTestApp(t)
	_, _ = app.register(t, "olga@example.com", "Olga")

	// Duplicate email is rejected.
	resp, _ := app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "OLGA@example.com",
		"name":     "Other Olga",
		"password": "correct horse battery",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, raw := app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "olga@example.com",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var out dto.AuthResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	require.NotEmpty(t, out.Token)

	resp, raw = app.do(t, http.MethodGet, "/api/v1/auth/me", out.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, _ = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "olga@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_DeleteAccountPurgesConversations(t *testing.T) {
	app := newTestApp(t)

	_, ownerToken := app.register(t, "olga@example.com", "Olga")
	_, buyerToken := app.register(t, "ben@example.com", "Ben")
	listingID := app.createListing(t, ownerToken, "Garden house")

	resp, raw := app.do(t, http.MethodPost, "/api/v1/inquiries", buyerToken, map[string]string{
		"propertyId": listingID,
		"message":    "Does it have a shed?",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var created dto.Inquiry
	require.NoError(t, json.Unmarshal(raw, &created))

	resp, _ = app.do(t, http.MethodDelete, "/api/v1/auth/me", buyerToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Conversation went with the account, and the token is dead.
	resp, _ = app.do(t, http.MethodGet, "/api/v1/inquiries/"+created.ID, ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = app.do(t, http.MethodGet, "/api/v1/auth/me", buyerToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
