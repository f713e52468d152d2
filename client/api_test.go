package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chat_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClientRequestsAndErrors(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/chat-requests/send/bob":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(models.ChatRequest{ID: "r1", SenderID: "me", ReceiverID: "bob", Status: models.StatusPending})
		case "/api/chat-requests/accept/r1":
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"Not authorized"}`))
		case "/api/users":
			json.NewEncoder(w).Encode([]models.PublicUser{{ID: "bob"}})
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		}
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", "tok")
	ctx := context.Background()

	req, err := c.SendRequest(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "r1", req.ID)

	users, err := c.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = c.AcceptRequest(ctx, "r1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "Not authorized", Describe(err))

	_, err = c.Pending(ctx)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.Equal(t, "Something went wrong, try again", Describe(err))

	assert.Equal(t, []string{
		"POST /api/chat-requests/send/bob",
		"GET /api/users",
		"PUT /api/chat-requests/accept/r1",
		"GET /api/chat-requests/pending",
	}, seen)
}
