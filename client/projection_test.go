package client

import (
	"testing"

	"chat_server/models"

	"github.com/stretchr/testify/assert"
)

func user(id string) models.PublicUser { return models.PublicUser{ID: id, FullName: id} }

func pendingView(id, sender, receiver string) models.ChatRequestView {
	return models.ChatRequestView{
		ChatRequest: models.ChatRequest{ID: id, SenderID: sender, ReceiverID: receiver, Status: models.StatusPending},
		Sender:      user(sender),
		Receiver:    user(receiver),
	}
}

func TestProjectDisjointBuckets(t *testing.T) {
	users := []models.PublicUser{user("me"), user("acc"), user("in"), user("out"), user("free"), user("both")}
	pending := []models.ChatRequestView{
		pendingView("r1", "in", "me"),
		pendingView("r2", "me", "out"),
		// Stale lists may briefly disagree; accepted wins.
		pendingView("r3", "acc", "me"),
		// Incoming beats outgoing for the same counterpart.
		pendingView("r4", "me", "both"),
		pendingView("r5", "both", "me"),
	}
	accepted := []models.PublicUser{user("acc")}

	b := Project("me", users, pending, accepted)

	seen := map[string]int{}
	for _, u := range b.Accepted {
		seen[u.ID]++
	}
	for _, p := range b.Incoming {
		seen[p.SenderID]++
	}
	for _, p := range b.Outgoing {
		seen[p.ReceiverID]++
	}
	for _, u := range b.Discoverable {
		seen[u.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.NotContains(t, seen, "me")

	tests := map[string]Bucket{
		"acc":  BucketAccepted,
		"in":   BucketIncoming,
		"both": BucketIncoming,
		"out":  BucketOutgoing,
		"free": BucketDiscoverable,
		"me":   BucketNone,
		"nope": BucketNone,
	}
	for id, want := range tests {
		assert.Equal(t, want, b.Of(id), id)
	}
}

func TestProjectEmpty(t *testing.T) {
	b := Project("me", nil, nil, nil)
	assert.Empty(t, b.Accepted)
	assert.Empty(t, b.Discoverable)
	assert.Equal(t, "none", b.Of("x").String())
}
