package client

import "chat_server/models"

// Bucket is where a user sits relative to the viewer.
type Bucket int

const (
	BucketNone Bucket = iota
	BucketAccepted
	BucketIncoming
	BucketOutgoing
	BucketDiscoverable
)

func (b Bucket) String() string {
	switch b {
	case BucketAccepted:
		return "accepted"
	case BucketIncoming:
		return "incoming"
	case BucketOutgoing:
		return "outgoing"
	case BucketDiscoverable:
		return "discoverable"
	}
	return "none"
}

// Buckets is the viewer's partition of every known user. A user id is in at
// most one of the four lists and the viewer is in none.
type Buckets struct {
	Accepted     []models.PublicUser
	Incoming     []models.ChatRequestView
	Outgoing     []models.ChatRequestView
	Discoverable []models.PublicUser

	index map[string]Bucket
}

// Of returns the bucket holding userID.
func (b Buckets) Of(userID string) Bucket {
	return b.index[userID]
}

// Project derives the buckets. Accepted beats a pending record for the same
// counterpart, and incoming beats outgoing, so a transient inconsistency
// between the lists cannot place one user twice.
func Project(viewer string, users []models.PublicUser, pending []models.ChatRequestView, accepted []models.PublicUser) Buckets {
	b := Buckets{index: map[string]Bucket{viewer: BucketNone}}
	claim := func(id string, bucket Bucket) bool {
		if _, taken := b.index[id]; taken {
			return false
		}
		b.index[id] = bucket
		return true
	}

	for _, u := range accepted {
		if claim(u.ID, BucketAccepted) {
			b.Accepted = append(b.Accepted, u)
		}
	}
	for _, p := range pending {
		if p.ReceiverID == viewer && claim(p.SenderID, BucketIncoming) {
			b.Incoming = append(b.Incoming, p)
		}
	}
	for _, p := range pending {
		if p.SenderID == viewer && claim(p.ReceiverID, BucketOutgoing) {
			b.Outgoing = append(b.Outgoing, p)
		}
	}
	for _, u := range users {
		if claim(u.ID, BucketDiscoverable) {
			b.Discoverable = append(b.Discoverable, u)
		}
	}
	delete(b.index, viewer)
	return b
}
