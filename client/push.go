package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat_server/models"

	"github.com/gorilla/websocket"
)

// PushClient subscribes to the server's /ws push stream.
type PushClient struct {
	BaseURL string
	Token   string
	Dialer  *websocket.Dialer
}

func (p *PushClient) wsURL() (string, error) {
	u, err := url.Parse(strings.TrimRight(p.BaseURL, "/") + "/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// Run delivers frames to handle until ctx is done or the connection drops.
// It returns ctx.Err() on cancellation.
func (p *PushClient) Run(ctx context.Context, handle func(models.PushFrame)) error {
	target, err := p.wsURL()
	if err != nil {
		return err
	}
	dialer := p.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{"Authorization": []string{"Bearer " + p.Token}}
	conn, _, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
			conn.Close()
		}
	}()

	for {
		var frame models.PushFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return errors.Join(errors.New("push stream closed"), err)
		}
		handle(frame)
	}
}
