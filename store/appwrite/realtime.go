package appwrite

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/raisfeld-ori/appwrite-orm/store"
)

// Realtime is a store.Subscriber backed by the realtime websocket endpoint.
// Each Subscribe call opens its own connection scoped to its channels.
type Realtime struct {
	endpoint string
	project  string
	log      *zap.SugaredLogger
	dialer   *ws.Dialer
}

func NewRealtime(endpoint, project string, log *zap.SugaredLogger) *Realtime {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Realtime{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		project:  project,
		log:      log,
		dialer:   ws.DefaultDialer,
	}
}

type realtimeMessage struct {
	Type string `json:"type"`
	Data struct {
		Channels []string       `json:"channels"`
		Events   []string       `json:"events"`
		Payload  map[string]any `json:"payload"`
	} `json:"data"`
}

func (r *Realtime) wsURL(channels []string) (string, error) {
	u, err := url.Parse(r.endpoint + "/realtime")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("appwrite: unsupported realtime scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Add("project", r.project)
	for _, ch := range channels {
		q.Add("channels[]", ch)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (r *Realtime) Subscribe(channels []string, fn func(store.Event)) (func(), error) {
	addr, err := r.wsURL(channels)
	if err != nil {
		return nil, err
	}

	conn, _, err := r.dialer.Dial(addr, nil)
	if err != nil {
		return nil, err
	}
	r.log.Debugw("realtime connected", "channels", channels)

	closed := false
	var mu sync.Mutex

	go func() {
		for {
			msg := realtimeMessage{}
			if err := conn.ReadJSON(&msg); err != nil {
				mu.Lock()
				was_closed := closed
				mu.Unlock()
				if !was_closed {
					r.log.Warnw("realtime connection lost", "error", err)
				}
				return
			}
			if msg.Type != "event" {
				continue
			}
			fn(store.Event{
				Channels: msg.Data.Channels,
				Events:   msg.Data.Events,
				Payload:  msg.Data.Payload,
			})
		}
	}()

	unsubscribe := func() {
		mu.Lock()
		if closed {
			mu.Unlock()
			return
		}
		closed = true
		mu.Unlock()

		conn.WriteMessage(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, "unsubscribe"))
		conn.Close()
	}
	return unsubscribe, nil
}
