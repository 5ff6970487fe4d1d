package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matzehuels/yamlviz/pkg/errors"
	"github.com/matzehuels/yamlviz/pkg/observability"
	"github.com/matzehuels/yamlviz/pkg/session"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10

	wsMaxMessage = 1 << 20
)

// sameHost accepts upgrades without an Origin header or from the host the
// request was sent to.
func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) upgrader() *websocket.Upgrader {
	check := s.opts.CheckOrigin
	if check == nil {
		check = sameHost
	}
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     check,
	}
}

// handleSocket attaches a client to the document at ?path=. The first
// message the client receives is an updateAll with the current state.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if err := errors.ValidatePath(path); err != nil {
		writeError(w, err)
		return
	}
	if s.opts.Sessions == nil {
		writeError(w, errors.New(errors.ErrCodeUnsupported, "live sessions are disabled"))
		return
	}
	doc, err := s.opts.Sessions.Open(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	defer s.opts.Sessions.Release(doc)

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "path", path, "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	started := time.Now()
	observability.Session().OnConnect(ctx)
	defer func() { observability.Session().OnDisconnect(ctx, time.Since(started)) }()
	s.logger.Info("session attached", "path", path, "doc", doc.ID)

	conn.SetReadLimit(wsMaxMessage)
	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	updates, unsubscribe := doc.Subscribe()
	defer unsubscribe()

	writeCh := make(chan session.Outbound, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		write := func(v any) bool {
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return false
			}
			return conn.WriteJSON(v) == nil
		}
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok || !write(u) {
					cancel()
					return
				}
			case out := <-writeCh:
				if !write(out) {
					cancel()
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					cancel()
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	push := func(out session.Outbound) {
		select {
		case writeCh <- out:
		case <-ctx.Done():
		}
	}

	// The initial state arrives through the subscription.
	if _, err := doc.Update(ctx); err != nil && !errors.Is(err, errors.ErrCodeStaleGeneration) {
		push(session.NewErrorMessage(err))
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		msg, err := session.DecodeInbound(data)
		if err != nil {
			push(session.NewErrorMessage(err))
			continue
		}
		out, err := doc.Handle(ctx, msg)
		if err != nil {
			// A newer change is already on its way to every client.
			if !errors.Is(err, errors.ErrCodeStaleGeneration) {
				push(session.NewErrorMessage(err))
			}
			continue
		}
		for _, o := range out {
			if _, ok := o.(*session.UpdateAll); ok {
				continue
			}
			push(o)
		}
	}

	cancel()
	<-writerDone
	s.logger.Info("session detached", "path", path, "doc", doc.ID)
}
