package app

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/adjourn-app/courtroom/internal/courtroom/notify"
)

const tokenCookieName = "adjourn_token"

type wsUserIDContextKey struct{}

// wsHandler authenticates the websocket upgrade and hands the
// connection to the hub. The socket is outbound-only: session events
// flow to the client, inbound frames are discarded.
func (h *handler) wsHandler() http.Handler {
	connHandler := websocket.Handler(h.serveWS)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		accessToken := wsAccessToken(r)
		if accessToken == "" {
			log.Printf("event=ws_unauthorized reason=missing_token remote=%s", r.RemoteAddr)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		userID, err := VerifyAccessToken(accessToken, h.token)
		if err != nil {
			log.Printf("event=ws_unauthorized reason=verify_failed remote=%s error=%q", r.RemoteAddr, err)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), wsUserIDContextKey{}, userID)
		connHandler.ServeHTTP(w, r.WithContext(ctx))
	})
}

// wsAccessToken pulls the access token from the query string or the
// session cookie. Browser websocket clients cannot set headers, so the
// query parameter is the primary carrier.
func wsAccessToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	cookie, err := r.Cookie(tokenCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func (h *handler) serveWS(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	userID := ""
	if request := conn.Request(); request != nil {
		userID, _ = request.Context().Value(wsUserIDContextKey{}).(string)
	}
	if userID == "" {
		return
	}

	peer := notify.NewPeer(conn)
	h.hub.Subscribe(userID, peer)
	defer h.hub.Unsubscribe(userID, peer)

	// Hold the connection open until the client goes away.
	_, _ = io.Copy(io.Discard, conn)
}
