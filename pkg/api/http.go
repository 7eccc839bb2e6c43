package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"anonchat/pkg/api/handlers"
	"anonchat/pkg/auth"
	"anonchat/pkg/feed"
	"anonchat/pkg/ingest"
	"anonchat/pkg/security"
	"anonchat/pkg/store"
	"anonchat/pkg/utils"
)

// Deps carries the shared services handlers need. Wired once at startup;
// nothing here is a global.
type Deps struct {
	Auth   *auth.Service
	Broker *feed.Broker
	Queue  *ingest.Queue
	Sec    security.SecConfig
}

// openPaths are served without a bearer token: registration, login and
// operational probes.
var openPaths = map[string]bool{
	"/v1/users": true,
	"/v1/login": true,
	"/healthz":  true,
	"/metrics":  true,
}

// NewRouter assembles the HTTP surface: REST handlers, the feed websocket,
// metrics, docs and the middleware chain (request gate, then auth).
func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !store.Ready() {
			utils.JSONError(w, http.StatusServiceUnavailable, "store not ready")
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/docs/").Handler(httpSwagger.WrapHandler)

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterUsers(v1, d.Auth)
	handlers.RegisterConversations(v1)
	handlers.RegisterMessages(v1, d.Queue)
	handlers.RegisterGames(v1, d.Queue)
	v1.HandleFunc("/feed", feed.WSHandler(d.Broker)).Methods(http.MethodGet)

	var h http.Handler = r
	h = d.Auth.Middleware(openPaths)(h)
	h = security.RequestGateMiddleware(d.Sec)(h)
	return h
}
