// Package api is the request entry point: it upgrades WebSocket
// connections, decodes inbound action frames and routes them to the
// thread service.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"threadcast/pkg/auth"
	"threadcast/pkg/push"
	"threadcast/pkg/threads"
	"threadcast/pkg/utils"
)

// API bundles the dependencies of the HTTP surface.
type API struct {
	svc    *threads.Service
	hub    *push.Hub
	gw     *auth.Gateway
	limits *auth.LimiterPool
}

// New builds the API.
func New(svc *threads.Service, hub *push.Hub, gw *auth.Gateway, limits *auth.LimiterPool) *API {
	return &API{svc: svc, hub: hub, gw: gw, limits: limits}
}

// Router returns the HTTP routes.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		utils.JSONError(w, http.StatusNotFound, "not found")
	})
	r.HandleFunc("/v1/ws", a.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}
