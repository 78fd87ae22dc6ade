// Package server assembles the HTTP surface: router, CORS, instrumentation
// and the authorization gate.
package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"admin-portal/backend/internal/server/handlers"
	"admin-portal/backend/internal/server/middleware"
)

// Deps carries everything the router needs.
type Deps struct {
	Gate             *middleware.Gate
	Sessions         *handlers.SessionHandler
	Users            *handlers.UserHandler
	Companies        *handlers.CompanyHandler
	Audit            *handlers.AuditHandler
	CORSOriginSuffix string
}

// NewHandler builds the full middleware chain around the route table:
// otelhttp > CORS > request log > gate > routes.
func NewHandler(d Deps) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	d.Sessions.Register(r)
	d.Users.Register(r)
	d.Companies.Register(r)
	d.Audit.Register(r)

	var h http.Handler = r
	h = d.Gate.Middleware(h)
	h = middleware.RequestLog(h)

	c := cors.New(cors.Options{
		AllowOriginFunc:  originAllowed(d.CORSOriginSuffix),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	h = c.Handler(h)

	return otelhttp.NewHandler(h, "admin-portal")
}

// originAllowed admits origins sharing the configured parent-domain suffix.
// The browser client and the child module apps all live under one domain.
// An empty suffix admits everything, which is only sane in development.
func originAllowed(suffix string) func(string) bool {
	return func(origin string) bool {
		if suffix == "" {
			return true
		}
		host := origin
		if i := strings.Index(host, "://"); i >= 0 {
			host = host[i+3:]
		}
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		return host == suffix || strings.HasSuffix(host, "."+suffix)
	}
}
