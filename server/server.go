package server

import (
	"crypto/tls"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/acme/autocert"

	"github.com/AitomaLab/ugc-engine/handlers"
)

func SetupRoutes(h *handlers.RunHandler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/jobs/{id}/run", h.TriggerRun).Methods("POST")
	r.HandleFunc("/runs/{run_id}/status", h.GetRunStatus).Methods("GET")
	r.HandleFunc("/videos/{filename}", h.ServeVideo).Methods("GET")
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")

	return r
}

// ServeProduction terminates TLS with autocert-managed certificates. Port 80
// serves ACME challenges and redirects everything else to HTTPS.
func ServeProduction(n *negroni.Negroni, domains []string, certCacheDir string) {
	autocertManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(certCacheDir),
	}

	go func() {
		srv := &http.Server{
			Addr:         ":80",
			Handler:      autocertManager.HTTPHandler(nil),
			IdleTimeout:  time.Minute,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		err := srv.ListenAndServe()
		log.Fatal(err)
	}()

	tlsConfig := &tls.Config{
		GetCertificate:   autocertManager.GetCertificate,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
	}

	srv := &http.Server{
		Addr:         ":443",
		Handler:      n,
		TLSConfig:    tlsConfig,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	err := srv.ListenAndServeTLS("", "")
	log.Fatal(err)
}

// ServeDevelopment starts the plain HTTP server used outside production.
func ServeDevelopment(s *http.Server) {
	log.Fatal(s.ListenAndServe())
}
