// Package httpapi serves the transfer log and the metrics of a stopwait
// endpoint over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/skycoin/stopwait/internal/httputil"
	"github.com/skycoin/stopwait/internal/metrics"
	"github.com/skycoin/stopwait/pkg/transferlog"
)

const shutdownTimeout = 5 * time.Second

// API exposes read-only endpoints:
//  GET /health
//  GET /metrics
//  GET /transfers[?limit=N]
//  GET /transfers/{id}
type API struct {
	store   transferlog.Store
	handler http.Handler
	log     *logging.Logger
}

// New creates an API over store. Requests are recorded with rec and
// /metrics exposes gatherer.
func New(store transferlog.Store, rec metrics.Recorder, gatherer prometheus.Gatherer) *API {
	api := &API{store: store, log: logging.MustGetLogger("httpapi")}

	r := chi.NewRouter()
	r.Use(middleware.Timeout(time.Second * 30))
	r.Use(middleware.Logger)
	r.Get("/health", api.health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Route("/transfers", func(r chi.Router) {
		r.Get("/", api.transfers)
		r.Get("/{id}", api.transfer)
	})

	api.handler = metrics.Handler(rec, r)
	return api
}

// SetLogger sets the logger used by the API.
func (api *API) SetLogger(log *logging.Logger) {
	api.log = log
}

// ServeHTTP implements http.Handler
func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.handler.ServeHTTP(w, r)
}

// ListenAndServe serves the API on addr until ctx is done.
func (api *API) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: api}

	errCh := make(chan error, 1)
	go func() {
		api.log.Infof("serving HTTP API on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (api *API) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (api *API) transfers(w http.ResponseWriter, r *http.Request) {
	entries, err := api.store.Entries()
	if err != nil {
		api.log.WithError(err).Warn("Failed to list transfers")
		httputil.WriteJSON(w, r, http.StatusInternalServerError, err)
		return
	}
	if q := r.URL.Query().Get("limit"); q != "" {
		limit, err := strconv.Atoi(q)
		if err != nil || limit < 0 {
			httputil.WriteJSON(w, r, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		if limit < len(entries) {
			entries = entries[len(entries)-limit:]
		}
	}
	if entries == nil {
		entries = []*transferlog.Entry{}
	}
	httputil.WriteJSON(w, r, http.StatusOK, entries)
}

func (api *API) transfer(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromParam(r, "id")
	if err != nil {
		httputil.WriteJSON(w, r, http.StatusBadRequest, err)
		return
	}
	entry, err := api.store.Entry(id)
	switch {
	case errors.Is(err, transferlog.ErrNotFound):
		httputil.WriteJSON(w, r, http.StatusNotFound, err)
	case err != nil:
		httputil.WriteJSON(w, r, http.StatusInternalServerError, err)
	default:
		httputil.WriteJSON(w, r, http.StatusOK, entry)
	}
}

func uuidFromParam(r *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, key))
}
