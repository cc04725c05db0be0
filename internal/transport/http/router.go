package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterOptions configures the outer middleware chain.
type RouterOptions struct {
	CORSOrigins []string
	Metrics     http.Handler
	Logger      *slog.Logger
}

// NewRouter configures HTTP routes and the middleware chain around them.
func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/healthz", handler.Health).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}
	r.HandleFunc("/api/auth/login", handler.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", handler.Logout).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/me", handler.Me).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(handler.requireAuth)

	api.HandleFunc("/stream/{hash}/{fileIndex:[0-9]+}", handler.Stream).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/stream/{hash}/{fileIndex:[0-9]+}/info", handler.StreamInfo).Methods(http.MethodGet)

	api.HandleFunc("/downloads", handler.ListDownloads).Methods(http.MethodGet)
	api.HandleFunc("/downloads", handler.AddDownload).Methods(http.MethodPost)
	api.HandleFunc("/downloads/stats", handler.DownloadStats).Methods(http.MethodGet)
	api.HandleFunc("/downloads/{hash}", handler.GetDownload).Methods(http.MethodGet)
	api.HandleFunc("/downloads/{hash}", handler.DeleteDownload).Methods(http.MethodDelete)
	api.HandleFunc("/downloads/{hash}/files", handler.ListDownloadFiles).Methods(http.MethodGet)
	api.HandleFunc("/downloads/{hash}/pause", handler.PauseDownload).Methods(http.MethodPost)
	api.HandleFunc("/downloads/{hash}/resume", handler.ResumeDownload).Methods(http.MethodPost)
	api.HandleFunc("/downloads/{hash}/stream", handler.EnableStreaming).Methods(http.MethodPost)
	api.HandleFunc("/downloads/{hash}/priority", handler.SetFilePriority).Methods(http.MethodPost)

	api.HandleFunc("/library/{kind}", handler.ListLibrary).Methods(http.MethodGet)
	api.HandleFunc("/library/{kind}", handler.AddLibraryItem).Methods(http.MethodPost)
	api.HandleFunc("/library/{kind}/lookup", handler.LookupLibrary).Methods(http.MethodGet)
	api.HandleFunc("/library/{kind}/queue", handler.LibraryQueue).Methods(http.MethodGet)
	api.HandleFunc("/library/{kind}/profiles", handler.LibraryProfiles).Methods(http.MethodGet)
	api.HandleFunc("/library/{kind}/rootfolders", handler.LibraryRootFolders).Methods(http.MethodGet)
	api.HandleFunc("/library/{kind}/{id:[0-9]+}", handler.DeleteLibraryItem).Methods(http.MethodDelete)
	api.HandleFunc("/library/{kind}/{id:[0-9]+}/search", handler.SearchLibraryItem).Methods(http.MethodPost)

	api.HandleFunc("/search", handler.Search).Methods(http.MethodGet)

	traced := otelhttp.NewHandler(loggingMiddleware(logger, r), "gateway",
		otelhttp.WithFilter(func(req *http.Request) bool {
			p := req.URL.Path
			return p != "/metrics" && p != "/healthz"
		}),
	)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(opts.CORSOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Range", "Authorization"},
		ExposedHeaders:   []string{"Content-Range", "Accept-Ranges", "Content-Length", "Retry-After"},
		AllowCredentials: true,
	})
	return recoveryMiddleware(logger, c.Handler(traced))
}

func allowedOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
