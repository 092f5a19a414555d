package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicgraph/orgscope/internal/pipeline"
	"github.com/civicgraph/orgscope/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for profiles and research runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/profiles", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			limit, _ := strconv.Atoi(q.Get("limit"))
			offset, _ := strconv.Atoi(q.Get("offset"))
			profiles, err := env.Store.ListProfiles(req.Context(), store.ListFilter{
				Query:  q.Get("q"),
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				zap.L().Error("list profiles failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
				return
			}
			writeJSON(w, http.StatusOK, profiles)
		})

		r.Get("/api/profiles/{name}", func(w http.ResponseWriter, req *http.Request) {
			name, err := url.PathUnescape(chi.URLParam(req, "name"))
			if err != nil || strings.TrimSpace(name) == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid name"})
				return
			}
			profile, err := env.Store.GetProfile(req.Context(), name)
			if err != nil {
				zap.L().Error("get profile failed", zap.String("name", name), zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
				return
			}
			if profile == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
				return
			}
			if req.URL.Query().Get("format") == "markdown" {
				w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
				_, _ = w.Write([]byte(pipeline.RenderReport(profile)))
				return
			}
			writeJSON(w, http.StatusOK, profile)
		})

		r.Post("/api/research", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			name := strings.TrimSpace(body.Name)
			if name == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
				return
			}

			result, err := env.Pipeline.Run(req.Context(), name)
			if err != nil {
				zap.L().Error("research run failed", zap.String("name", name), zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "run failed"})
				return
			}
			writeJSON(w, http.StatusOK, result)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
