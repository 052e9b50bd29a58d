// Package server exposes the map viewer, vector layers, and the basemap tile
// proxy over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/HammamiKhaled/geospython/internal/basemap"
	"github.com/HammamiKhaled/geospython/internal/postgis"
	"github.com/HammamiKhaled/geospython/internal/store"
	"github.com/HammamiKhaled/geospython/internal/tiles"
	"github.com/HammamiKhaled/geospython/internal/vector"
	"github.com/HammamiKhaled/geospython/internal/webmap"
)

// Options configures the server.
type Options struct {
	AllowedOrigins []string
	Proxy          *tiles.Proxy
	Store          store.Store
	PostGIS        *postgis.Provider
	Viewer         *webmap.Map
}

// Server routes map, layer, and tile requests.
type Server struct {
	router   chi.Router
	proxy    *tiles.Proxy
	store    store.Store
	provider *postgis.Provider
	viewer   *webmap.Map

	mu     sync.RWMutex
	layers map[string]*vector.Layer
}

// New assembles the router with CORS and panic recovery middleware.
func New(opts Options) *Server {
	s := &Server{
		proxy:    opts.Proxy,
		store:    opts.Store,
		provider: opts.PostGIS,
		viewer:   opts.Viewer,
		layers:   make(map[string]*vector.Layer),
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleViewer)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/basemaps", s.handleBasemaps)
	r.Get("/basemap/{name}/{z}/{x}/{y}.{ext}", s.handleTile)
	r.Get("/layers", s.handleLayerList)
	r.Get("/layers/{name}.geojson", s.handleLayerGeoJSON)
	r.Get("/layers/{name}/stats", s.handleLayerStats)

	if s.provider != nil {
		r.Get("/postgis/{layer}.geojson", s.handlePostGISLayer)
		r.Get("/postgis/{layer}/containing", s.handlePostGISContaining)
	}

	s.router = r
	return s
}

// RegisterLayer makes a vector layer available under /layers/{name}.geojson.
func (s *Server) RegisterLayer(name string, layer *vector.Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers[name] = layer
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server: shutdown")
		}
		return nil
	case err := <-errCh:
		if eris.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	m := s.viewer
	if m == nil {
		m = s.defaultViewer()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := m.RenderHTML(w); err != nil {
		zap.L().Error("server: render viewer", zap.Error(err))
	}
}

// defaultViewer builds a map over the local tile proxy with every registered
// layer added.
func (s *Server) defaultViewer() *webmap.Map {
	m := webmap.New(webmap.WithTitle("geospython"))
	m.AddTileLayer("/basemap/"+basemap.DefaultName+"/{z}/{x}/{y}.png", basemap.DefaultName, "")

	s.mu.RLock()
	names := make([]string, 0, len(s.layers))
	for name := range s.layers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := m.AddGeoJSON(s.layers[name].Features, webmap.WithName(name)); err != nil {
			zap.L().Warn("server: skip layer in viewer", zap.String("layer", name), zap.Error(err))
		}
	}
	s.mu.RUnlock()

	if len(names) > 0 {
		m.AddLayerControl()
	}
	return m
}

// statsResponse is the /stats payload.
type statsResponse struct {
	Cache       tiles.CacheStats `json:"cache"`
	TilesStored int64            `json:"tiles_stored"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{}
	if s.proxy != nil {
		resp.Cache = s.proxy.CacheStats()
	}
	if s.store != nil {
		n, err := s.store.TileCount(r.Context())
		if err != nil {
			zap.L().Warn("server: tile count", zap.Error(err))
		} else {
			resp.TilesStored = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBasemaps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"basemaps": basemap.Names()})
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	if s.proxy == nil {
		http.Error(w, "tile proxy disabled", http.StatusNotFound)
		return
	}

	name := chi.URLParam(r, "name")
	z, errZ := strconv.Atoi(chi.URLParam(r, "z"))
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errZ != nil || errX != nil || errY != nil {
		http.Error(w, "invalid tile coordinates", http.StatusBadRequest)
		return
	}

	data, contentType, err := s.proxy.Fetch(r.Context(), name, tiles.Coord{Z: z, X: x, Y: y})
	if err != nil {
		zap.L().Error("server: tile fetch failed",
			zap.String("basemap", name),
			zap.Int("z", z), zap.Int("x", x), zap.Int("y", y),
			zap.Error(err),
		)
		http.Error(w, "tile fetch failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}

// layerInfo is one entry in the /layers listing.
type layerInfo struct {
	Name     string `json:"name"`
	Source   string `json:"source,omitempty"`
	Features int    `json:"features"`
}

func (s *Server) handleLayerList(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	infos := make([]layerInfo, 0, len(s.layers))
	for name, layer := range s.layers {
		infos = append(infos, layerInfo{
			Name:     name,
			Source:   layer.Source,
			Features: len(layer.Features.Features),
		})
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	writeJSON(w, http.StatusOK, map[string][]layerInfo{"layers": infos})
}

func (s *Server) lookupLayer(name string) (*vector.Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	layer, ok := s.layers[name]
	return layer, ok
}

func (s *Server) handleLayerGeoJSON(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	layer, ok := s.lookupLayer(name)
	if !ok {
		http.Error(w, "unknown layer", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(layer.Features); err != nil {
		zap.L().Warn("server: encode layer", zap.String("layer", name), zap.Error(err))
	}
}

func (s *Server) handleLayerStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	layer, ok := s.lookupLayer(name)
	if !ok {
		http.Error(w, "unknown layer", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, vector.Summarize(layer.Features))
}

func (s *Server) handlePostGISLayer(w http.ResponseWriter, r *http.Request) {
	layer := chi.URLParam(r, "layer")

	bbox, err := parseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := 1000
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	fc, err := s.provider.FeaturesInBBox(r.Context(), layer, bbox, limit)
	if err != nil {
		zap.L().Error("server: postgis bbox query", zap.String("layer", layer), zap.Error(err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		zap.L().Warn("server: encode postgis layer", zap.Error(err))
	}
}

func (s *Server) handlePostGISContaining(w http.ResponseWriter, r *http.Request) {
	layer := chi.URLParam(r, "layer")

	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		http.Error(w, "lat and lng query parameters required", http.StatusBadRequest)
		return
	}

	feature, err := s.provider.FeatureContaining(r.Context(), layer, lng, lat)
	if err != nil {
		zap.L().Error("server: postgis containing query", zap.String("layer", layer), zap.Error(err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if feature == nil {
		http.Error(w, "no feature contains the point", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(feature); err != nil {
		zap.L().Warn("server: encode postgis feature", zap.Error(err))
	}
}

// parseBBox parses "minLng,minLat,maxLng,maxLat".
func parseBBox(raw string) (postgis.BBox, error) {
	if raw == "" {
		return postgis.BBox{}, eris.New("bbox query parameter required")
	}

	var bbox postgis.BBox
	fields := [4]*float64{&bbox.MinLng, &bbox.MinLat, &bbox.MaxLng, &bbox.MaxLat}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return postgis.BBox{}, eris.New("bbox must be minLng,minLat,maxLng,maxLat")
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return postgis.BBox{}, eris.Errorf("invalid bbox value %q", part)
		}
		*fields[i] = v
	}
	return bbox, nil
}
