// ABOUTME: HTTP server wiring the gin router, handlers and websocket hub
// ABOUTME: Optional dependencies (history, logos, analytics, peers) may be nil
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harperreed/radiowatch/internal/analytics"
	"github.com/harperreed/radiowatch/internal/discovery"
	"github.com/harperreed/radiowatch/internal/sampling"
	"github.com/harperreed/radiowatch/internal/session"
	"github.com/harperreed/radiowatch/internal/station"
	"github.com/harperreed/radiowatch/internal/store"
)

// History lists stored upload outcomes
type History interface {
	Recent(ctx context.Context, stationID string, limit int) ([]store.Record, error)
}

// Logos resolves a logo URL to a cached file
type Logos interface {
	Path(ctx context.Context, url string) (string, error)
}

// Analytics serves the analytics documents
type Analytics interface {
	Artists() (*analytics.ArtistReport, error)
	MultiChannel() (*analytics.MultiChannelReport, error)
	Load(ctx context.Context) error
}

// Peers finds other monitors on the LAN
type Peers interface {
	Browse(ctx context.Context, timeout time.Duration) ([]discovery.Peer, error)
}

// Config holds the server dependencies
type Config struct {
	Session   *session.Session
	History   History
	Logos     Logos
	Analytics Analytics
	Peers     Peers
	Debug     bool
}

// Server is the control API
type Server struct {
	cfg    Config
	engine *gin.Engine
	hub    *Hub
	http   *http.Server
}

// StationView is one station as served by the API
type StationView struct {
	station.Station
	State    station.AudioState `json:"state"`
	Sampling sampling.Stats     `json:"sampling"`
}

// Snapshot is the full state pushed over the websocket
type Snapshot struct {
	Stations []StationView  `json:"stations"`
	Summary  session.Summary `json:"summary"`
	At       time.Time       `json:"at"`
}

// New creates the server and subscribes the websocket feed to state changes
func New(cfg Config) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{cfg: cfg}
	s.hub = NewHub(s.snapshot, cfg.Debug)
	s.engine = s.routes()

	cfg.Session.Registry.OnChange(s.hub.Notify)
	cfg.Session.Sampler.OnOutcome(func(sampling.Outcome) { s.hub.Notify() })

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub returns the websocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves on addr until Shutdown
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Control API listening on %s", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control API failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and closes every websocket
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if s.cfg.Debug {
		r.Use(gin.Logger())
	}

	r.GET("/healthz", s.healthz)
	r.GET("/ws", s.hub.Serve)

	api := r.Group("/api")
	{
		api.GET("/summary", s.summary)
		api.GET("/peers", s.peers)

		stations := api.Group("/stations")
		stations.GET("", s.listStations)
		stations.GET("/:id", s.getStation)
		stations.POST("/:id/play", s.togglePlay)
		stations.PUT("/:id/volume", s.setVolume)
		stations.POST("/:id/focus", s.toggleFocus)
		stations.GET("/:id/samples", s.samples)
		stations.GET("/:id/logo", s.logo)

		playback := api.Group("/playback")
		playback.POST("/play-all", s.playAll)
		playback.POST("/pause-all", s.pauseAll)
		playback.POST("/stop-all", s.stopAll)
		playback.POST("/mute-toggle", s.muteToggle)

		data := api.Group("/analytics")
		data.GET("/artists", s.artists)
		data.GET("/multi-channel", s.multiChannel)
		data.POST("/reload", s.reloadAnalytics)
	}

	return r
}

func (s *Server) view(st session.StationState) StationView {
	return StationView{
		Station:  st.Station,
		State:    st.State,
		Sampling: s.cfg.Session.Sampler.Stats(st.Station.ID),
	}
}

func (s *Server) snapshot() Snapshot {
	states := s.cfg.Session.Registry.States()
	views := make([]StationView, 0, len(states))
	for _, st := range states {
		views = append(views, s.view(st))
	}
	return Snapshot{
		Stations: views,
		Summary:  s.cfg.Session.Registry.Summary(),
		At:       time.Now().UTC(),
	}
}
