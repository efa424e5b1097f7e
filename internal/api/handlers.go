// ABOUTME: HTTP handlers for station state, playback commands and data endpoints
// ABOUTME: Unknown stations answer 404; optional features answer 503 when disabled
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harperreed/radiowatch/internal/analytics"
	"github.com/harperreed/radiowatch/internal/discovery"
	"github.com/harperreed/radiowatch/internal/session"
	"github.com/harperreed/radiowatch/internal/store"
	"github.com/harperreed/radiowatch/internal/version"
)

const peerBrowseTimeout = 2 * time.Second

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) summary(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Session.Registry.Summary())
}

func (s *Server) listStations(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot().Stations)
}

// stationView answers with the station's current view, or 404
func (s *Server) stationView(c *gin.Context, status int) {
	id := c.Param("id")
	st, ok := s.cfg.Session.Registry.Station(id)
	if !ok {
		notFound(c, "unknown station: "+id)
		return
	}
	c.JSON(status, s.view(session.StationState{Station: st, State: s.cfg.Session.Registry.State(id)}))
}

func (s *Server) getStation(c *gin.Context) {
	s.stationView(c, http.StatusOK)
}

// command runs err-returning station commands and maps ErrUnknownStation to 404
func (s *Server) command(c *gin.Context, err error) {
	if errors.Is(err, session.ErrUnknownStation) {
		notFound(c, err.Error())
		return
	}
	if err != nil {
		internalError(c, err.Error())
		return
	}
	s.stationView(c, http.StatusOK)
}

func (s *Server) togglePlay(c *gin.Context) {
	s.command(c, s.cfg.Session.TogglePlay(c.Request.Context(), c.Param("id")))
}

func (s *Server) toggleFocus(c *gin.Context) {
	s.command(c, s.cfg.Session.ToggleFocus(c.Request.Context(), c.Param("id")))
}

type volumeRequest struct {
	Volume *float64 `json:"volume" binding:"required"`
}

func (s *Server) setVolume(c *gin.Context) {
	var req volumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {\"volume\": number}")
		return
	}
	if *req.Volume < 0 || *req.Volume > 1 {
		badRequest(c, "volume must be within [0, 1]")
		return
	}
	s.command(c, s.cfg.Session.SetVolume(c.Param("id"), *req.Volume))
}

func (s *Server) playAll(c *gin.Context) {
	if err := s.cfg.Session.PlayAll(c.Request.Context()); err != nil {
		internalError(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.cfg.Session.Registry.Summary())
}

func (s *Server) pauseAll(c *gin.Context) {
	if err := s.cfg.Session.PauseAll(c.Request.Context()); err != nil {
		internalError(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.cfg.Session.Registry.Summary())
}

func (s *Server) stopAll(c *gin.Context) {
	if err := s.cfg.Session.StopAll(c.Request.Context()); err != nil {
		internalError(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.cfg.Session.Registry.Summary())
}

func (s *Server) muteToggle(c *gin.Context) {
	s.cfg.Session.ToggleVolumeAll()
	c.JSON(http.StatusOK, s.cfg.Session.Registry.Summary())
}

func (s *Server) samples(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.cfg.Session.Registry.Station(id); !ok {
		notFound(c, "unknown station: "+id)
		return
	}
	if s.cfg.History == nil {
		unavailable(c, "upload history is disabled")
		return
	}

	limit := store.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.cfg.History.Recent(c.Request.Context(), id, limit)
	if err != nil {
		internalError(c, err.Error())
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) logo(c *gin.Context) {
	id := c.Param("id")
	st, ok := s.cfg.Session.Registry.Station(id)
	if !ok {
		notFound(c, "unknown station: "+id)
		return
	}
	if st.Logo == "" || s.cfg.Logos == nil {
		notFound(c, "no logo for station: "+id)
		return
	}

	path, err := s.cfg.Logos.Path(c.Request.Context(), st.Logo)
	if err != nil {
		badGateway(c, err.Error())
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(path)
}

func (s *Server) artists(c *gin.Context) {
	if s.cfg.Analytics == nil {
		unavailable(c, analytics.ErrNotLoaded.Error())
		return
	}
	report, err := s.cfg.Analytics.Artists()
	if err != nil {
		unavailable(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) multiChannel(c *gin.Context) {
	if s.cfg.Analytics == nil {
		unavailable(c, analytics.ErrNotLoaded.Error())
		return
	}
	report, err := s.cfg.Analytics.MultiChannel()
	if err != nil {
		unavailable(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) reloadAnalytics(c *gin.Context) {
	if s.cfg.Analytics == nil {
		unavailable(c, "analytics are not configured")
		return
	}
	if err := s.cfg.Analytics.Load(c.Request.Context()); err != nil {
		badGateway(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

func (s *Server) peers(c *gin.Context) {
	if s.cfg.Peers == nil {
		unavailable(c, "discovery is disabled")
		return
	}
	found, err := s.cfg.Peers.Browse(c.Request.Context(), peerBrowseTimeout)
	if err != nil {
		badGateway(c, err.Error())
		return
	}
	if found == nil {
		found = []discovery.Peer{}
	}
	c.JSON(http.StatusOK, found)
}
