package web

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mogaika/bvh_player/metrics"
)

const streamWriteTimeout = 10 * time.Second

// streamCommand is sent by clients to steer playback.
type streamCommand struct {
	Cmd   string  `json:"cmd"`
	Time  float64 `json:"time"`
	Speed float64 `json:"speed"`
}

// playhead advances with wall time scaled by speed unless paused.
type playhead struct {
	mu     sync.Mutex
	base   float64
	since  time.Time
	speed  float64
	paused bool
}

func (p *playhead) now(at time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return p.base
	}
	return p.base + at.Sub(p.since).Seconds()*p.speed
}

func (p *playhead) apply(cmd streamCommand, at time.Time) {
	current := p.now(at)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = current
	p.since = at
	switch cmd.Cmd {
	case "seek":
		p.base = cmd.Time
	case "pause":
		p.paused = true
	case "play":
		p.paused = false
	case "speed":
		if !math.IsNaN(cmd.Speed) && !math.IsInf(cmd.Speed, 0) {
			p.speed = cmd.Speed
		}
	}
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return def
}

// HandlerPoseStream pushes propagated poses at the configured rate. Query
// parameters fps, start and speed override the defaults.
func (s *Server) HandlerPoseStream(w http.ResponseWriter, r *http.Request) {
	fps := int(queryFloat(r, "fps", float64(s.cfg.StreamFPS)))
	if fps <= 0 || fps > 240 {
		fps = s.cfg.StreamFPS
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("pose stream upgrade failed")
		return
	}
	defer conn.Close()

	log := s.log.With().Str("stream", uuid.NewString()).Logger()
	log.Info().Int("fps", fps).Str("remote", r.RemoteAddr).Msg("pose stream opened")
	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	head := &playhead{
		base:  queryFloat(r, "start", 0),
		since: time.Now(),
		speed: queryFloat(r, "speed", 1),
	}

	closed := make(chan struct{})
	go readCommands(conn, head, closed, log)

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			log.Info().Msg("pose stream closed")
			return
		case at := <-ticker.C:
			pose, err := s.session.PoseAt(head.now(at))
			if err != nil {
				log.Warn().Err(err).Msg("pose failed")
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()),
					time.Now().Add(time.Second))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(pose); err != nil {
				log.Debug().Err(err).Msg("pose stream write failed")
				return
			}
		}
	}
}

func readCommands(conn *websocket.Conn, head *playhead, closed chan<- struct{}, log zerolog.Logger) {
	defer close(closed)
	for {
		var cmd streamCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("pose stream read failed")
			}
			return
		}
		log.Debug().Str("cmd", cmd.Cmd).Float64("time", cmd.Time).Msg("stream command")
		head.apply(cmd, time.Now())
	}
}
