package web

import (
	"bytes"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/mogaika/bvh_player/player"
	"github.com/mogaika/bvh_player/webutils"
)

type skeletonResponse struct {
	Session  string             `json:"session"`
	File     string             `json:"file,omitempty"`
	LoadedAt time.Time          `json:"loaded_at"`
	Motion   player.MotionInfo  `json:"motion"`
	Joints   []player.JointInfo `json:"joints"`
}

type poseStateRequest struct {
	State []float64 `json:"state"`
}

type exportResponse struct {
	Path string `json:"path"`
}

func parseTime(r *http.Request) (float64, error) {
	raw := mux.Vars(r)["time"]
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, errors.Errorf("time %q is not a finite number", raw)
	}
	return t, nil
}

func (s *Server) skeleton() *skeletonResponse {
	return &skeletonResponse{
		Session:  s.session.ID().String(),
		File:     s.session.Path(),
		LoadedAt: s.session.LoadedAt(),
		Motion:   s.session.Motion(),
		Joints:   s.session.Joints(),
	}
}

func (s *Server) HandlerSkeleton(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJson(w, s.skeleton())
}

func (s *Server) HandlerDumpSkeleton(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJsonFile(w, s.skeleton(), "skeleton")
}

func (s *Server) HandlerMotion(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJson(w, s.session.Motion())
}

func (s *Server) HandlerSample(w http.ResponseWriter, r *http.Request) {
	t, err := parseTime(r)
	if err != nil {
		webutils.WriteErrorCode(w, err, http.StatusBadRequest)
		return
	}
	sample, err := s.session.Sample(t)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, sample)
}

func (s *Server) HandlerPoseAt(w http.ResponseWriter, r *http.Request) {
	t, err := parseTime(r)
	if err != nil {
		webutils.WriteErrorCode(w, err, http.StatusBadRequest)
		return
	}
	pose, err := s.session.PoseAt(t)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, pose)
}

func (s *Server) HandlerFrame(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["index"]
	index, err := strconv.Atoi(raw)
	if err != nil {
		webutils.WriteErrorCode(w, errors.Errorf("frame %q is not integer", raw), http.StatusBadRequest)
		return
	}
	pose, err := s.session.PoseAtFrame(index)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, pose)
}

func (s *Server) HandlerPoseState(w http.ResponseWriter, r *http.Request) {
	var req poseStateRequest
	if err := webutils.ReadJson(r, &req); err != nil {
		webutils.WriteErrorCode(w, err, http.StatusBadRequest)
		return
	}
	pose, err := s.session.Pose(req.State)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, pose)
}

func exportFormat(r *http.Request) (string, error) {
	format := mux.Vars(r)["format"]
	if format != player.FormatGLTF && format != player.FormatFBX {
		return "", errors.Errorf("unknown export format %q", format)
	}
	return format, nil
}

func exportFileName(format string, t float64) string {
	ext := format
	if format == player.FormatGLTF {
		ext = "glb"
	}
	return "pose_" + strconv.FormatFloat(t, 'f', 3, 64) + "." + ext
}

func (s *Server) HandlerExport(w http.ResponseWriter, r *http.Request) {
	format, err := exportFormat(r)
	if err != nil {
		webutils.WriteErrorCode(w, err, http.StatusBadRequest)
		return
	}
	t, err := parseTime(r)
	if err != nil {
		webutils.WriteErrorCode(w, err, http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := s.session.Export(&buf, format, t); err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to export %q", format))
		return
	}
	webutils.WriteFile(w, &buf, exportFileName(format, t))
}

func (s *Server) HandlerExportSave(w http.ResponseWriter, r *http.Request) {
	format, err := exportFormat(r)
	if err != nil {
		webutils.WriteErrorCode(w, err, http.StatusBadRequest)
		return
	}
	t, err := parseTime(r)
	if err != nil {
		webutils.WriteErrorCode(w, err, http.StatusBadRequest)
		return
	}

	s.hub.Progress(0, "exporting %s at %.3fs", format, t)
	path, err := s.session.ExportFile(s.cfg.ExportDir, format, t)
	if err != nil {
		s.hub.Error("export failed: %v", err)
		webutils.WriteError(w, err)
		return
	}
	s.hub.Progress(1, "exported %s", path)
	webutils.WriteJson(w, &exportResponse{Path: path})
}

func (s *Server) HandlerReload(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reload(); err != nil {
		s.hub.Error("reload failed: %v", err)
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, s.session.Motion())
}

func (s *Server) HandlerStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("status upgrade failed")
		return
	}
	s.hub.Serve(conn)
}
