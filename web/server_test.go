package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/bvh_player/bvh"
	"github.com/mogaika/bvh_player/config"
	"github.com/mogaika/bvh_player/player"
	"github.com/mogaika/bvh_player/status"
)

const armMotion = `HIERARCHY
ROOT Hips
{
	OFFSET 0 0 0
	CHANNELS 6 Xposition Yposition Zposition Zrotation Xrotation Yrotation
	JOINT Arm
	{
		OFFSET 0 1 0
		CHANNELS 1 Zrotation
		End Site
		{
			OFFSET 0 1 0
		}
	}
}
MOTION
Frames: 2
Frame Time: 1
0 0 0 0 0 0 0
2 0 0 0 0 0 90
`

func newTestServer(t *testing.T) (*httptest.Server, config.Config) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "arm.bvh")
	require.NoError(t, os.WriteFile(path, []byte(armMotion), 0o644))

	session, err := player.Load(path, bvh.Options{}, false)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.StaticDir = dir
	cfg.ExportDir = filepath.Join(dir, "export")
	cfg.StreamFPS = 60

	hub := status.NewHub()
	srv := httptest.NewServer(NewServer(session, hub, cfg).Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, cfg
}

func getJson(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestSkeletonAndMotion(t *testing.T) {
	srv, _ := newTestServer(t)

	var sk skeletonResponse
	assert.Equal(t, http.StatusOK, getJson(t, srv.URL+"/json/skeleton", &sk))
	require.Len(t, sk.Joints, 3)
	assert.Equal(t, "ArmEnd", sk.Joints[2].Name)
	assert.Equal(t, 2, sk.Motion.Frames)
	assert.NotEmpty(t, sk.Session)

	var m player.MotionInfo
	assert.Equal(t, http.StatusOK, getJson(t, srv.URL+"/json/motion", &m))
	assert.Equal(t, 2.0, m.Duration)
}

func TestPoseEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	var pose player.Pose
	assert.Equal(t, http.StatusOK, getJson(t, srv.URL+"/json/pose/0.5", &pose))
	require.Len(t, pose.Joints, 3)
	assert.InDelta(t, 1.0, pose.Joints[0].Position[0], 1e-9)

	var sample []float64
	assert.Equal(t, http.StatusOK, getJson(t, srv.URL+"/json/sample/1", &sample))
	assert.Len(t, sample, 7)

	assert.Equal(t, http.StatusBadRequest, getJson(t, srv.URL+"/json/pose/abc", nil))
	assert.Equal(t, http.StatusOK, getJson(t, srv.URL+"/json/frame/1", &pose))
	assert.Equal(t, 1, pose.Frame)
	assert.Equal(t, http.StatusNotFound, getJson(t, srv.URL+"/json/frame/9", nil))
	assert.Equal(t, http.StatusBadRequest, getJson(t, srv.URL+"/json/frame/x", nil))
}

func TestPoseState(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/json/pose", "application/json", strings.NewReader(`{"state":[0,0,0,0,0,0,1.5707963267948966]}`))
	require.NoError(t, err)
	var pose player.Pose
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pose))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, -1.0, pose.Joints[2].Position[0], 1e-9)

	resp, err = http.Post(srv.URL+"/json/pose", "application/json", strings.NewReader(`{"state":[1,2]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/json/pose", "application/json", strings.NewReader(`{"bogus":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportEndpoints(t *testing.T) {
	srv, cfg := newTestServer(t)

	resp, err := http.Get(srv.URL + "/action/export/gltf/0.5")
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "pose_0.500.glb")
	assert.Equal(t, "glTF", string(data[:4]))

	resp, err = http.Get(srv.URL + "/action/export/obj/0")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/action/export/fbx/1", "", nil)
	require.NoError(t, err)
	var saved exportResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	resp.Body.Close()
	assert.Equal(t, filepath.Join(cfg.ExportDir, "arm_1.000.fbx"), saved.Path)
	assert.FileExists(t, saved.Path)
}

func TestMetricsAndReload(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/action/reload", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "bvh_player_loads_total")
}

func TestPoseStream(t *testing.T) {
	srv, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/pose?fps=100"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var pose player.Pose
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&pose))
	assert.Len(t, pose.Joints, 3)

	require.NoError(t, conn.WriteJSON(streamCommand{Cmd: "pause"}))
	require.NoError(t, conn.WriteJSON(streamCommand{Cmd: "seek", Time: 1.5}))

	seeked := false
	for i := 0; i < 200 && !seeked; i++ {
		require.NoError(t, conn.ReadJSON(&pose))
		seeked = pose.Time == 1.5
	}
	assert.True(t, seeked)
	assert.Equal(t, 1, pose.Frame)
}

func TestPlayhead(t *testing.T) {
	start := time.Now()
	head := &playhead{base: 1, since: start, speed: 2}
	assert.InDelta(t, 2.0, head.now(start.Add(500*time.Millisecond)), 1e-9)

	head.apply(streamCommand{Cmd: "pause"}, start.Add(time.Second))
	assert.InDelta(t, 3.0, head.now(start.Add(10*time.Second)), 1e-9)

	head.apply(streamCommand{Cmd: "play"}, start.Add(10*time.Second))
	head.apply(streamCommand{Cmd: "speed", Speed: 1}, start.Add(10*time.Second))
	assert.InDelta(t, 4.0, head.now(start.Add(11*time.Second)), 1e-9)
}
