package hls_server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"

	"github.com/hlstv/hlstv/remote"
	"github.com/hlstv/hlstv/vsync"
)

type LiveHlsTestsSuite struct {
	suite.Suite
	lhls      *LiveHls
	requested []HlsFileRequest
	healthy   bool
}

func (s *LiveHlsTestsSuite) SetupTest() {
	lhls, err := NewLiveHls(NewLiveHlsConfig())
	s.Require().NoError(err)
	s.lhls = lhls
	s.requested = nil
	s.healthy = true

	files := map[string]string{
		"news/index.m3u8": "#EXTM3U\n",
		"news/index0.ts":  "segment",
	}
	lhls.HandleHlsFile = func(r *HlsFileRequest) (HttpResponse, error) {
		s.requested = append(s.requested, *r)
		channel := r.Channel
		if channel == "" {
			channel = "news"
		}
		data, ok := files[channel+"/"+r.File]
		if !ok {
			return HttpResponse{HttpStatus: http.StatusNotFound}, errors.New("not found")
		}
		return HttpResponse{HttpStatus: http.StatusOK, Reader: io.NopCloser(strings.NewReader(data))}, nil
	}
	lhls.HandleChannels = func(*ChannelsRequest) (HttpResponse, error) {
		return HttpResponse{HttpStatus: http.StatusOK, Reader: io.NopCloser(strings.NewReader(`[{"name":"news"}]`))}, nil
	}
	lhls.ChannelNames = func() []string { return []string{"news", "sport"} }
	lhls.HandleStreamsHealth = func(time.Duration) bool { return s.healthy }
}

func (s *LiveHlsTestsSuite) do(method, url string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.lhls.Handler().ServeHTTP(rr, httptest.NewRequest(method, url, nil))
	return rr
}

func (s *LiveHlsTestsSuite) TestPlaylist() {
	rr := s.do(http.MethodGet, "/hls/news/index.m3u8")
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("application/vnd.apple.mpegurl", rr.Header().Get("Content-Type"))
	s.Equal("no-cache", rr.Header().Get("Cache-Control"))
	s.Equal("*", rr.Header().Get("Access-Control-Allow-Origin"))
	s.Equal("#EXTM3U\n", rr.Body.String())
	s.Equal([]HlsFileRequest{{Channel: "news", File: "index.m3u8"}}, s.requested)
}

func (s *LiveHlsTestsSuite) TestSegment() {
	rr := s.do(http.MethodGet, "/hls/news/index0.ts")
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("video/mp2t", rr.Header().Get("Content-Type"))
	s.Empty(rr.Header().Get("Cache-Control"))
	s.Equal("segment", rr.Body.String())
}

func (s *LiveHlsTestsSuite) TestSingleStream() {
	rr := s.do(http.MethodGet, "/hls/index.m3u8")
	s.Equal(http.StatusOK, rr.Code)
	s.Equal([]HlsFileRequest{{Channel: "", File: "index.m3u8"}}, s.requested)
}

func (s *LiveHlsTestsSuite) TestMissing() {
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/hls/weather/index.m3u8").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/hls/news/index9.ts").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/hls/ne%20ws/index.m3u8").Code)
	s.Len(s.requested, 2)
}

func (s *LiveHlsTestsSuite) TestPreflight() {
	rr := s.do(http.MethodOptions, "/hls/news/index.m3u8")
	s.Equal(http.StatusNoContent, rr.Code)
	s.Equal("*", rr.Header().Get("Access-Control-Allow-Origin"))
	s.Empty(s.requested)
}

func (s *LiveHlsTestsSuite) TestChannels() {
	rr := s.do(http.MethodGet, "/api/channels")
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("application/json", rr.Header().Get("Content-Type"))
	var out []map[string]interface{}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &out))
	s.Equal("news", out[0]["name"])
}

func (s *LiveHlsTestsSuite) TestPlayerPage() {
	rr := s.do(http.MethodGet, "/")
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), ">sport</button>")
	s.Contains(rr.Body.String(), `data-ws="/ws"`)

	cookies := rr.Result().Cookies()
	s.Require().Len(cookies, 1)
	s.Equal(remote.ViewerCookie, cookies[0].Name)
}

func (s *LiveHlsTestsSuite) TestStatic() {
	rr := s.do(http.MethodGet, "/static/player.js")
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "manifest_parsed")
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/static/nope.js").Code)
}

func (s *LiveHlsTestsSuite) TestRemoteUnbound() {
	s.Equal(http.StatusServiceUnavailable, s.do(http.MethodGet, "/ws").Code)
}

func (s *LiveHlsTestsSuite) TestHealth() {
	rr := s.do(http.MethodGet, "/health")
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("Ok", rr.Body.String())

	s.healthy = false
	rr = s.do(http.MethodGet, "/health")
	s.Equal(http.StatusServiceUnavailable, rr.Code)
	s.Equal("HandleStreamsHealth", rr.Body.String())
}

func (s *LiveHlsTestsSuite) TestSaturatedPlaylists() {
	s.lhls.playlistMutex = vsync.NewSemaphore(1, 0)
	s.lhls.playlistMutex.Lock()
	defer s.lhls.playlistMutex.Unlock()
	s.Equal(http.StatusRequestTimeout, s.do(http.MethodGet, "/hls/news/index.m3u8").Code)
}

func TestLiveHlsTestsSuite(t *testing.T) {
	suite.Run(t, new(LiveHlsTestsSuite))
}

func TestHlsFileRequest_ContentType(t *testing.T) {
	cases := map[string]string{
		"index.m3u8": "application/vnd.apple.mpegurl",
		"INDEX.M3U8": "application/vnd.apple.mpegurl",
		"index3.ts":  "video/mp2t",
		"subs.vtt":   "text/vtt",
		"ffmpeg.log": "application/octet-stream",
	}
	for file, expected := range cases {
		r := HlsFileRequest{File: file}
		if got := r.ContentType(); got != expected {
			t.Errorf("%s: expected %s, got %s", file, expected, got)
		}
	}
}

func TestLiveHlsConfig_Urls(t *testing.T) {
	c := NewLiveHlsConfig()
	if got := c.StreamUrl("news"); got != "/hls/news/index.m3u8" {
		t.Errorf("stream url %s", got)
	}
	if got := c.SingleStreamUrl(); got != "/hls/index.m3u8" {
		t.Errorf("single stream url %s", got)
	}
}
