package routes

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/cppla/socialbbs/config"
	"github.com/cppla/socialbbs/upload"
	"github.com/cppla/socialbbs/utils"
)

type routerSuite struct {
	suite.Suite
	cfg    config.AppConfig
	store  *upload.MemoryStore
	server *httptest.Server
	token  string
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(routerSuite))
}

func (s *routerSuite) SetupTest() {
	s.cfg = config.AppConfig{
		JWTSecret:                "test-secret",
		TokenTTLHours:            1,
		GinMode:                  "test",
		RateLimitPerMinute:       1000,
		AllowedOrigins:           []string{"*"},
		UploadBackend:            "memory",
		UploadPublicBase:         "/uploads",
		UploadMaxFileSizeBytes:   5 * 1024 * 1024,
		UploadMaxFileCount:       1,
		UploadRateLimitPerMinute: 1000,
	}
	config.Set(s.cfg)

	store, err := NewStore(s.cfg)
	s.Require().NoError(err)
	s.store = store.(*upload.MemoryStore)

	r := SetupRouter(s.cfg, Deps{Store: s.store, AccessLog: zap.NewNop()})
	s.server = httptest.NewServer(r)

	s.token, err = utils.GenerateToken(s.cfg.JWTSecret, 1, "alice", time.Hour)
	s.Require().NoError(err)
}

func (s *routerSuite) TearDownTest() {
	s.server.Close()
}

func (s *routerSuite) do(method, path string, body *bytes.Buffer, contentType string, auth bool) *http.Response {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, s.server.URL+path, body)
	s.Require().NoError(err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func fileBody(field, filename, mimeType string, content []byte) (*bytes.Buffer, string) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	_ = w.WriteField("title", "hello")
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", mimeType)
	part, _ := w.CreatePart(h)
	_, _ = part.Write(content)
	_ = w.Close()
	return buf, w.FormDataContentType()
}

func (s *routerSuite) TestHealth() {
	resp := s.do(http.MethodGet, "/health", nil, "", false)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().NotEmpty(resp.Header.Get("X-Request-ID"))
}

func (s *routerSuite) TestMetrics() {
	resp := s.do(http.MethodGet, "/metrics", nil, "", false)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Contains(readBody(resp), "go_goroutines")
}

func (s *routerSuite) TestUploadRequiresAuth() {
	body, ct := fileBody("image", "a.png", "image/png", []byte("png"))
	resp := s.do(http.MethodPost, "/api/v1/posts", body, ct, false)
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Require().Zero(s.store.Len())
}

func (s *routerSuite) TestCreatePostRejectsNonImage() {
	body, ct := fileBody("image", "a.txt", "text/plain", []byte("text"))
	resp := s.do(http.MethodPost, "/api/v1/posts", body, ct, true)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	s.Require().JSONEq(`{"success":false,"message":"Only image files are allowed (jpeg, jpg, png, gif, webp)"}`, readBody(resp))
	s.Require().Zero(s.store.Len())
}

func (s *routerSuite) TestAddPhotosOverLimit() {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for i := 0; i < 5; i++ {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="photos"; filename="p.gif"`)
		h.Set("Content-Type", "image/gif")
		part, _ := w.CreatePart(h)
		_, _ = part.Write([]byte("GIF89a"))
	}
	_ = w.Close()

	resp := s.do(http.MethodPost, "/api/v1/posts/1/photos", buf, w.FormDataContentType(), true)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	s.Require().JSONEq(`{"success":false,"message":"Too many files. Maximum is 4 files"}`, readBody(resp))
	s.Require().Zero(s.store.Len())
}

func (s *routerSuite) TestProfileUnexpectedField() {
	body, ct := fileBody("banner", "b.png", "image/png", []byte("png"))
	resp := s.do(http.MethodPatch, "/api/v1/profile", body, ct, true)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	s.Require().JSONEq(`{"success":false,"message":"Unexpected field: banner"}`, readBody(resp))
}

func (s *routerSuite) TestCommentRejectsFiles() {
	body, ct := fileBody("image", "a.png", "image/png", []byte("png"))
	resp := s.do(http.MethodPost, "/api/v1/posts/1/comments", body, ct, true)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	s.Require().JSONEq(`{"success":false,"message":"Unexpected field: image"}`, readBody(resp))
}

func (s *routerSuite) TestServesMemoryUploads() {
	f, err := s.store.Put(context.Background(), strings.NewReader("GIF89a"), ".gif")
	s.Require().NoError(err)

	resp := s.do(http.MethodGet, f.URL, nil, "", false)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Equal("image/gif", resp.Header.Get("Content-Type"))
	s.Require().Equal("nosniff", resp.Header.Get("X-Content-Type-Options"))
	s.Require().Empty(resp.Header.Get("Content-Disposition"))
	s.Require().Equal("GIF89a", readBody(resp))

	resp = s.do(http.MethodGet, "/uploads/missing.gif", nil, "", false)
	s.Require().Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *routerSuite) requireDownloadOnly(resp *http.Response) {
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().NotContains(resp.Header.Get("Content-Type"), "text/html")
	s.Require().Equal("application/octet-stream", resp.Header.Get("Content-Type"))
	s.Require().Equal("attachment", resp.Header.Get("Content-Disposition"))
	s.Require().Equal("nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func (s *routerSuite) TestMemoryUploadsNeverServedAsMarkup() {
	for _, ext := range []string{".html", ".svg", ".htm"} {
		f, err := s.store.Put(context.Background(), strings.NewReader("<script>alert(document.cookie)</script>"), ext)
		s.Require().NoError(err)
		s.requireDownloadOnly(s.do(http.MethodGet, f.URL, nil, "", false))
	}
}

func (s *routerSuite) TestDiskUploadsServedSafely() {
	s.server.Close()
	cfg := s.cfg
	cfg.UploadBackend = "disk"
	cfg.UploadDir = s.T().TempDir()
	store, err := NewStore(cfg)
	s.Require().NoError(err)
	s.server = httptest.NewServer(SetupRouter(cfg, Deps{Store: store, AccessLog: zap.NewNop()}))

	evil, err := store.Put(context.Background(), strings.NewReader("<html><script>alert(1)</script></html>"), ".html")
	s.Require().NoError(err)
	resp := s.do(http.MethodGet, evil.URL, nil, "", false)
	s.requireDownloadOnly(resp)
	s.Require().Equal("<html><script>alert(1)</script></html>", readBody(resp))

	img, err := store.Put(context.Background(), strings.NewReader("GIF89a"), ".gif")
	s.Require().NoError(err)
	resp = s.do(http.MethodGet, img.URL, nil, "", false)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Equal("image/gif", resp.Header.Get("Content-Type"))
	s.Require().Equal("nosniff", resp.Header.Get("X-Content-Type-Options"))
	s.Require().Empty(resp.Header.Get("Content-Disposition"))
	s.Require().Equal("GIF89a", readBody(resp))

	resp = s.do(http.MethodGet, "/uploads/missing.gif", nil, "", false)
	s.Require().Equal(http.StatusNotFound, resp.StatusCode)
	s.Require().Equal("application/json; charset=utf-8", resp.Header.Get("Content-Type"))
}

func (s *routerSuite) TestUnknownRoute() {
	resp := s.do(http.MethodGet, "/api/v1/nope", nil, "", false)
	s.Require().Equal(http.StatusNotFound, resp.StatusCode)
	s.Require().JSONEq(`{"success":false,"message":"route not found"}`, readBody(resp))
}
