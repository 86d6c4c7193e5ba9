package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	jwtlib "FCProject/tools/security"

	"github.com/gin-gonic/gin"
)

func newAuthRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	opts := jwtlib.DefaultOptions([]byte("unit-test-secret"))
	Configure(opts)
	token, _, _, err := jwtlib.Generate(opts, "alice", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	r := gin.New()
	r.GET("/whoami", Middleware(DefaultOptions()), func(c *gin.Context) {
		c.String(http.StatusOK, CallerUID(c))
	})
	return r, token
}

func serveAuth(r *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestMiddlewareAcceptsBearerScheme(t *testing.T) {
	r, token := newAuthRouter(t)

	w := serveAuth(r, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "alice" {
		t.Errorf("caller uid = %q, want alice", got)
	}
}

func TestMiddlewareAcceptsRawToken(t *testing.T) {
	r, token := newAuthRouter(t)

	w := serveAuth(r, token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "alice" {
		t.Errorf("caller uid = %q, want alice", got)
	}
}

func TestMiddlewareRejectsBadCredentials(t *testing.T) {
	r, _ := newAuthRouter(t)

	for name, header := range map[string]string{
		"missing header": "",
		"garbage token":  "Bearer not.a.jwt",
		"scheme only":    "Bearer ",
	} {
		if w := serveAuth(r, header); w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, w.Code)
		}
	}
}

func TestStripBearer(t *testing.T) {
	cases := map[string]string{
		"Bearer abc.def": "abc.def",
		"bearer abc.def": "abc.def",
		"abc.def":        "abc.def",
		"":               "",
	}
	for in, want := range cases {
		if got := stripBearer(in); got != want {
			t.Errorf("stripBearer(%q) = %q, want %q", in, got, want)
		}
	}
}
