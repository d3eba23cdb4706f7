package httpx

import (
	"net/http"
	"strings"

	"github.com/target/gatehouse/internal/ports"
)

// statusWriter records the response status and whether headers were committed.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	bytes       int
}

// wrapWriter returns w as a *statusWriter, reusing an existing wrapper.
func wrapWriter(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Request adapts one HTTP exchange to ports.RequestView and ports.CookieTransport.
type Request struct {
	r          *http.Request
	w          *statusWriter
	trustProxy bool
}

var (
	_ ports.RequestView     = (*Request)(nil)
	_ ports.CookieTransport = (*Request)(nil)
)

// NewRequest wraps r and w. With trustProxy set, X-Forwarded-Proto counts
// towards IsSecure.
func NewRequest(w http.ResponseWriter, r *http.Request, trustProxy bool) *Request {
	return &Request{r: r, w: wrapWriter(w), trustProxy: trustProxy}
}

// Writer returns the status-tracking writer for the exchange.
func (q *Request) Writer() http.ResponseWriter { return q.w }

func (q *Request) Method() string { return strings.ToUpper(q.r.Method) }

func (q *Request) Header(name string) string { return q.r.Header.Get(name) }

// Query returns a query parameter. Empty values count as absent.
func (q *Request) Query(name string) string { return q.r.URL.Query().Get(name) }

// PostField returns a form field from the request body.
func (q *Request) PostField(name string) string {
	if !q.hasBody() {
		return ""
	}
	return q.r.PostFormValue(name)
}

func (q *Request) HasPostField(name string) bool {
	if !q.hasBody() {
		return false
	}
	if q.r.PostForm == nil {
		_ = q.r.ParseMultipartForm(maxFormMemory)
	}
	_, ok := q.r.PostForm[name]
	return ok
}

func (q *Request) hasBody() bool {
	switch q.r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

func (q *Request) Origin() ports.Origin {
	return ports.Origin{Host: q.r.Host, RemoteAddr: q.r.RemoteAddr}
}

func (q *Request) HeadersSent() bool { return q.w.wroteHeader }

func (q *Request) Cookie(name string) (string, bool) {
	c, err := q.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// SetCookie replaces any Set-Cookie header already queued for the same name,
// so a regenerated session id never travels next to the one it replaced.
func (q *Request) SetCookie(c *http.Cookie) {
	h := q.w.Header()
	prefix := c.Name + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(q.w, c)
}

func (q *Request) IsSecure() bool {
	if q.r.TLS != nil {
		return true
	}
	return q.trustProxy && strings.EqualFold(q.r.Header.Get("X-Forwarded-Proto"), "https")
}

// WantsJSON reports whether an error response should be JSON rather than HTML.
func WantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	if r.Method == http.MethodPost && r.PostForm != nil {
		if _, ok := r.PostForm["ajax"]; ok {
			return true
		}
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

const maxFormMemory = 1 << 20
