package devkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

const (
	AuthorizePath = "/oauth/authorize"
	TokenPath     = "/oauth/token"
)

// TokenRequest is one captured call to the fake token endpoint.
type TokenRequest struct {
	Form      url.Values
	BasicUser string
	BasicPass string
	HasBasic  bool
}

// ResourceRequest is one captured call to a scripted resource path.
type ResourceRequest struct {
	Path          string
	Query         url.Values
	Authorization string
}

type ResponseScript struct {
	Status      int
	Body        string
	ContentType string
}

// FakeProvider is an httptest OAuth2 provider: a token endpoint and any
// number of resource listings, each answering with scripted responses while
// capturing the requests it receives.
type FakeProvider struct {
	server *httptest.Server

	mu               sync.Mutex
	tokenScripts     []ResponseScript
	resourceScripts  map[string]ResponseScript
	tokenRequests    []TokenRequest
	resourceRequests []ResourceRequest
}

func NewFakeProvider() *FakeProvider {
	fake := &FakeProvider{resourceScripts: map[string]ResponseScript{}}
	mux := http.NewServeMux()
	mux.HandleFunc(TokenPath, fake.handleToken)
	mux.HandleFunc("/", fake.handleResource)
	fake.server = httptest.NewServer(mux)
	return fake
}

func (f *FakeProvider) Close() {
	if f != nil && f.server != nil {
		f.server.Close()
	}
}

func (f *FakeProvider) Client() *http.Client {
	return f.server.Client()
}

func (f *FakeProvider) URL(path string) string {
	return strings.TrimRight(f.server.URL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (f *FakeProvider) AuthURL() string  { return f.URL(AuthorizePath) }
func (f *FakeProvider) TokenURL() string { return f.URL(TokenPath) }

// ScriptToken queues token endpoint responses. The last script repeats once
// the queue runs out; with no script the endpoint issues a bearer token.
func (f *FakeProvider) ScriptToken(scripts ...ResponseScript) {
	f.mu.Lock()
	f.tokenScripts = append(f.tokenScripts, scripts...)
	f.mu.Unlock()
}

// ScriptTokenJSON queues a JSON token response.
func (f *FakeProvider) ScriptTokenJSON(status int, payload map[string]any) {
	body, _ := json.Marshal(payload)
	f.ScriptToken(ResponseScript{Status: status, Body: string(body), ContentType: "application/json"})
}

func (f *FakeProvider) ScriptResource(path string, script ResponseScript) {
	f.mu.Lock()
	f.resourceScripts["/"+strings.TrimLeft(path, "/")] = script
	f.mu.Unlock()
}

func (f *FakeProvider) TokenRequests() []TokenRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]TokenRequest, 0, len(f.tokenRequests))
	for _, req := range f.tokenRequests {
		req.Form = cloneValues(req.Form)
		out = append(out, req)
	}
	return out
}

func (f *FakeProvider) ResourceRequests() []ResourceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ResourceRequest, 0, len(f.resourceRequests))
	for _, req := range f.resourceRequests {
		req.Query = cloneValues(req.Query)
		out = append(out, req)
	}
	return out
}

func (f *FakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	user, pass, hasBasic := r.BasicAuth()

	f.mu.Lock()
	f.tokenRequests = append(f.tokenRequests, TokenRequest{
		Form:      cloneValues(r.PostForm),
		BasicUser: user,
		BasicPass: pass,
		HasBasic:  hasBasic,
	})
	script := ResponseScript{
		Status:      http.StatusOK,
		Body:        `{"access_token":"fake-access-token","refresh_token":"fake-refresh-token","token_type":"bearer","expires_in":1800}`,
		ContentType: "application/json",
	}
	if len(f.tokenScripts) > 0 {
		script = f.tokenScripts[0]
		if len(f.tokenScripts) > 1 {
			f.tokenScripts = f.tokenScripts[1:]
		}
	}
	f.mu.Unlock()

	writeScript(w, script)
}

func (f *FakeProvider) handleResource(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.resourceRequests = append(f.resourceRequests, ResourceRequest{
		Path:          r.URL.Path,
		Query:         cloneValues(r.URL.Query()),
		Authorization: r.Header.Get("Authorization"),
	})
	script, ok := f.resourceScripts[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	writeScript(w, script)
}

func writeScript(w http.ResponseWriter, script ResponseScript) {
	contentType := script.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	status := script.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(script.Body))
}

func cloneValues(in url.Values) url.Values {
	out := url.Values{}
	for key, values := range in {
		out[key] = append([]string(nil), values...)
	}
	return out
}
