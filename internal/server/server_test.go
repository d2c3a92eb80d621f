package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pdfchat/internal/app"
	"pdfchat/internal/usertoken"
	"pdfchat/pkg/domain"
	"pdfchat/pkg/storage"
	"pdfchat/pkg/store"
)

type fakeVerifier struct {
	identities map[string]usertoken.Identity
}

func (f *fakeVerifier) VerifyIdentity(token string) (usertoken.Identity, error) {
	id, ok := f.identities[token]
	if !ok {
		return usertoken.Identity{}, errors.New("invalid token")
	}
	return id, nil
}

type fakeExtractor struct{ text string }

func (f *fakeExtractor) ExtractFromURL(context.Context, string) (string, error) {
	return f.text, nil
}

type fakeGenerator struct{ answer string }

func (f *fakeGenerator) GenerateText(context.Context, string) (string, error) {
	return f.answer, nil
}

type testEnv struct {
	server   *httptest.Server
	store    *store.MemoryStore
	app      *app.App
	verifier *fakeVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	a, err := app.New(app.Config{
		Store:     mem,
		Extractor: &fakeExtractor{text: "pdf text"},
		Generator: &fakeGenerator{answer: "an answer"},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	verifier := &fakeVerifier{identities: map[string]usertoken.Identity{}}

	files, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	srv := New(Config{
		App:           a,
		TokenVerifier: verifier,
		Files:         files,
		FilesDir:      files.BasePath(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: mem, app: a, verifier: verifier}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (e *testEnv) signUp(t *testing.T, first, last, email string) domain.UserProfile {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"firstName": first, "lastName": last, "email": email,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201", resp.StatusCode)
	}
	var profile domain.UserProfile
	decodeInto(t, resp, &profile)
	return profile
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSignUpAndDuplicate(t *testing.T) {
	e := newTestEnv(t)
	profile := e.signUp(t, "Ada", "Lovelace", "ada@example.com")
	if profile.Email != "ada@example.com" {
		t.Fatalf("email = %q", profile.Email)
	}
	if !strings.Contains(profile.PhotoURL, "dicebear.com") {
		t.Fatalf("photoURL = %q, want default avatar", profile.PhotoURL)
	}

	resp := e.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d, want 409", resp.StatusCode)
	}
	var body struct {
		Error  bool   `json:"error"`
		Detail string `json:"detail"`
		Status int    `json:"status"`
	}
	decodeInto(t, resp, &body)
	if !body.Error || body.Status != http.StatusConflict || body.Detail == "" {
		t.Fatalf("error envelope = %+v", body)
	}
}

func TestSignUpValidation(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": "x@example.com"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUserDataAuthChallenges(t *testing.T) {
	e := newTestEnv(t)
	e.signUp(t, "Ada", "Lovelace", "ada@example.com")
	e.verifier.identities["tok-ada"] = usertoken.Identity{Subject: "u1", Email: "ada@example.com"}

	resp := e.do(t, http.MethodGet, "/auth/user-data", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing auth status = %d, want 400", resp.StatusCode)
	}
	if got := resp.Header.Get("WWW-Authenticate"); !strings.Contains(got, `error="invalid_request"`) {
		t.Fatalf("challenge = %q, want invalid_request", got)
	}

	resp = e.do(t, http.MethodGet, "/auth/user-data", nil, map[string]string{"Authorization": "Bearer bogus"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", resp.StatusCode)
	}
	if got := resp.Header.Get("WWW-Authenticate"); !strings.Contains(got, `error="invalid_token"`) {
		t.Fatalf("challenge = %q, want invalid_token", got)
	}

	resp = e.do(t, http.MethodGet, "/auth/user-data", nil, map[string]string{"Authorization": "Bearer tok-ada"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var profile domain.UserProfile
	decodeInto(t, resp, &profile)
	if profile.Email != "ada@example.com" {
		t.Fatalf("profile email = %q", profile.Email)
	}
}

func TestNewConversation(t *testing.T) {
	e := newTestEnv(t)
	e.signUp(t, "Ada", "Lovelace", "ada@example.com")

	body := map[string]any{
		"email":        "ada@example.com",
		"fileName":     "paper.pdf",
		"fileURL":      "http://localhost:8080/files/paper.pdf",
		"fileSizeInMB": 1.5,
	}
	resp := e.do(t, http.MethodPost, "/conversation/new", body, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var conv domain.Conversation
	decodeInto(t, resp, &conv)
	if conv.Name != "paper.pdf" || len(conv.Participants) != 1 {
		t.Fatalf("conversation = %+v", conv)
	}

	// same file again resolves to the same conversation
	resp = e.do(t, http.MethodPost, "/conversation/new", body, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("recreate status = %d, want 201", resp.StatusCode)
	}
	var again domain.Conversation
	decodeInto(t, resp, &again)
	if again.ID != conv.ID {
		t.Fatalf("recreate id = %q, want %q", again.ID, conv.ID)
	}

	resp = e.do(t, http.MethodPost, "/conversation/new", map[string]any{
		"email": "ghost@example.com", "fileName": "paper.pdf",
	}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown user status = %d, want 404", resp.StatusCode)
	}
}

func TestGetConversationMessages(t *testing.T) {
	e := newTestEnv(t)
	e.signUp(t, "Ada", "Lovelace", "ada@example.com")
	resp := e.do(t, http.MethodPost, "/conversation/new", map[string]any{
		"email": "ada@example.com", "fileName": "paper.pdf", "fileURL": "http://x/paper.pdf",
	}, nil)
	var conv domain.Conversation
	decodeInto(t, resp, &conv)

	resp = e.do(t, http.MethodGet, "/conversation/"+conv.ID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var view domain.ConversationMessages
	decodeInto(t, resp, &view)
	if len(view.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(view.Participants))
	}

	resp = e.do(t, http.MethodGet, "/conversation/missing", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", resp.StatusCode)
	}
}

func TestParticipantEndpoints(t *testing.T) {
	e := newTestEnv(t)
	e.signUp(t, "Ada", "Lovelace", "ada@example.com")
	guest := e.signUp(t, "Grace", "Hopper", "grace@example.com")
	resp := e.do(t, http.MethodPost, "/conversation/new", map[string]any{
		"email": "ada@example.com", "fileName": "paper.pdf", "fileURL": "http://x/paper.pdf",
	}, nil)
	var conv domain.Conversation
	decodeInto(t, resp, &conv)

	resp = e.do(t, http.MethodPatch, "/conversation/add-participant?conversationId="+conv.ID+"&userId="+guest.ID, nil, nil)
	if resp.StatusCode != http.StatusNonAuthoritativeInfo {
		t.Fatalf("add status = %d, want 203", resp.StatusCode)
	}
	var updated domain.Conversation
	decodeInto(t, resp, &updated)
	if len(updated.Participants) != 2 {
		t.Fatalf("participants = %v", updated.Participants)
	}

	resp = e.do(t, http.MethodPatch, "/conversation/add-participant?conversationId="+conv.ID, nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing userId status = %d, want 400", resp.StatusCode)
	}

	resp = e.do(t, http.MethodPatch, "/conversation/remove-participant?conversationId="+conv.ID+"&userId="+guest.ID, nil, nil)
	if resp.StatusCode != http.StatusNonAuthoritativeInfo {
		t.Fatalf("remove status = %d, want 203", resp.StatusCode)
	}

	resp = e.do(t, http.MethodPatch, "/conversation/add-participant?conversationId=missing&userId="+guest.ID, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing conversation status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteConversation(t *testing.T) {
	e := newTestEnv(t)
	e.signUp(t, "Ada", "Lovelace", "ada@example.com")
	resp := e.do(t, http.MethodPost, "/conversation/new", map[string]any{
		"email": "ada@example.com", "fileName": "paper.pdf", "fileURL": "http://x/paper.pdf",
	}, nil)
	var conv domain.Conversation
	decodeInto(t, resp, &conv)

	resp = e.do(t, http.MethodDelete, "/conversation/delete-conversation?conversationId="+conv.ID, nil, nil)
	if resp.StatusCode != http.StatusNonAuthoritativeInfo {
		t.Fatalf("delete status = %d, want 203", resp.StatusCode)
	}

	resp = e.do(t, http.MethodDelete, "/conversation/delete-conversation?conversationId="+conv.ID, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}

	resp = e.do(t, http.MethodDelete, "/conversation/delete-conversation", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing param status = %d, want 400", resp.StatusCode)
	}
}

func uploadPDF(t *testing.T, e *testEnv, token, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/files", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestUpload(t *testing.T) {
	e := newTestEnv(t)
	e.verifier.identities["tok-ada"] = usertoken.Identity{Subject: "u1", Email: "ada@example.com"}

	resp := uploadPDF(t, e, "", "paper.pdf", []byte("%PDF-1.4 data"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unauthenticated upload status = %d, want 400", resp.StatusCode)
	}

	resp = uploadPDF(t, e, "tok-ada", "paper.pdf", []byte("%PDF-1.4 data"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201", resp.StatusCode)
	}
	var out struct {
		Name     string  `json:"name"`
		URL      string  `json:"url"`
		SizeInMB float64 `json:"sizeInMB"`
	}
	decodeInto(t, resp, &out)
	if out.Name != "paper.pdf" || !strings.Contains(out.URL, "/files/") {
		t.Fatalf("upload response = %+v", out)
	}

	// the stored file is served back under /files/
	fileResp := e.do(t, http.MethodGet, out.URL[strings.Index(out.URL, "/files/"):], nil, nil)
	if fileResp.StatusCode != http.StatusOK {
		t.Fatalf("fetch uploaded file status = %d, want 200", fileResp.StatusCode)
	}

	resp = uploadPDF(t, e, "tok-ada", "notes.txt", []byte("plain text"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-pdf upload status = %d, want 400", resp.StatusCode)
	}
}

type brokenObjectStore struct{}

func (brokenObjectStore) Put(context.Context, string, io.Reader, int64, string) error {
	return errors.New("bucket gone: connection refused")
}

func (brokenObjectStore) URL(context.Context, string) (string, error) {
	return "", errors.New("bucket gone: connection refused")
}

func (brokenObjectStore) Delete(context.Context, string) error {
	return errors.New("bucket gone: connection refused")
}

func TestUploadStorageFailureHidesDetails(t *testing.T) {
	mem := store.NewMemoryStore()
	a, err := app.New(app.Config{
		Store:     mem,
		Extractor: &fakeExtractor{text: "pdf text"},
		Generator: &fakeGenerator{answer: "an answer"},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	verifier := &fakeVerifier{identities: map[string]usertoken.Identity{
		"tok-ada": {Subject: "u1", Email: "ada@example.com"},
	}}
	srv := New(Config{
		App:           a,
		TokenVerifier: verifier,
		Files:         brokenObjectStore{},
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	e := &testEnv{server: ts, store: mem, app: a, verifier: verifier}

	resp := uploadPDF(t, e, "tok-ada", "paper.pdf", []byte("%PDF-1.4 data"))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("upload status = %d, want 500", resp.StatusCode)
	}
	var out struct {
		Error  bool   `json:"error"`
		Detail string `json:"detail"`
		Status int    `json:"status"`
	}
	decodeInto(t, resp, &out)
	if out.Detail != "Unexpected error occurred!" {
		t.Fatalf("detail = %q, internal errors must not reach clients", out.Detail)
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t)
	req, err := http.NewRequest(http.MethodOptions, e.server.URL+"/auth/signup", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("missing CORS headers on preflight")
	}
}
