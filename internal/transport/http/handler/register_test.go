package handler_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ErlanBelekov/quicksand/internal/domain"
	"github.com/ErlanBelekov/quicksand/internal/transport/http/handler"
	"github.com/ErlanBelekov/quicksand/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeRegistration struct {
	register    func(ctx context.Context, in usecase.RegisterInput) (*domain.User, error)
	verifyToken func(ctx context.Context, token string) (*domain.UserInvite, error)
	usernameOK  func(ctx context.Context, username string) error
	emailOK     func(ctx context.Context, email string) error
}

func (f *fakeRegistration) Register(ctx context.Context, in usecase.RegisterInput) (*domain.User, error) {
	return f.register(ctx, in)
}

func (f *fakeRegistration) VerifyRegistrationToken(ctx context.Context, token string) (*domain.UserInvite, error) {
	return f.verifyToken(ctx, token)
}

func (f *fakeRegistration) UsernameAvailable(ctx context.Context, username string) error {
	return f.usernameOK(ctx, username)
}

func (f *fakeRegistration) EmailAvailable(ctx context.Context, email string) error {
	return f.emailOK(ctx, email)
}

func newRegisterEngine(t *testing.T, uc *fakeRegistration, mediaRoot string, maxAvatar int64) *gin.Engine {
	t.Helper()
	h := handler.NewRegisterHandler(uc, handler.NewAvatarStore(mediaRoot, maxAvatar), discardLogger)

	r := gin.New()
	r.POST("/register/", h.Register)
	r.POST("/register/verify-token/", h.VerifyToken)
	r.POST("/username-check/", h.UsernameCheck)
	r.POST("/email-check/", h.EmailCheck)
	return r
}

func registeredUser(in usecase.RegisterInput) *domain.User {
	return &domain.User{
		ID:       1,
		UUID:     uuid.New(),
		Username: in.Username,
		Email:    in.Email,
		State:    domain.UserStateActive,
		Profile:  &domain.UserProfile{Name: in.Name, Avatar: in.AvatarPath, IsOfLegalAge: in.IsOfLegalAge},
	}
}

const validRegisterJSON = `{"token":"tok","username":"max","email":"max@example.com","password":"correct-horse-battery","name":"Max","is_of_legal_age":true,"are_guidelines_accepted":true}`

func multipartRegister(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"token":                   "tok",
		"username":                "max",
		"email":                   "max@example.com",
		"password":                "correct-horse-battery",
		"name":                    "Max",
		"is_of_legal_age":         "true",
		"are_guidelines_accepted": "true",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("avatar", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/register/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func avatarFiles(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(root, "avatars"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("read avatars: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// ---- Register ----

func TestRegister_JSON_Returns201(t *testing.T) {
	var got usecase.RegisterInput
	uc := &fakeRegistration{register: func(_ context.Context, in usecase.RegisterInput) (*domain.User, error) {
		got = in
		return registeredUser(in), nil
	}}
	w := postJSON(newRegisterEngine(t, uc, t.TempDir(), 1024), "/register/", validRegisterJSON)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if got.Token != "tok" || !got.IsOfLegalAge || !got.AreGuidelinesAccepted || got.AvatarPath != nil {
		t.Errorf("input = %+v", got)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("body leaks password data: %s", w.Body.String())
	}
}

func TestRegister_MissingFields_Returns400WithFields(t *testing.T) {
	w := postJSON(newRegisterEngine(t, &fakeRegistration{}, t.TempDir(), 1024), "/register/", `{"token":"tok"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	for _, field := range []string{`"email"`, `"password"`, `"name"`} {
		if !strings.Contains(w.Body.String(), field) {
			t.Errorf("body %q does not name %s", w.Body.String(), field)
		}
	}
}

func TestRegister_DomainErrors(t *testing.T) {
	tests := []struct {
		err   error
		code  int
		field string
	}{
		{domain.ErrAlreadyRedeemed, http.StatusBadRequest, `"token"`},
		{domain.ErrInviteNotFound, http.StatusBadRequest, `"token"`},
		{domain.ErrUsernameTaken, http.StatusBadRequest, `"username"`},
		{domain.ErrEmailTaken, http.StatusBadRequest, `"email"`},
		{domain.ErrConsentRequired, http.StatusBadRequest, `"is_of_legal_age"`},
		{errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		uc := &fakeRegistration{register: func(context.Context, usecase.RegisterInput) (*domain.User, error) {
			return nil, tt.err
		}}
		w := postJSON(newRegisterEngine(t, uc, t.TempDir(), 1024), "/register/", validRegisterJSON)

		if w.Code != tt.code {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.code)
		}
		if !strings.Contains(w.Body.String(), tt.field) {
			t.Errorf("%v: body %q does not contain %s", tt.err, w.Body.String(), tt.field)
		}
	}
}

func TestRegister_Multipart_SavesAvatar(t *testing.T) {
	root := t.TempDir()
	var avatar string
	uc := &fakeRegistration{register: func(_ context.Context, in usecase.RegisterInput) (*domain.User, error) {
		if in.AvatarPath == nil {
			t.Fatal("expected avatar path")
		}
		avatar = *in.AvatarPath
		return registeredUser(in), nil
	}}

	w := httptest.NewRecorder()
	newRegisterEngine(t, uc, root, 1024).ServeHTTP(w, multipartRegister(t, "me.PNG", []byte("png-bytes")))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(avatar, "avatars/") || !strings.HasSuffix(avatar, ".png") {
		t.Errorf("avatar path = %q", avatar)
	}
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(avatar)))
	if err != nil || string(data) != "png-bytes" {
		t.Errorf("saved avatar = %q, %v", data, err)
	}
}

func TestRegister_Multipart_FailureRemovesAvatar(t *testing.T) {
	root := t.TempDir()
	uc := &fakeRegistration{register: func(context.Context, usecase.RegisterInput) (*domain.User, error) {
		return nil, domain.ErrAlreadyRedeemed
	}}

	w := httptest.NewRecorder()
	newRegisterEngine(t, uc, root, 1024).ServeHTTP(w, multipartRegister(t, "me.jpg", []byte("jpg-bytes")))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if files := avatarFiles(t, root); len(files) != 0 {
		t.Errorf("orphaned avatars left behind: %v", files)
	}
}

func TestRegister_Multipart_RejectsBadAvatar(t *testing.T) {
	uc := &fakeRegistration{register: func(context.Context, usecase.RegisterInput) (*domain.User, error) {
		t.Error("register must not run")
		return nil, nil
	}}

	for name, req := range map[string]*http.Request{
		"too large": multipartRegister(t, "big.png", bytes.Repeat([]byte("x"), 2048)),
		"bad type":  multipartRegister(t, "script.exe", []byte("MZ")),
	} {
		root := t.TempDir()
		w := httptest.NewRecorder()
		newRegisterEngine(t, uc, root, 1024).ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"avatar"`) {
			t.Errorf("%s: status = %d, body = %s", name, w.Code, w.Body.String())
		}
		if files := avatarFiles(t, root); len(files) != 0 {
			t.Errorf("%s: avatar saved: %v", name, files)
		}
	}
}

// ---- VerifyToken and availability checks ----

func TestVerifyToken(t *testing.T) {
	email := "max@example.com"
	uc := &fakeRegistration{verifyToken: func(_ context.Context, token string) (*domain.UserInvite, error) {
		if token == "good" {
			return &domain.UserInvite{ID: 1, Email: &email}, nil
		}
		return nil, domain.ErrInvalidToken
	}}
	r := newRegisterEngine(t, uc, t.TempDir(), 1024)

	if w := postJSON(r, "/register/verify-token/", `{"token":"good"}`); w.Code != http.StatusAccepted || !strings.Contains(w.Body.String(), email) {
		t.Errorf("good token: status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := postJSON(r, "/register/verify-token/", `{"token":"bad"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad token: status = %d, want 400", w.Code)
	}
}

func TestAvailabilityChecks(t *testing.T) {
	uc := &fakeRegistration{
		usernameOK: func(_ context.Context, username string) error {
			if username == "taken" {
				return domain.ErrUsernameTaken
			}
			return nil
		},
		emailOK: func(_ context.Context, email string) error {
			if email == "taken@example.com" {
				return domain.ErrEmailTaken
			}
			return nil
		},
	}
	r := newRegisterEngine(t, uc, t.TempDir(), 1024)

	tests := []struct {
		path, body string
		want       int
	}{
		{"/username-check/", `{"username":"free"}`, http.StatusAccepted},
		{"/username-check/", `{"username":"taken"}`, http.StatusBadRequest},
		{"/username-check/", `{}`, http.StatusBadRequest},
		{"/email-check/", `{"email":"free@example.com"}`, http.StatusAccepted},
		{"/email-check/", `{"email":"taken@example.com"}`, http.StatusBadRequest},
		{"/email-check/", `{"email":"nope"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := postJSON(r, tt.path, tt.body); w.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.path, tt.body, w.Code, tt.want)
		}
	}
}
