package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pdfchat/pkg/domain"
	"pdfchat/pkg/store"
)

type stubExtractor struct {
	text string
	err  error
	urls []string
}

func (s *stubExtractor) ExtractFromURL(_ context.Context, url string) (string, error) {
	s.urls = append(s.urls, url)
	return s.text, s.err
}

type stubGenerator struct {
	answer  string
	err     error
	prompts []string
}

func (s *stubGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.answer, s.err
}

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *stubExtractor, *stubGenerator) {
	t.Helper()
	mem := store.NewMemoryStore()
	extractor := &stubExtractor{text: "page one text"}
	generator := &stubGenerator{answer: "the answer"}
	a, err := New(Config{Store: mem, Extractor: extractor, Generator: generator})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, mem, extractor, generator
}

func signUpUser(t *testing.T, a *App, first, last, email string) domain.UserProfile {
	t.Helper()
	profile, err := a.SignUp(context.Background(), SignUpRequest{
		FirstName: first,
		LastName:  last,
		Email:     email,
	})
	if err != nil {
		t.Fatalf("sign up %s: %v", email, err)
	}
	return profile
}

func TestSignUpDefaultsAvatarAndPlan(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	profile := signUpUser(t, a, "Ada", "Lovelace", "ada@example.com")

	if profile.Plan != domain.PlanFree {
		t.Fatalf("plan = %q, want free", profile.Plan)
	}
	if !strings.HasPrefix(profile.PhotoURL, "https://api.dicebear.com/6.x/initials/svg") {
		t.Fatalf("photoURL = %q, want dicebear default", profile.PhotoURL)
	}
	if !strings.Contains(profile.PhotoURL, "seed=Ada+Lovelace") {
		t.Fatalf("photoURL = %q, want seed from display name", profile.PhotoURL)
	}
	if profile.StorageUsageInMB != 0 {
		t.Fatalf("storage usage = %f, want 0", profile.StorageUsageInMB)
	}
	if len(profile.Conversations) != 0 {
		t.Fatalf("conversations = %d, want 0", len(profile.Conversations))
	}
}

func TestSignUpKeepsExplicitPhotoURL(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	profile, err := a.SignUp(context.Background(), SignUpRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		PhotoURL:  "https://example.com/ada.png",
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if profile.PhotoURL != "https://example.com/ada.png" {
		t.Fatalf("photoURL = %q, want explicit value kept", profile.PhotoURL)
	}
}

func TestUserExists(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	signUpUser(t, a, "Ada", "Lovelace", "ada@example.com")

	exists, err := a.UserExists(context.Background(), "ada@example.com")
	if err != nil || !exists {
		t.Fatalf("UserExists = %v, %v; want true", exists, err)
	}
	exists, err = a.UserExists(context.Background(), "nobody@example.com")
	if err != nil || exists {
		t.Fatalf("UserExists = %v, %v; want false", exists, err)
	}
}

func TestCreateConversationIdempotent(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	signUpUser(t, a, "Ada", "Lovelace", "ada@example.com")

	req := CreateConversationRequest{
		Email:        "ada@example.com",
		FileName:     "paper.pdf",
		FileURL:      "https://files.example.com/paper.pdf",
		FileSizeInMB: 1.5,
	}
	first, err := a.CreateConversation(context.Background(), req)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	second, err := a.CreateConversation(context.Background(), req)
	if err != nil {
		t.Fatalf("recreate conversation: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("recreate returned new conversation %q, want %q", second.ID, first.ID)
	}

	profile, err := a.GetUserData(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("get user data: %v", err)
	}
	if len(profile.Conversations) != 1 {
		t.Fatalf("conversations = %d, want 1", len(profile.Conversations))
	}
	if profile.StorageUsageInMB != 1.5 {
		t.Fatalf("storage usage = %f, want 1.5", profile.StorageUsageInMB)
	}
}

func TestCreateConversationUnknownUser(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	_, err := a.CreateConversation(context.Background(), CreateConversationRequest{
		Email:    "ghost@example.com",
		FileName: "paper.pdf",
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("error = %v, want ErrUserNotFound", err)
	}
}

func TestParticipantLifecycle(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	owner := signUpUser(t, a, "Ada", "Lovelace", "ada@example.com")
	guest := signUpUser(t, a, "Grace", "Hopper", "grace@example.com")

	conv, err := a.CreateConversation(context.Background(), CreateConversationRequest{
		Email:    "ada@example.com",
		FileName: "paper.pdf",
		FileURL:  "https://files.example.com/paper.pdf",
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	updated, err := a.AddParticipant(context.Background(), conv.ID, guest.ID)
	if err != nil {
		t.Fatalf("add participant: %v", err)
	}
	if len(updated.Participants) != 2 {
		t.Fatalf("participants = %v, want owner and guest", updated.Participants)
	}

	// adding again is a no-op
	updated, err = a.AddParticipant(context.Background(), conv.ID, guest.ID)
	if err != nil {
		t.Fatalf("re-add participant: %v", err)
	}
	if len(updated.Participants) != 2 {
		t.Fatalf("participants after duplicate add = %v", updated.Participants)
	}

	updated, err = a.RemoveParticipant(context.Background(), conv.ID, guest.ID)
	if err != nil {
		t.Fatalf("remove participant: %v", err)
	}
	if len(updated.Participants) != 1 || updated.Participants[0] != owner.ID {
		t.Fatalf("participants after remove = %v, want [%s]", updated.Participants, owner.ID)
	}

	// removing a non-member is a no-op
	updated, err = a.RemoveParticipant(context.Background(), conv.ID, guest.ID)
	if err != nil {
		t.Fatalf("remove non-member: %v", err)
	}
	if len(updated.Participants) != 1 {
		t.Fatalf("participants after removing non-member = %v", updated.Participants)
	}

	if _, err := a.AddParticipant(context.Background(), "missing", guest.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("add to missing conversation: error = %v, want ErrConversationNotFound", err)
	}
}

func TestGetConversationResolvesParticipantsAndFile(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	signUpUser(t, a, "Ada", "Lovelace", "ada@example.com")

	conv, err := a.CreateConversation(context.Background(), CreateConversationRequest{
		Email:    "ada@example.com",
		FileName: "paper.pdf",
		FileURL:  "https://files.example.com/paper.pdf",
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	view, err := a.GetConversation(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if view.PdfFileURL != "https://files.example.com/paper.pdf" {
		t.Fatalf("pdfFileUrl = %q", view.PdfFileURL)
	}
	if len(view.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(view.Participants))
	}
	if view.Participants[0].FirstName != "Ada" {
		t.Fatalf("participant = %+v, want resolved user", view.Participants[0])
	}

	if _, err := a.GetConversation(context.Background(), "missing"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("missing conversation: error = %v", err)
	}
}

func TestGetConversationDanglingFile(t *testing.T) {
	a, mem, _, _ := newTestApp(t)
	owner := signUpUser(t, a, "Ada", "Lovelace", "ada@example.com")

	conv, err := mem.CheckAndCreateConversation(context.Background(), domain.Conversation{
		ID:           "conv-1",
		Name:         "paper.pdf",
		OwnerID:      owner.ID,
		Participants: []string{owner.ID},
		PdfFileID:    "gone",
	})
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	if _, err := a.GetConversation(context.Background(), conv.ID); !errors.Is(err, ErrPdfFileNotFound) {
		t.Fatalf("dangling file: error = %v, want ErrPdfFileNotFound", err)
	}
}

func TestGetConversationMessagesResolvesSenders(t *testing.T) {
	a, mem, _, _ := newTestApp(t)
	owner := signUpUser(t, a, "Ada", "Lovelace", "ada@example.com")

	conv, err := a.CreateConversation(context.Background(), CreateConversationRequest{
		Email:    "ada@example.com",
		FileName: "paper.pdf",
		FileURL:  "https://files.example.com/paper.pdf",
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if _, err := mem.CreateMessage(context.Background(), domain.Message{
		ID: "m1", ConversationID: conv.ID, SenderID: owner.ID, Content: "hello",
	}); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	if _, err := mem.CreateMessage(context.Background(), domain.Message{
		ID: "m2", ConversationID: conv.ID, SenderID: "departed-user", Content: "bye",
	}); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	view, err := a.GetConversationMessages(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(view.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(view.Messages))
	}
	if p, ok := view.Messages[0].Sender.(domain.Participant); !ok || p.ID != owner.ID {
		t.Fatalf("sender[0] = %#v, want resolved participant", view.Messages[0].Sender)
	}
	// a sender no longer in the participant set stays as the raw id
	if raw, ok := view.Messages[1].Sender.(string); !ok || raw != "departed-user" {
		t.Fatalf("sender[1] = %#v, want raw id", view.Messages[1].Sender)
	}
}

func TestDeleteConversationCascade(t *testing.T) {
	a, mem, _, _ := newTestApp(t)
	owner := signUpUser(t, a, "Ada", "Lovelace", "ada@example.com")

	conv, err := a.CreateConversation(context.Background(), CreateConversationRequest{
		Email:        "ada@example.com",
		FileName:     "paper.pdf",
		FileURL:      "https://files.example.com/paper.pdf",
		FileSizeInMB: 2,
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if _, err := mem.CreateMessage(context.Background(), domain.Message{
		ID: "m1", ConversationID: conv.ID, SenderID: owner.ID, Content: "hello",
	}); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	if err := a.DeleteConversation(context.Background(), conv.ID); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}

	if _, found, _ := mem.FindConversationByID(context.Background(), conv.ID); found {
		t.Fatalf("conversation still present after delete")
	}
	if _, found, _ := mem.FindPdfFileByID(context.Background(), conv.PdfFileID); found {
		t.Fatalf("pdf file still present after delete")
	}
	msgs, _ := mem.FindMessagesByConversation(context.Background(), conv.ID)
	if len(msgs) != 0 {
		t.Fatalf("messages still present after delete: %d", len(msgs))
	}
	usage, err := a.GetUserFileUsage(context.Background(), owner.ID)
	if err != nil || usage != 0 {
		t.Fatalf("usage after delete = %f, %v; want 0", usage, err)
	}

	if err := a.DeleteConversation(context.Background(), conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("second delete: error = %v, want ErrConversationNotFound", err)
	}
}

func TestGetUserDataResolvesParticipants(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	signUpUser(t, a, "Ada", "Lovelace", "ada@example.com")
	guest := signUpUser(t, a, "Grace", "Hopper", "grace@example.com")

	conv, err := a.CreateConversation(context.Background(), CreateConversationRequest{
		Email:    "ada@example.com",
		FileName: "paper.pdf",
		FileURL:  "https://files.example.com/paper.pdf",
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if _, err := a.AddParticipant(context.Background(), conv.ID, guest.ID); err != nil {
		t.Fatalf("add participant: %v", err)
	}

	profile, err := a.GetUserData(context.Background(), "grace@example.com")
	if err != nil {
		t.Fatalf("get user data: %v", err)
	}
	if len(profile.Conversations) != 1 {
		t.Fatalf("conversations = %d, want 1", len(profile.Conversations))
	}
	got := profile.Conversations[0]
	if got.PdfFileURL != "https://files.example.com/paper.pdf" {
		t.Fatalf("pdfFileURL = %q", got.PdfFileURL)
	}
	if len(got.Participants) != 2 {
		t.Fatalf("participants = %d, want 2 resolved", len(got.Participants))
	}
	for _, p := range got.Participants {
		if p.FirstName == "" {
			t.Fatalf("participant %q not resolved", p.ID)
		}
	}

	if _, err := a.GetUserData(context.Background(), "ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown email: error = %v, want ErrUserNotFound", err)
	}
}
