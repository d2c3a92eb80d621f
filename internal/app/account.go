package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"pdfchat/internal/util"
	"pdfchat/pkg/domain"
)

const avatarBaseURL = "https://api.dicebear.com/6.x/initials/svg"

// SignUpRequest carries the fields of a new account.
type SignUpRequest struct {
	FirstName string
	LastName  string
	Email     string
	PhotoURL  string
	Plan      domain.Plan
}

// UserExists reports whether an account with the email already exists.
func (a *App) UserExists(ctx context.Context, email string) (bool, error) {
	_, found, err := a.store.FindUserByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("find user: %w", err)
	}
	return found, nil
}

// SignUp creates an account and returns its full profile. When no photo
// URL is given, an initials avatar seeded with the display name is used.
func (a *App) SignUp(ctx context.Context, req SignUpRequest) (domain.UserProfile, error) {
	photoURL := strings.TrimSpace(req.PhotoURL)
	if photoURL == "" {
		photoURL = defaultAvatarURL(req.FirstName, req.LastName)
	}
	plan := req.Plan
	if plan == "" {
		plan = domain.PlanFree
	}
	user := domain.User{
		ID:        util.NewID(),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		PhotoURL:  photoURL,
		Plan:      plan,
	}
	if _, err := a.store.CreateUser(ctx, user); err != nil {
		return domain.UserProfile{}, fmt.Errorf("create user: %w", err)
	}
	return a.GetUserData(ctx, user.Email)
}

func defaultAvatarURL(firstName, lastName string) string {
	seed := strings.TrimSpace(firstName + " " + lastName)
	return avatarBaseURL + "?radius=50&seed=" + url.QueryEscape(seed)
}

// GetUserFileUsage sums the sizes of all pdf files owned by the user, in MB.
func (a *App) GetUserFileUsage(ctx context.Context, userID string) (float64, error) {
	files, err := a.store.FindPdfFilesByOwner(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("find pdf files: %w", err)
	}
	var total float64
	for _, f := range files {
		total += f.SizeInMB
	}
	return total, nil
}

// GetUserConversations lists the conversations the user participates in,
// each annotated with its pdf file URL. A dangling file reference yields
// an empty URL rather than an error.
func (a *App) GetUserConversations(ctx context.Context, userID string) ([]domain.ConversationWithFile, error) {
	convs, err := a.store.FindConversationsByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	fileIDs := make([]string, 0, len(convs))
	for _, c := range convs {
		fileIDs = append(fileIDs, c.PdfFileID)
	}
	files, err := a.store.FindPdfFilesByIDs(ctx, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("find pdf files: %w", err)
	}
	urlByID := make(map[string]string, len(files))
	for _, f := range files {
		urlByID[f.ID] = f.URL
	}
	out := make([]domain.ConversationWithFile, 0, len(convs))
	for _, c := range convs {
		out = append(out, domain.ConversationWithFile{
			Conversation: c,
			PdfFileURL:   urlByID[c.PdfFileID],
		})
	}
	return out, nil
}

// GetUserData assembles the full profile for the account with the email:
// storage usage plus all conversations with their participants resolved.
func (a *App) GetUserData(ctx context.Context, email string) (domain.UserProfile, error) {
	user, found, err := a.store.FindUserByEmail(ctx, email)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("find user: %w", err)
	}
	if !found {
		return domain.UserProfile{}, ErrUserNotFound
	}

	var (
		usage float64
		convs []domain.ConversationWithFile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		usage, err = a.GetUserFileUsage(gctx, user.ID)
		return err
	})
	g.Go(func() error {
		var err error
		convs, err = a.GetUserConversations(gctx, user.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.UserProfile{}, err
	}

	participants, err := a.resolveParticipants(ctx, convs)
	if err != nil {
		return domain.UserProfile{}, err
	}

	profileConvs := make([]domain.ProfileConversation, 0, len(convs))
	for _, c := range convs {
		resolved := make([]domain.Participant, 0, len(c.Participants))
		for _, id := range c.Participants {
			if p, ok := participants[id]; ok {
				resolved = append(resolved, p)
			}
		}
		profileConvs = append(profileConvs, domain.ProfileConversation{
			ID:           c.ID,
			Name:         c.Name,
			OwnerID:      c.OwnerID,
			Participants: resolved,
			PdfFileID:    c.PdfFileID,
			PdfFileURL:   c.PdfFileURL,
			IsPublic:     c.IsPublic,
			IsArchived:   c.IsArchived,
			CreatedAt:    c.CreatedAt,
		})
	}

	return domain.UserProfile{
		ID:               user.ID,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		Email:            user.Email,
		PhotoURL:         user.PhotoURL,
		Plan:             user.Plan,
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
		StorageUsageInMB: usage,
		Conversations:    profileConvs,
	}, nil
}

// resolveParticipants batch-fetches the distinct participant ids across
// all conversations into one lookup table.
func (a *App) resolveParticipants(ctx context.Context, convs []domain.ConversationWithFile) (map[string]domain.Participant, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, c := range convs {
		for _, id := range c.Participants {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return map[string]domain.Participant{}, nil
	}
	users, err := a.store.FindUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find participants: %w", err)
	}
	out := make(map[string]domain.Participant, len(users))
	for _, u := range users {
		out[u.ID] = u.Participant()
	}
	return out, nil
}
