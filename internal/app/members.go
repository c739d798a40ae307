package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"time"

	"myride/internal/util"
	"myride/pkg/auth"
	"myride/pkg/domain"
)

// SignupInput carries a registration request.
type SignupInput struct {
	Email          string
	Password       string
	DisplayName    string
	InvitationCode string
	InviterCode    string
}

// MemberView is a member with a short-lived profile photo URL.
type MemberView struct {
	domain.Member
	PhotoURL string `json:"photoUrl,omitempty"`
}

// Signup registers a member. Email and invitation code must both be unique.
// The welcome mail goes out in the background; a mail failure never fails
// the signup.
func (a *App) Signup(ctx context.Context, in SignupInput) (domain.Member, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Member{}, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if strings.TrimSpace(in.DisplayName) == "" {
		return domain.Member{}, fmt.Errorf("%w: display name required", ErrValidation)
	}
	code := strings.TrimSpace(in.InvitationCode)
	if code == "" {
		return domain.Member{}, fmt.Errorf("%w: invitation code required", ErrValidation)
	}

	taken, err := a.store.HasMemberEmail(ctx, email)
	if err != nil {
		return domain.Member{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.Member{}, ErrEmailTaken
	}
	taken, err = a.store.HasInvitationCode(ctx, code)
	if err != nil {
		return domain.Member{}, fmt.Errorf("check invitation code: %w", err)
	}
	if taken {
		return domain.Member{}, ErrInviteCodeTaken
	}

	var inviterID string
	if inviterCode := strings.TrimSpace(in.InviterCode); inviterCode != "" {
		inviter, ok, err := a.memberByInvitationCode(ctx, inviterCode)
		if err != nil {
			return domain.Member{}, err
		}
		if !ok {
			return domain.Member{}, fmt.Errorf("%w: unknown inviter code", ErrValidation)
		}
		inviterID = inviter.ID
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.Member{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := time.Now().UTC()
	m := domain.Member{
		ID:             util.NewID(),
		Email:          email,
		DisplayName:    strings.TrimSpace(in.DisplayName),
		PasswordHash:   hash,
		InvitationCode: code,
		InviterID:      inviterID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.store.SaveMember(ctx, m); err != nil {
		return domain.Member{}, fmt.Errorf("save member: %w", err)
	}

	if a.fromEmail != "" {
		go func(to, name string) {
			body := fmt.Sprintf("Hi %s,\n\nWelcome aboard. Add your first vehicle to start tracking it.\n", name)
			if err := a.mailer.Send(a.fromEmail, to, "Welcome to MyRide", body); err != nil {
				slog.Warn("welcome mail not sent", slog.String("to", to), slog.Any("error", err))
			}
		}(m.Email, m.DisplayName)
	}
	return m, nil
}

// Login verifies the credentials and opens a session.
func (a *App) Login(ctx context.Context, email, password string) (domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m, ok, err := a.store.GetMemberByEmail(ctx, email)
	if err != nil {
		return domain.Session{}, fmt.Errorf("lookup member: %w", err)
	}
	if !ok || !auth.CheckPassword(password, m.PasswordHash) {
		return domain.Session{}, ErrBadCredentials
	}
	token, err := a.sessions.NewSession(m.ID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("open session: %w", err)
	}
	return domain.Session{MemberID: m.ID, Token: token}, nil
}

// Logout closes the session behind the token.
func (a *App) Logout(ctx context.Context, token string) error {
	if err := a.sessions.DeleteSession(token); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// Me returns the member's own profile.
func (a *App) Me(ctx context.Context, memberID string) (MemberView, error) {
	return a.memberView(ctx, memberID)
}

// MemberProfile returns another member's public profile.
func (a *App) MemberProfile(ctx context.Context, memberID string) (MemberView, error) {
	return a.memberView(ctx, memberID)
}

// SetProfilePhoto stores the image under the member's fixed profile key,
// replacing any previous photo.
func (a *App) SetProfilePhoto(ctx context.Context, memberID string, photo Upload) (string, error) {
	if photo.Reader == nil || photo.Size <= 0 {
		return "", fmt.Errorf("%w: photo required", ErrValidation)
	}
	key := profilePhotoKey(memberID)
	contentType := photo.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	if err := a.objects.Put(ctx, key, photo.Reader, photo.Size, contentType); err != nil {
		return "", fmt.Errorf("upload profile photo: %w", err)
	}
	if err := a.store.MergeMember(ctx, memberID, map[string]any{"photo_key": key}); err != nil {
		return "", fmt.Errorf("save photo key: %w", err)
	}
	url, err := a.objects.PresignGet(ctx, key, a.presignExpiry)
	if err != nil {
		return "", fmt.Errorf("presign profile photo: %w", err)
	}
	return url, nil
}

// RateMember records a 1-5 rating for another member. Self-rating is
// rejected.
func (a *App) RateMember(ctx context.Context, raterID, memberID string, rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if raterID == memberID {
		return fmt.Errorf("%w: cannot rate yourself", ErrValidation)
	}
	if _, ok, err := a.store.GetMember(ctx, memberID); err != nil {
		return fmt.Errorf("get member: %w", err)
	} else if !ok {
		return ErrMemberNotFound
	}
	if err := a.store.MergeMember(ctx, memberID, map[string]any{"rating": rating}); err != nil {
		return fmt.Errorf("save rating: %w", err)
	}
	return nil
}

func (a *App) memberView(ctx context.Context, memberID string) (MemberView, error) {
	m, ok, err := a.store.GetMember(ctx, memberID)
	if err != nil {
		return MemberView{}, fmt.Errorf("get member: %w", err)
	}
	if !ok {
		return MemberView{}, ErrMemberNotFound
	}
	view := MemberView{Member: m}
	if m.PhotoKey != "" {
		url, err := a.objects.PresignGet(ctx, m.PhotoKey, a.presignExpiry)
		if err != nil {
			slog.WarnContext(ctx, "presign profile photo", slog.String("key", m.PhotoKey), slog.Any("error", err))
		} else {
			view.PhotoURL = url
		}
	}
	return view, nil
}

func (a *App) memberByInvitationCode(ctx context.Context, code string) (domain.Member, bool, error) {
	m, ok, err := a.store.GetMemberByInvitationCode(ctx, code)
	if err != nil {
		return domain.Member{}, false, fmt.Errorf("lookup inviter: %w", err)
	}
	return m, ok, nil
}
