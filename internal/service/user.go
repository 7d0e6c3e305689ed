package service

import (
	"context"
	"strings"
	"unicode/utf8"

	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/repository"
)

const maxUsername = 50

type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]model.User, int64, error) {
	users, err := s.users.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	return users, total, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

func (s *UserService) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	username, err := normalizeUsername(params.Username)
	if err != nil {
		return nil, err
	}
	flags, err := normalizeFlags(params.Flags)
	if err != nil {
		return nil, err
	}
	params.Username, params.Flags = username, flags

	user, err := s.users.Create(ctx, params)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("User " + username)
		}
		return nil, apperrors.Database(err)
	}
	return user, nil
}

// Update replaces the username and flags that are set. Flags replace the
// stored set wholesale; an empty non-nil slice clears them.
func (s *UserService) Update(ctx context.Context, id string, params model.UpdateUserParams) (*model.User, error) {
	if params.Username != nil {
		username, err := normalizeUsername(*params.Username)
		if err != nil {
			return nil, err
		}
		params.Username = &username
	}
	if params.Flags != nil {
		flags, err := normalizeFlags(params.Flags)
		if err != nil {
			return nil, err
		}
		params.Flags = flags
	}

	user, err := s.users.Update(ctx, id, params)
	if err != nil {
		if repository.IsUniqueViolation(err) && params.Username != nil {
			return nil, apperrors.AlreadyExists("User " + *params.Username)
		}
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return apperrors.Database(err)
	}
	if !deleted {
		return apperrors.NotFound("User")
	}
	return nil
}

// Chat logins are case-insensitive, so usernames are stored lowercase.
func normalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return "", apperrors.MissingRequired("username")
	}
	if utf8.RuneCountInString(username) > maxUsername {
		return "", apperrors.InvalidInput("username", "must be at most 50 characters")
	}
	return username, nil
}

func normalizeFlags(flags []string) ([]string, error) {
	out := make([]string, 0, len(flags))
	seen := make(map[string]bool, len(flags))
	for _, f := range flags {
		tier := model.AccessTier(strings.ToUpper(strings.TrimSpace(f)))
		switch tier {
		case model.TierMod, model.TierSub, model.TierVIP:
		default:
			return nil, apperrors.InvalidInput("flags", "must be MOD, SUB or VIP")
		}
		if !seen[string(tier)] {
			seen[string(tier)] = true
			out = append(out, string(tier))
		}
	}
	return out, nil
}
