package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/mnehpets/rpcgate/jsonrpc"
	"github.com/mnehpets/rpcgate/store"
)

// UserStore loads and saves user profiles.
type UserStore interface {
	User(ctx context.Context, id int64) (*store.User, error)
	PutUser(ctx context.Context, u *store.User) error
}

// UserAPIService serves user profiles.
type UserAPIService struct {
	users UserStore
}

func NewUserAPIService(users UserStore) *UserAPIService {
	return &UserAPIService{users: users}
}

func (s *UserAPIService) APIMethods() []jsonrpc.Method {
	return []jsonrpc.Method{
		jsonrpc.NewMethod("getProfile", (*UserAPIService).GetProfile,
			jsonrpc.ValueParam("user_id"),
		),
		jsonrpc.NewMethod("updateProfile", (*UserAPIService).UpdateProfile,
			jsonrpc.ValueParam("user_id"),
			jsonrpc.ValueParam("name"),
			jsonrpc.OptionalParam("email"),
		),
	}
}

// GetProfile returns the profile of user_id.
func (s *UserAPIService) GetProfile(ctx context.Context, args jsonrpc.Args) (any, error) {
	id, err := userID(args, 0)
	if err != nil {
		return nil, err
	}
	u, err := s.users.User(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, jsonrpc.InvalidParamError("User not found")
	}
	return u, err
}

// UpdateProfile stores name and, if given, email for user_id, creating the
// profile when it does not exist yet. It returns the stored profile.
func (s *UserAPIService) UpdateProfile(ctx context.Context, args jsonrpc.Args) (any, error) {
	id, err := userID(args, 0)
	if err != nil {
		return nil, err
	}
	name, err := args.String(1)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, jsonrpc.InvalidParamError("Name must not be empty")
	}

	u, err := s.users.User(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		u = &store.User{ID: id}
	case err != nil:
		return nil, err
	}
	u.Name = name

	if args.Has(2) {
		email, err := args.String(2)
		if err != nil {
			return nil, err
		}
		if email != "" {
			addr, err := mail.ParseAddress(email)
			if err != nil || addr.Name != "" {
				return nil, jsonrpc.InvalidParamErrorf("Invalid email %q", email)
			}
		}
		u.Email = email
	}

	if err := s.users.PutUser(ctx, u); err != nil {
		return nil, fmt.Errorf("update profile %d: %w", id, err)
	}
	return u, nil
}

func userID(args jsonrpc.Args, i int) (int64, error) {
	var id int64
	if err := args.Decode(i, &id); err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, jsonrpc.InvalidParamError("user_id must be a positive integer")
	}
	return id, nil
}
