// Package auth verifies identities and tracks bans.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidName    = errors.New("invalid username")
	ErrWeakPassword   = errors.New("password must be 4 to 64 characters")
	ErrBadCredentials = errors.New("wrong username or password")
	ErrBanned         = errors.New("user is banned")
	ErrUserExists     = errors.New("username already registered")
	ErrUserNotFound   = errors.New("user not found")
	ErrNotRegistered  = errors.New("guest logins are disabled")
	ErrNotAdmin       = errors.New("admin rights required")
	ErrPasswordNotSet = errors.New("guest accounts have no password")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,16}$`)

type User struct {
	Name         string
	PasswordHash string
	Banned       bool
}

// Store persists user records. Get returns ErrUserNotFound for unknown names and Create
// returns ErrUserExists for taken ones.
type Store interface {
	Get(ctx context.Context, name string) (User, error)
	Create(ctx context.Context, u User) error
	SetPassword(ctx context.Context, name, hash string) error
	// SetBanned records the flag, creating a password-less record for unknown names.
	SetBanned(ctx context.Context, name string, banned bool) error
	Banned(ctx context.Context) ([]string, error)
}

type Options struct {
	AllowGuests bool
	Admins      []string
	// HashCost defaults to bcrypt.DefaultCost.
	HashCost int
}

type Service struct {
	store       Store
	allowGuests bool
	admins      map[string]bool
	cost        int
}

func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:       store,
		allowGuests: opts.AllowGuests,
		admins:      make(map[string]bool, len(opts.Admins)),
		cost:        opts.HashCost,
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	for _, a := range opts.Admins {
		s.admins[a] = true
	}
	return s
}

func ValidName(name string) bool { return validName.MatchString(name) }

func validPassword(pw string) bool { return len(pw) >= 4 && len(pw) <= 64 }

// Login checks name and password. Unregistered names may enter without a password when
// guests are allowed.
func (s *Service) Login(ctx context.Context, name, password string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	u, err := s.store.Get(ctx, name)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("load user: %w", err)
	}
	if u.Banned {
		return ErrBanned
	}
	if u.PasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			return ErrBadCredentials
		}
		return nil
	}
	// Without a password the name is unregistered, even if a ban record exists for it.
	if !s.allowGuests {
		return ErrNotRegistered
	}
	if password != "" {
		return ErrBadCredentials
	}
	return nil
}

func (s *Service) Signup(ctx context.Context, name, password string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	if !validPassword(password) {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.Create(ctx, User{Name: name, PasswordHash: string(hash)})
}

func (s *Service) ChangePassword(ctx context.Context, name, oldPassword, newPassword string) error {
	if !validPassword(newPassword) {
		return ErrWeakPassword
	}
	u, err := s.store.Get(ctx, name)
	if errors.Is(err, ErrUserNotFound) {
		return ErrPasswordNotSet
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if u.PasswordHash == "" {
		return ErrPasswordNotSet
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return ErrBadCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.SetPassword(ctx, name, string(hash))
}

func (s *Service) IsAdmin(name string) bool { return s.admins[name] }

// SetBanned bans or unbans target on behalf of actor, who must be an admin.
func (s *Service) SetBanned(ctx context.Context, actor, target string, banned bool) error {
	if !s.IsAdmin(actor) {
		return ErrNotAdmin
	}
	if !ValidName(target) {
		return ErrInvalidName
	}
	return s.store.SetBanned(ctx, target, banned)
}

func (s *Service) BannedUsers(ctx context.Context) ([]string, error) {
	return s.store.Banned(ctx)
}
