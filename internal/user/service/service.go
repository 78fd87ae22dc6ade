// Package service implements driver record management: create, update,
// rename, delete, with username and power unit conflict detection.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"admin-portal/backend/internal/security"
	sessionservice "admin-portal/backend/internal/session/service"
	"admin-portal/backend/internal/user/domain"
	"admin-portal/backend/internal/user/repository"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrUsernameTaken  = errors.New("username already exists")
	ErrPowerUnitTaken = errors.New("power unit already assigned")
	ErrUserActive     = errors.New("user has an active session")
	ErrValidation     = errors.New("invalid user record")
)

// ActiveSessionChecker tells whether a driver is currently logged in.
// Deleting an active driver is refused.
type ActiveSessionChecker interface {
	HasForUsername(ctx context.Context, username string) (bool, error)
}

// AuditRecorder persists security-relevant events, best effort.
type AuditRecorder interface {
	LogEvent(ctx context.Context, username, action, resource, metadata string)
}

type Service struct {
	users    repository.UserRepository
	sessions ActiveSessionChecker
	hasher   *security.Hasher
	audit    AuditRecorder
}

func NewService(users repository.UserRepository, sessions ActiveSessionChecker, hasher *security.Hasher, audit AuditRecorder) *Service {
	return &Service{users: users, sessions: sessions, hasher: hasher, audit: audit}
}

// Input carries a create or update payload. Password is plaintext and gets
// hashed before storage; empty means "no password" on create and "keep the
// current hash" on update.
type Input struct {
	Username  string
	Password  string
	PowerUnit *string
	Companies []string
	Modules   []string
}

func (s *Service) Get(ctx context.Context, username string) (*domain.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *Service) Create(ctx context.Context, in Input) (*domain.User, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}
	if err := s.checkPowerUnit(ctx, in.PowerUnit, ""); err != nil {
		return nil, err
	}

	record := domain.User{
		Username:  in.Username,
		PowerUnit: in.PowerUnit,
		Companies: in.Companies,
		Modules:   in.Modules,
	}
	if in.Password != "" {
		hash, err := s.hasher.Hash([]byte(in.Password))
		if err != nil {
			return nil, err
		}
		record.PasswordHash = &hash
	}

	created, err := s.users.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, in.Username, "user.create", "user:"+in.Username, "")
	return created, nil
}

// Update replaces the record named by username with in, which may carry a
// new username (rename). The caller is responsible for rewriting the
// username cookie when an admin renames themselves.
func (s *Service) Update(ctx context.Context, username string, in Input) (*domain.User, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	current, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	if in.Username != username {
		taken, err := s.users.GetByUsername(ctx, in.Username)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			return nil, ErrUsernameTaken
		}
	}
	if err := s.checkPowerUnit(ctx, in.PowerUnit, username); err != nil {
		return nil, err
	}

	record := domain.User{
		Username:     in.Username,
		PasswordHash: current.PasswordHash,
		PowerUnit:    in.PowerUnit,
		Companies:    in.Companies,
		Modules:      in.Modules,
	}
	if in.Password != "" {
		hash, err := s.hasher.Hash([]byte(in.Password))
		if err != nil {
			return nil, err
		}
		record.PasswordHash = &hash
	}

	updated, err := s.users.Update(ctx, username, record)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	s.audit.LogEvent(ctx, username, "user.update", "user:"+in.Username, "")
	return updated, nil
}

// Delete removes a driver record. Drivers with a live session cannot be
// deleted; logging them out first is required.
func (s *Service) Delete(ctx context.Context, username string) error {
	active, err := s.sessions.HasForUsername(ctx, username)
	if err != nil {
		return err
	}
	if active {
		return ErrUserActive
	}

	deleted, err := s.users.Delete(ctx, username)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	s.audit.LogEvent(ctx, username, "user.delete", "user:"+username, "")
	return nil
}

// Lookup implements the session layer's user directory.
func (s *Service) Lookup(ctx context.Context, username string) (*sessionservice.UserRecord, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	return &sessionservice.UserRecord{
		Username:  u.Username,
		PowerUnit: u.PowerUnit,
		Companies: u.Companies,
		Modules:   u.Modules,
	}, nil
}

func (s *Service) checkPowerUnit(ctx context.Context, powerUnit *string, selfUsername string) error {
	if powerUnit == nil || *powerUnit == "" {
		return nil
	}
	holder, err := s.users.FindByPowerUnit(ctx, *powerUnit)
	if err != nil {
		return err
	}
	if holder != nil && holder.Username != selfUsername {
		return ErrPowerUnitTaken
	}
	return nil
}

func validate(in Input) error {
	if strings.TrimSpace(in.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if len(in.Companies) > domain.MaxCompanies {
		return fmt.Errorf("%w: at most %d companies", ErrValidation, domain.MaxCompanies)
	}
	if len(in.Modules) > domain.MaxModules {
		return fmt.Errorf("%w: at most %d modules", ErrValidation, domain.MaxModules)
	}
	return nil
}
