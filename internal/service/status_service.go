package service

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/golang/glog"

	"github.com/glebk/status-board/internal/domain"
	"github.com/glebk/status-board/internal/feed"
)

// Credentials are the two configured secrets
type Credentials struct {
	SharedPassword string
	// AdminName may clear the board. Empty disables clear-all.
	AdminName string
}

// StatusService handles the write operations of the board and the full read
type StatusService struct {
	repo      domain.StatusRepository
	publisher feed.Publisher
	creds     Credentials
}

// NewStatusService creates a new StatusService
func NewStatusService(repo domain.StatusRepository, publisher feed.Publisher, creds Credentials) *StatusService {
	return &StatusService{
		repo:      repo,
		publisher: publisher,
		creds:     creds,
	}
}

// Register creates the caller's record with status Unknown if it does not exist yet.
// An existing record is left untouched.
func (s *StatusService) Register(ctx context.Context, session domain.Session) error {
	if !s.passwordMatches(session.Password) {
		return fmt.Errorf("%w: invalid password", domain.ErrUnauthorized)
	}

	session = domain.NewSession(session.Name, session.Password)
	if session.Name == "" {
		return fmt.Errorf("%w: display_name is required", domain.ErrValidation)
	}

	created, err := s.repo.Register(ctx, session.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	if created {
		glog.Infof("[status]registered %q", session.Name)
		s.publish(ctx, feed.KindInsert)
	}
	return nil
}

// UpdateStatus replaces the caller's status. Concurrent updates for the same
// name are not ordered; the last write to reach the store wins.
func (s *StatusService) UpdateStatus(ctx context.Context, session domain.Session, status domain.Status) error {
	if !s.passwordMatches(session.Password) {
		return fmt.Errorf("%w: invalid password", domain.ErrUnauthorized)
	}
	if session.Name == "" {
		return fmt.Errorf("%w: display_name is required", domain.ErrValidation)
	}
	if status == "" {
		return fmt.Errorf("%w: status is required", domain.ErrValidation)
	}
	if !status.Selectable() {
		return fmt.Errorf("%w: invalid status %q", domain.ErrValidation, status)
	}

	updated, err := s.repo.UpdateStatus(ctx, session.Name, status)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	if !updated {
		glog.V(1).Infof("[status]update for unregistered %q ignored", session.Name)
		return nil
	}

	glog.Infof("[status]%q -> %s", session.Name, status)
	s.publish(ctx, feed.KindUpdate)
	return nil
}

// ClearAll deletes every record. Both the shared password and the admin name must match.
func (s *StatusService) ClearAll(ctx context.Context, session domain.Session) error {
	if !s.passwordMatches(session.Password) || !s.isAdmin(session.Name) {
		return fmt.Errorf("%w: admin credentials required", domain.ErrUnauthorized)
	}

	n, err := s.repo.ClearAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	glog.Infof("[status]board cleared by %q (%d records)", session.Name, n)
	if n > 0 {
		s.publish(ctx, feed.KindDelete)
	}
	return nil
}

// Board returns every record, most recently updated first
func (s *StatusService) Board(ctx context.Context) ([]*domain.StatusRecord, error) {
	records, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return records, nil
}

// IsAdmin reports whether the session may clear the board
func (s *StatusService) IsAdmin(session domain.Session) bool {
	return s.passwordMatches(session.Password) && s.isAdmin(session.Name)
}

func (s *StatusService) passwordMatches(password string) bool {
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.creds.SharedPassword)) == 1
}

func (s *StatusService) isAdmin(name string) bool {
	return s.creds.AdminName != "" && name == s.creds.AdminName
}

// publish notifies viewers after a committed write. A failed notification is
// logged and not returned since the write itself succeeded.
func (s *StatusService) publish(ctx context.Context, kind feed.Kind) {
	if s.publisher == nil {
		return
	}
	event := feed.NewEvent(domain.StatusTable, kind)
	if err := s.publisher.Publish(ctx, event); err != nil {
		glog.Errorf("[status]failed to publish %s event: %v", kind, err)
	}
}
