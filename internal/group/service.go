package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrNotGroupMember      = errors.New("you are not a member of this group")
	ErrNotAuthorized       = errors.New("only the group admin can do this")
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberAlreadyExists = errors.New("user is already a member of this group")
	ErrUserNotFound        = errors.New("user not found")
	ErrCannotRemoveSelf    = errors.New("cannot remove yourself, delete the group instead")
	ErrInvalidName         = errors.New("group name must be between 1 and 100 characters")
)

// UserDirectory answers whether a user id is registered.
type UserDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Service handles group business logic
type Service struct {
	repo  *Repository
	users UserDirectory
}

// NewService creates a new group service
func NewService(repo *Repository, users UserDirectory) *Service {
	return &Service{repo: repo, users: users}
}

// Create creates a group with the creator as admin followed by memberIDs,
// in request order with duplicates dropped.
func (s *Service) Create(ctx context.Context, creatorID string, req *CreateGroupRequest) (*Group, []*GroupMember, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len([]rune(name)) > 100 {
		return nil, nil, ErrInvalidName
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	group := &Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: req.Description,
		CreatedBy:   creatorID,
		CreatedAt:   now,
	}

	ids := append([]string{creatorID}, req.MemberIDs...)
	seen := make(map[string]bool, len(ids))
	members := make([]*GroupMember, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		ok, err := s.users.Exists(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}

		role := MemberRoleMember
		if id == creatorID {
			role = MemberRoleAdmin
		}
		members = append(members, &GroupMember{GroupID: group.ID, UserID: id, Role: role, JoinedAt: now})
	}

	if err := s.repo.Create(ctx, group, members); err != nil {
		slog.Error("failed to create group", "creator_id", creatorID, "error", err)
		return nil, nil, err
	}

	slog.Info("group created", "group_id", group.ID, "members", len(members))

	members, err := s.repo.GetMembers(ctx, group.ID)
	if err != nil {
		return nil, nil, err
	}
	return group, members, nil
}

// GetByID retrieves a group by its ID
func (s *Service) GetByID(ctx context.Context, id string) (*Group, error) {
	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// RequireMember returns ErrGroupNotFound or ErrNotGroupMember unless userID
// belongs to the group.
func (s *Service) RequireMember(ctx context.Context, groupID, userID string) error {
	_, err := s.membership(ctx, groupID, userID)
	return err
}

// IsAdmin reports whether userID administers the group.
func (s *Service) IsAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	member, err := s.membership(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, ErrNotGroupMember) {
			return false, nil
		}
		return false, err
	}
	return member.Role == MemberRoleAdmin, nil
}

func (s *Service) membership(ctx context.Context, groupID, userID string) (*GroupMember, error) {
	if _, err := s.GetByID(ctx, groupID); err != nil {
		return nil, err
	}

	member, err := s.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotGroupMember
	}
	return member, nil
}

func (s *Service) requireAdmin(ctx context.Context, groupID, userID string) error {
	member, err := s.membership(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if member.Role != MemberRoleAdmin {
		return ErrNotAuthorized
	}
	return nil
}

// GetWithMembers returns the group and its members to a member of the group.
func (s *Service) GetWithMembers(ctx context.Context, callerID, id string) (*Group, []*GroupMember, error) {
	if err := s.RequireMember(ctx, id, callerID); err != nil {
		return nil, nil, err
	}

	group, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	members, err := s.repo.GetMembers(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return group, members, nil
}

// GetMembers lists members in join order. The first entry is the creator.
func (s *Service) GetMembers(ctx context.Context, groupID string) ([]*GroupMember, error) {
	if _, err := s.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.GetMembers(ctx, groupID)
}

// MemberIDs lists member user ids in join order.
func (s *Service) MemberIDs(ctx context.Context, groupID string) ([]string, error) {
	members, err := s.GetMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids, nil
}

// ListByUserID retrieves all groups for a user
func (s *Service) ListByUserID(ctx context.Context, userID string, page, perPage int) ([]*Group, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByUserID(ctx, userID, perPage, offset)
}

// ListIDsByUserID returns the ids of the user's groups.
func (s *Service) ListIDsByUserID(ctx context.Context, userID string) ([]string, error) {
	return s.repo.ListIDsByUserID(ctx, userID)
}

// AddMember adds userID to the group. Only the admin may do this.
func (s *Service) AddMember(ctx context.Context, callerID, groupID, userID string) (*GroupMember, error) {
	if err := s.requireAdmin(ctx, groupID, callerID); err != nil {
		return nil, err
	}

	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	existing, err := s.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrMemberAlreadyExists
	}

	member := &GroupMember{
		GroupID:  groupID,
		UserID:   userID,
		Role:     MemberRoleMember,
		JoinedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		slog.Error("failed to add member", "group_id", groupID, "user_id", userID, "error", err)
		return nil, err
	}

	return s.repo.GetMember(ctx, groupID, userID)
}

// RemoveMember removes userID from the group. The admin cannot remove
// themselves. Ledger history that involves the removed user is kept.
func (s *Service) RemoveMember(ctx context.Context, callerID, groupID, userID string) error {
	if err := s.requireAdmin(ctx, groupID, callerID); err != nil {
		return err
	}
	if userID == callerID {
		return ErrCannotRemoveSelf
	}

	return s.repo.RemoveMember(ctx, groupID, userID)
}

// Delete removes the group with all of its expenses and settlements.
func (s *Service) Delete(ctx context.Context, callerID, groupID string) error {
	if err := s.requireAdmin(ctx, groupID, callerID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, groupID); err != nil {
		slog.Error("failed to delete group", "group_id", groupID, "error", err)
		return err
	}

	slog.Info("group deleted", "group_id", groupID, "by", callerID)
	return nil
}
