package services

import (
	"context"
	"fmt"
)

// Level is a caller's rank against one group. Higher values win.
type Level int

const (
	LevelMember Level = iota
	LevelGroupAdmin
	LevelSeller
	LevelOwner
)

func (l Level) String() string {
	switch l {
	case LevelOwner:
		return "owner"
	case LevelSeller:
		return "seller"
	case LevelGroupAdmin:
		return "group_admin"
	default:
		return "member"
	}
}

// AccessResolver ranks callers against a group. It is read-only and expects
// the group to exist already.
type AccessResolver struct {
	Groups  GroupStore
	Users   UserStore
	Sellers SellerStore

	ownerID int64
}

func NewAccessResolver(groups GroupStore, users UserStore, sellers SellerStore, ownerID int64) *AccessResolver {
	return &AccessResolver{Groups: groups, Users: users, Sellers: sellers, ownerID: ownerID}
}

// Resolve evaluates owner, then an active seller not blocked by the group,
// then a bot-level admin grant.
func (r *AccessResolver) Resolve(ctx context.Context, chatID, callerID int64) (Level, error) {
	if r.IsOwner(callerID) {
		return LevelOwner, nil
	}

	group, err := r.Groups.Get(ctx, chatID)
	if err != nil {
		return LevelMember, fmt.Errorf("resolve access: %w", err)
	}

	seller, err := r.Sellers.Get(ctx, callerID)
	switch {
	case err == nil:
		if seller.IsActive && !group.Settings.Data().IsBlocked(callerID) {
			return LevelSeller, nil
		}
	case !isNotFound(err):
		return LevelMember, err
	}

	admin, err := r.Users.IsAdmin(ctx, chatID, callerID)
	if err != nil {
		return LevelMember, err
	}
	if admin {
		return LevelGroupAdmin, nil
	}
	return LevelMember, nil
}

// IsPrivileged is the check callers use; every level above member passes.
func (r *AccessResolver) IsPrivileged(ctx context.Context, chatID, callerID int64) (bool, error) {
	level, err := r.Resolve(ctx, chatID, callerID)
	if err != nil {
		return false, err
	}
	return level > LevelMember, nil
}

// IsSeller reports whether callerID is an active seller, ignoring any
// group's block list.
func (r *AccessResolver) IsSeller(ctx context.Context, callerID int64) (bool, error) {
	seller, err := r.Sellers.Get(ctx, callerID)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return seller.IsActive, nil
}

func (r *AccessResolver) IsOwner(callerID int64) bool {
	return callerID == r.ownerID
}
