package session

import (
	"context"
	"errors"
	"fmt"

	"presenter/internal/models"
	"presenter/internal/store"
)

// ErrNameInUse is returned by Join when the display name is held by a
// different, still-live connection. Reconnects take the rebind path instead.
var ErrNameInUse = errors.New("display name already taken")

// Liveness answers whether a connection id currently has an open socket.
type Liveness interface {
	IsLive(connectionID string) bool
}

// Directory is the source of truth for who is in a presentation and with
// what permission. Membership records live in the store; the directory adds
// the join/rebind and guarded-removal semantics on top.
type Directory struct {
	store store.Store
	live  Liveness
}

func NewDirectory(st store.Store, live Liveness) *Directory {
	return &Directory{store: st, live: live}
}

// Join binds connectionID to the membership for (presentationID,
// displayName), creating a VIEWER membership if none exists. It returns the
// bound session, whether this bind should be announced to the room (first
// bind of the membership, as opposed to a silent reconnect rebind), and the
// previously bound connection id, if any, so its grace timer can be
// cancelled.
func (d *Directory) Join(ctx context.Context, presentationID, displayName, connectionID string) (sess *models.Session, announce bool, prevConn string, err error) {
	existing, err := d.store.FindSessionByName(ctx, presentationID, displayName)
	if err != nil {
		return nil, false, "", fmt.Errorf("join: %w", err)
	}
	if existing == nil {
		created, err := d.store.CreateSession(ctx, presentationID, displayName, models.RoleViewer)
		if err != nil {
			return nil, false, "", fmt.Errorf("join: %w", err)
		}
		existing = created
	}
	prevConn = existing.ConnectionID
	if prevConn != "" && prevConn != connectionID && d.live.IsLive(prevConn) {
		return nil, false, "", ErrNameInUse
	}
	sess, err = d.store.UpdateSessionConnection(ctx, existing.ID, connectionID)
	if err != nil {
		return nil, false, "", fmt.Errorf("join: %w", err)
	}
	return sess, prevConn == "", prevConn, nil
}

func (d *Directory) LookupByConnection(ctx context.Context, connectionID string) (*models.Session, error) {
	return d.store.FindSessionByConnection(ctx, connectionID)
}

// ListMembers returns the roster in join order, shaped for usersUpdate.
func (d *Directory) ListMembers(ctx context.Context, presentationID string) ([]models.MemberInfo, error) {
	sessions, err := d.store.ListSessions(ctx, presentationID)
	if err != nil {
		return nil, err
	}
	out := make([]models.MemberInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, models.MemberInfo{ID: s.ID, DisplayName: s.DisplayName, Role: s.Role})
	}
	return out, nil
}

// SetRole is an unconditional write; authorization is the caller's job.
func (d *Directory) SetRole(ctx context.Context, sessionID string, role models.Role) (*models.Session, error) {
	return d.store.UpdateSessionRole(ctx, sessionID, role)
}

// Remove deletes the membership still bound to connectionID and returns it.
// If the membership rebound to a newer connection in the meantime, nothing is
// removed and (nil, nil) is returned.
func (d *Directory) Remove(ctx context.Context, connectionID string) (*models.Session, error) {
	return d.store.DeleteSessionsByConnection(ctx, connectionID)
}
