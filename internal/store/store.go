// Package store persists presentations, slides, elements and sessions.
// The session core only talks to the Store interface; redis and sqlite
// implementations are provided.
package store

import (
	"context"
	"errors"

	"presenter/internal/models"
)

// ErrNotFound is returned by update/delete operations whose target row is
// absent. Find* lookups return (nil, nil) instead.
var ErrNotFound = errors.New("not found")

type Store interface {
	CreatePresentation(ctx context.Context, title string) (*models.Presentation, error)
	ListPresentations(ctx context.Context) ([]models.Presentation, error)
	// GetPresentation returns the presentation with slides (slideIndex
	// ascending, each with elements) and sessions (join order).
	GetPresentation(ctx context.Context, id string) (*models.PresentationDetail, error)

	CreateSession(ctx context.Context, presentationID, displayName string, role models.Role) (*models.Session, error)
	FindSessionByName(ctx context.Context, presentationID, displayName string) (*models.Session, error)
	FindSessionByConnection(ctx context.Context, connectionID string) (*models.Session, error)
	UpdateSessionRole(ctx context.Context, sessionID string, role models.Role) (*models.Session, error)
	UpdateSessionConnection(ctx context.Context, sessionID, connectionID string) (*models.Session, error)
	// DeleteSessionsByConnection removes the session currently bound to
	// connectionID and returns it, or (nil, nil) if no session is bound to
	// that id anymore (e.g. it rebound to a newer connection).
	DeleteSessionsByConnection(ctx context.Context, connectionID string) (*models.Session, error)
	ListSessions(ctx context.Context, presentationID string) ([]models.Session, error)

	ListSlides(ctx context.Context, presentationID string) ([]models.Slide, error)
	CreateSlide(ctx context.Context, presentationID string, index int) (*models.Slide, error)
	GetSlide(ctx context.Context, slideID string) (*models.SlideDetail, error)
	// DeleteSlideCascade removes the slide and all its elements.
	DeleteSlideCascade(ctx context.Context, slideID string) error

	CreateElement(ctx context.Context, slideID, content string, pos models.Position, size models.Size) (*models.SlideElement, error)
	UpdateElement(ctx context.Context, elementID, content string, pos models.Position) (*models.SlideElement, error)
	DeleteElement(ctx context.Context, elementID string) error

	Close() error
}
