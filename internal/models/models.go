package models

import "time"

type Role string

const (
	RoleCreator Role = "CREATOR"
	RoleEditor  Role = "EDITOR"
	RoleViewer  Role = "VIEWER"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r == RoleCreator || r == RoleEditor || r == RoleViewer
}

// CanMutateContent gates element-level mutations (add/edit/delete element).
func (r Role) CanMutateContent() bool {
	return r == RoleCreator || r == RoleEditor
}

// CanManageStructure gates slide add/remove and role changes.
func (r Role) CanManageStructure() bool {
	return r == RoleCreator
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Presentation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type Slide struct {
	ID             string `json:"id"`
	PresentationID string `json:"presentationId"`
	SlideIndex     int    `json:"slideIndex"`
}

type SlideElement struct {
	ID       string   `json:"id"`
	SlideID  string   `json:"slideId"`
	Content  string   `json:"content"`
	Position Position `json:"position"`
	Size     Size     `json:"size"`
}

// Session is a membership record: one per (presentation, display name),
// rebound to a new connection id on reconnect.
type Session struct {
	ID             string    `json:"id"`
	PresentationID string    `json:"presentationId"`
	DisplayName    string    `json:"displayName"`
	Role           Role      `json:"role"`
	ConnectionID   string    `json:"connectionId,omitempty"`
	JoinedAt       time.Time `json:"joinedAt"`
}

// MemberInfo is the roster view broadcast as usersUpdate.
type MemberInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

type SlideDetail struct {
	Slide
	Elements []SlideElement `json:"elements"`
}

type PresentationDetail struct {
	Presentation
	Slides   []SlideDetail `json:"slides"`
	Sessions []Session     `json:"sessions"`
}

/*** Real-time wire protocol ***/

type WSFrame struct {
	Type string      `json:"type"` // "join_presentation","add_element",...,"usersUpdate","error"
	Data interface{} `json:"data"`
}

type JoinRequest struct {
	PresentationID string `json:"presentationId"`
	DisplayName    string `json:"displayName"`
}

type AddElementRequest struct {
	SlideID  string    `json:"slideId"`
	Content  string    `json:"content"`
	Position *Position `json:"position"`
	Size     *Size     `json:"size"`
}

type EditElementRequest struct {
	ElementID string    `json:"elementId"`
	Content   string    `json:"content"`
	Position  *Position `json:"position"`
}

type DeleteElementRequest struct {
	ElementID string `json:"elementId"`
}

type UpdateRoleRequest struct {
	SessionID      string `json:"sessionId"`
	NewRole        Role   `json:"newRole"`
	PresentationID string `json:"presentationId"`
}

type RoleResponse struct {
	Role Role `json:"role"`
}

type ElementDeleted struct {
	ElementID string `json:"elementId"`
}
