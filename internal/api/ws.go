package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"presenter/internal/models"
	"presenter/internal/session"
	"presenter/internal/store"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// outcome tags the result of one inbound event. The asymmetry is deliberate
// and load-bearing: rejected input is reported to the originator, a forbidden
// mutation is dropped without a trace.
type outcome int

const (
	outcomeApplied  outcome = iota
	outcomeRejected         // invalid input or missing target, error frame to originator
	outcomeIgnored          // authorization failure, silently dropped
	outcomeFailed           // store failure, generic error frame to originator
)

// PresentationWS runs the event loop for one connection. Events from one
// connection are handled strictly in order; events from different
// connections interleave only at store calls.
func (h *Handlers) PresentationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client := session.NewClient(conn)
	h.tracker.Connected(client.ID)
	defer h.handleDisconnect(client)

	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		h.dispatch(r.Context(), client, frame)
	}
}

func (h *Handlers) dispatch(ctx context.Context, client *session.Client, frame models.WSFrame) outcome {
	switch frame.Type {
	case "join_presentation":
		return h.handleJoin(ctx, client, frame.Data)
	case "add_element":
		return h.handleAddElement(ctx, client, frame.Data)
	case "edit_element":
		return h.handleEditElement(ctx, client, frame.Data)
	case "delete_element":
		return h.handleDeleteElement(ctx, client, frame.Data)
	case "update_role":
		return h.handleUpdateRole(ctx, client, frame.Data)
	case "get_my_role":
		return h.handleGetMyRole(ctx, client)
	default:
		client.Send(errFrame("unknown_type"))
		return outcomeRejected
	}
}

func (h *Handlers) handleJoin(ctx context.Context, client *session.Client, data interface{}) outcome {
	var req models.JoinRequest
	if err := decodePayload(data, &req); err != nil {
		client.Send(joinErrFrame("Join failed"))
		return outcomeRejected
	}
	if err := validateString(req.PresentationID, "presentationId"); err != nil {
		client.Send(joinErrFrame(err.Error()))
		return outcomeRejected
	}
	if err := validateString(req.DisplayName, "displayName"); err != nil {
		client.Send(joinErrFrame(err.Error()))
		return outcomeRejected
	}

	sess, announce, prevConn, err := h.dir.Join(ctx, req.PresentationID, req.DisplayName, client.ID)
	if errors.Is(err, session.ErrNameInUse) {
		client.Send(joinErrFrame("Display name already taken"))
		return outcomeRejected
	}
	if err != nil {
		h.log.Error("join failed", "presentationId", req.PresentationID, "error", err.Error())
		client.Send(joinErrFrame("Join failed"))
		return outcomeFailed
	}
	// A rebind within the grace window must not let the stale timer remove
	// the membership we just reclaimed.
	if prevConn != "" && prevConn != client.ID {
		h.tracker.Cancel(prevConn)
	}

	room := h.hub.GetOrCreate(sess.PresentationID)
	room.Subscribe(client)
	client.SetPresentation(sess.PresentationID)

	// Silent on reconnect rebinds: the roster has not changed, and flashing
	// a leave/join would be wrong.
	if announce {
		h.broadcastRoster(ctx, sess.PresentationID)
	}
	return outcomeApplied
}

func (h *Handlers) handleAddElement(ctx context.Context, client *session.Client, data interface{}) outcome {
	var req models.AddElementRequest
	if err := decodePayload(data, &req); err != nil {
		client.Send(errFrame("Add element failed"))
		return outcomeRejected
	}
	for _, err := range []error{
		validateString(req.SlideID, "slideId"),
		validateString(req.Content, "content"),
		validatePosition(req.Position),
		validateSize(req.Size),
	} {
		if err != nil {
			client.Send(errFrame(err.Error()))
			return outcomeRejected
		}
	}

	sess, err := h.dir.LookupByConnection(ctx, client.ID)
	if err != nil {
		h.log.Error("session lookup failed", "connectionId", client.ID, "error", err.Error())
		client.Send(errFrame("Add element failed"))
		return outcomeFailed
	}
	if sess == nil || !sess.Role.CanMutateContent() {
		return outcomeIgnored
	}

	elem, err := h.store.CreateElement(ctx, req.SlideID, req.Content, *req.Position, *req.Size)
	if errors.Is(err, store.ErrNotFound) {
		client.Send(errFrame("Slide not found"))
		return outcomeRejected
	}
	if err != nil {
		h.log.Error("add element failed", "slideId", req.SlideID, "error", err.Error())
		client.Send(errFrame("Add element failed"))
		return outcomeFailed
	}
	h.publish(sess.PresentationID, models.WSFrame{Type: "element_added", Data: elem})
	return outcomeApplied
}

func (h *Handlers) handleEditElement(ctx context.Context, client *session.Client, data interface{}) outcome {
	var req models.EditElementRequest
	if err := decodePayload(data, &req); err != nil {
		client.Send(errFrame("Edit element failed"))
		return outcomeRejected
	}
	for _, err := range []error{
		validateString(req.ElementID, "elementId"),
		validateString(req.Content, "content"),
		validatePosition(req.Position),
	} {
		if err != nil {
			client.Send(errFrame(err.Error()))
			return outcomeRejected
		}
	}

	sess, err := h.dir.LookupByConnection(ctx, client.ID)
	if err != nil {
		h.log.Error("session lookup failed", "connectionId", client.ID, "error", err.Error())
		client.Send(errFrame("Edit element failed"))
		return outcomeFailed
	}
	if sess == nil || !sess.Role.CanMutateContent() {
		return outcomeIgnored
	}

	// Last write observed by the store wins; there is no version check.
	elem, err := h.store.UpdateElement(ctx, req.ElementID, req.Content, *req.Position)
	if errors.Is(err, store.ErrNotFound) {
		client.Send(errFrame("Element not found"))
		return outcomeRejected
	}
	if err != nil {
		h.log.Error("edit element failed", "elementId", req.ElementID, "error", err.Error())
		client.Send(errFrame("Edit element failed"))
		return outcomeFailed
	}
	h.publish(sess.PresentationID, models.WSFrame{Type: "element_updated", Data: elem})
	return outcomeApplied
}

func (h *Handlers) handleDeleteElement(ctx context.Context, client *session.Client, data interface{}) outcome {
	var req models.DeleteElementRequest
	if err := decodePayload(data, &req); err != nil {
		client.Send(errFrame("Delete element failed"))
		return outcomeRejected
	}
	if err := validateString(req.ElementID, "elementId"); err != nil {
		client.Send(errFrame(err.Error()))
		return outcomeRejected
	}

	sess, err := h.dir.LookupByConnection(ctx, client.ID)
	if err != nil {
		h.log.Error("session lookup failed", "connectionId", client.ID, "error", err.Error())
		client.Send(errFrame("Delete element failed"))
		return outcomeFailed
	}
	if sess == nil || !sess.Role.CanMutateContent() {
		return outcomeIgnored
	}

	err = h.store.DeleteElement(ctx, req.ElementID)
	if errors.Is(err, store.ErrNotFound) {
		// Idempotent: the element is already gone, nothing to report or
		// broadcast.
		return outcomeApplied
	}
	if err != nil {
		h.log.Error("delete element failed", "elementId", req.ElementID, "error", err.Error())
		client.Send(errFrame("Delete element failed"))
		return outcomeFailed
	}
	h.publish(sess.PresentationID, models.WSFrame{Type: "element_deleted", Data: models.ElementDeleted{ElementID: req.ElementID}})
	return outcomeApplied
}

func (h *Handlers) handleUpdateRole(ctx context.Context, client *session.Client, data interface{}) outcome {
	var req models.UpdateRoleRequest
	if err := decodePayload(data, &req); err != nil {
		client.Send(errFrame("Update role failed"))
		return outcomeRejected
	}
	for _, err := range []error{
		validateString(req.SessionID, "sessionId"),
		validateString(req.PresentationID, "presentationId"),
	} {
		if err != nil {
			client.Send(errFrame(err.Error()))
			return outcomeRejected
		}
	}
	if !req.NewRole.Valid() {
		client.Send(errFrame("Invalid or missing field: newRole"))
		return outcomeRejected
	}

	sess, err := h.dir.LookupByConnection(ctx, client.ID)
	if err != nil {
		h.log.Error("session lookup failed", "connectionId", client.ID, "error", err.Error())
		client.Send(errFrame("Update role failed"))
		return outcomeFailed
	}
	// Any CREATOR may reassign roles, including demoting another CREATOR;
	// nothing guarantees at least one CREATOR remains.
	if sess == nil || !sess.Role.CanManageStructure() {
		return outcomeIgnored
	}

	if _, err := h.dir.SetRole(ctx, req.SessionID, req.NewRole); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			client.Send(errFrame("Session not found"))
			return outcomeRejected
		}
		h.log.Error("update role failed", "sessionId", req.SessionID, "error", err.Error())
		client.Send(errFrame("Update role failed"))
		return outcomeFailed
	}
	h.broadcastRoster(ctx, req.PresentationID)
	return outcomeApplied
}

func (h *Handlers) handleGetMyRole(ctx context.Context, client *session.Client) outcome {
	sess, err := h.dir.LookupByConnection(ctx, client.ID)
	if err != nil {
		h.log.Error("session lookup failed", "connectionId", client.ID, "error", err.Error())
		client.Send(errFrame("Failed to get role"))
		return outcomeFailed
	}
	if sess == nil {
		client.Send(errFrame("Session not found"))
		return outcomeRejected
	}
	client.Send(models.WSFrame{Type: "my_role", Data: models.RoleResponse{Role: sess.Role}})
	return outcomeApplied
}

// handleDisconnect unsubscribes the connection immediately and starts the
// grace timer. The membership is removed, and the roster broadcast fired,
// only if no reconnect claims it before the timer elapses.
func (h *Handlers) handleDisconnect(client *session.Client) {
	if pid := client.Presentation(); pid != "" {
		if room, ok := h.hub.Get(pid); ok {
			if room.Unsubscribe(client.ID) == 0 {
				h.hub.Delete(pid)
			}
		}
	}
	h.tracker.Disconnected(client.ID, func() {
		ctx := context.Background()
		removed, err := h.dir.Remove(ctx, client.ID)
		if err != nil {
			// Nobody to notify: the peer is gone.
			h.log.Error("disconnect cleanup failed", "connectionId", client.ID, "error", err.Error())
			return
		}
		if removed != nil {
			h.broadcastRoster(ctx, removed.PresentationID)
		}
	})
}

func (h *Handlers) broadcastRoster(ctx context.Context, presentationID string) {
	members, err := h.dir.ListMembers(ctx, presentationID)
	if err != nil {
		h.log.Error("roster broadcast failed", "presentationId", presentationID, "error", err.Error())
		return
	}
	h.publish(presentationID, models.WSFrame{Type: "usersUpdate", Data: members})
}

// broadcastPresentation pushes a full refresh after structural changes
// (slide add/remove).
func (h *Handlers) broadcastPresentation(ctx context.Context, presentationID string) {
	if _, ok := h.hub.Get(presentationID); !ok {
		return
	}
	detail, err := h.store.GetPresentation(ctx, presentationID)
	if err != nil {
		h.log.Error("presentation broadcast failed", "presentationId", presentationID, "error", err.Error())
		return
	}
	if detail == nil {
		return
	}
	h.publish(presentationID, models.WSFrame{Type: "presentationUpdate", Data: detail})
}

func (h *Handlers) publish(presentationID string, frame models.WSFrame) {
	if room, ok := h.hub.Get(presentationID); ok {
		room.Publish(frame, "")
	}
}

// decodePayload re-marshals the frame's data into the typed payload,
// failing on type mismatches instead of zeroing them out.
func decodePayload(data interface{}, out interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.NewDecoder(bytes.NewReader(b)).Decode(out)
}

func validateString(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("Invalid or missing field: %s", name)
	}
	return nil
}

func validatePosition(pos *models.Position) error {
	if pos == nil {
		return errors.New("Invalid position")
	}
	return nil
}

func validateSize(size *models.Size) error {
	if size == nil {
		return errors.New("Invalid size")
	}
	return nil
}

func errFrame(msg string) models.WSFrame { return models.WSFrame{Type: "error", Data: msg} }

func joinErrFrame(msg string) models.WSFrame { return models.WSFrame{Type: "join_error", Data: msg} }
