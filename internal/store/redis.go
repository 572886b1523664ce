package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"presenter/internal/models"
)

// Redis key layout:
//
//	pres:{id}            hash  id, title, createdAt
//	pres:index           zset  presentation ids scored by creation time
//	pres:{id}:slides     zset  slide ids scored by slideIndex
//	pres:{id}:sessions   zset  session ids scored by join sequence
//	pres:{id}:names      hash  displayName -> session id
//	slide:{id}           hash  id, presentationId, slideIndex
//	slide:{id}:elements  set   element ids
//	elem:{id}            hash  id, slideId, content, posX, posY, width, height
//	sess:{id}            hash  id, presentationId, displayName, role, connectionId, joinedAt
//	conn:{id}            string session id bound to that connection
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func presKey(id string) string { return "pres:" + id }
func slidesKey(id string) string { return "pres:" + id + ":slides" }
func sessionsKey(id string) string { return "pres:" + id + ":sessions" }
func namesKey(id string) string { return "pres:" + id + ":names" }
func slideKey(id string) string { return "slide:" + id }
func elementsKey(id string) string { return "slide:" + id + ":elements" }
func elemKey(id string) string { return "elem:" + id }
func sessKey(id string) string { return "sess:" + id }
func connKey(id string) string { return "conn:" + id }

func (s *RedisStore) CreatePresentation(ctx context.Context, title string) (*models.Presentation, error) {
	p := &models.Presentation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	err := s.rdb.HSet(ctx, presKey(p.ID), map[string]interface{}{
		"id":        p.ID,
		"title":     p.Title,
		"createdAt": p.CreatedAt.Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("create presentation: %w", err)
	}
	err = s.rdb.ZAdd(ctx, "pres:index", redis.Z{
		Score:  float64(p.CreatedAt.UnixNano()),
		Member: p.ID,
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("index presentation: %w", err)
	}
	return p, nil
}

func (s *RedisStore) getPresentation(ctx context.Context, id string) (*models.Presentation, error) {
	m, err := s.rdb.HGetAll(ctx, presKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, m["createdAt"])
	return &models.Presentation{ID: m["id"], Title: m["title"], CreatedAt: createdAt}, nil
}

func (s *RedisStore) ListPresentations(ctx context.Context) ([]models.Presentation, error) {
	ids, err := s.rdb.ZRevRange(ctx, "pres:index", 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	out := make([]models.Presentation, 0, len(ids))
	for _, id := range ids {
		p, err := s.getPresentation(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *RedisStore) GetPresentation(ctx context.Context, id string) (*models.PresentationDetail, error) {
	p, err := s.getPresentation(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	slides, err := s.ListSlides(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &models.PresentationDetail{Presentation: *p, Slides: make([]models.SlideDetail, 0, len(slides))}
	for _, sl := range slides {
		elements, err := s.listElements(ctx, sl.ID)
		if err != nil {
			return nil, err
		}
		detail.Slides = append(detail.Slides, models.SlideDetail{Slide: sl, Elements: elements})
	}
	detail.Sessions, err = s.ListSessions(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

/*** Sessions ***/

func (s *RedisStore) CreateSession(ctx context.Context, presentationID, displayName string, role models.Role) (*models.Session, error) {
	sess := &models.Session{
		ID:             uuid.NewString(),
		PresentationID: presentationID,
		DisplayName:    displayName,
		Role:           role,
		JoinedAt:       time.Now().UTC(),
	}
	if err := s.writeSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	seq, err := s.rdb.Incr(ctx, "sess:seq").Result()
	if err != nil {
		return nil, fmt.Errorf("session sequence: %w", err)
	}
	err = s.rdb.ZAdd(ctx, sessionsKey(presentationID), redis.Z{Score: float64(seq), Member: sess.ID}).Err()
	if err != nil {
		return nil, fmt.Errorf("index session: %w", err)
	}
	if err := s.rdb.HSet(ctx, namesKey(presentationID), displayName, sess.ID).Err(); err != nil {
		return nil, fmt.Errorf("index session name: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) writeSession(ctx context.Context, sess *models.Session) error {
	return s.rdb.HSet(ctx, sessKey(sess.ID), map[string]interface{}{
		"id":             sess.ID,
		"presentationId": sess.PresentationID,
		"displayName":    sess.DisplayName,
		"role":           string(sess.Role),
		"connectionId":   sess.ConnectionID,
		"joinedAt":       sess.JoinedAt.Format(time.RFC3339Nano),
	}).Err()
}

func (s *RedisStore) getSession(ctx context.Context, id string) (*models.Session, error) {
	m, err := s.rdb.HGetAll(ctx, sessKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	joinedAt, _ := time.Parse(time.RFC3339Nano, m["joinedAt"])
	return &models.Session{
		ID:             m["id"],
		PresentationID: m["presentationId"],
		DisplayName:    m["displayName"],
		Role:           models.Role(m["role"]),
		ConnectionID:   m["connectionId"],
		JoinedAt:       joinedAt,
	}, nil
}

func (s *RedisStore) FindSessionByName(ctx context.Context, presentationID, displayName string) (*models.Session, error) {
	id, err := s.rdb.HGet(ctx, namesKey(presentationID), displayName).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session by name: %w", err)
	}
	return s.getSession(ctx, id)
}

func (s *RedisStore) FindSessionByConnection(ctx context.Context, connectionID string) (*models.Session, error) {
	id, err := s.rdb.Get(ctx, connKey(connectionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session by connection: %w", err)
	}
	return s.getSession(ctx, id)
}

func (s *RedisStore) UpdateSessionRole(ctx context.Context, sessionID string, role models.Role) (*models.Session, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("update session role: %w", err)
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	sess.Role = role
	if err := s.writeSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("update session role: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) UpdateSessionConnection(ctx context.Context, sessionID, connectionID string) (*models.Session, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("update session connection: %w", err)
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	if sess.ConnectionID != "" && sess.ConnectionID != connectionID {
		// Drop the old binding so a stale grace timer finds nothing.
		if err := s.rdb.Del(ctx, connKey(sess.ConnectionID)).Err(); err != nil {
			return nil, fmt.Errorf("unbind old connection: %w", err)
		}
	}
	sess.ConnectionID = connectionID
	if err := s.writeSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("update session connection: %w", err)
	}
	if connectionID != "" {
		if err := s.rdb.Set(ctx, connKey(connectionID), sess.ID, 0).Err(); err != nil {
			return nil, fmt.Errorf("bind connection: %w", err)
		}
	}
	return sess, nil
}

func (s *RedisStore) DeleteSessionsByConnection(ctx context.Context, connectionID string) (*models.Session, error) {
	sess, err := s.FindSessionByConnection(ctx, connectionID)
	if err != nil || sess == nil {
		return nil, err
	}
	if err := s.rdb.Del(ctx, connKey(connectionID)).Err(); err != nil {
		return nil, fmt.Errorf("delete connection binding: %w", err)
	}
	if err := s.rdb.HDel(ctx, namesKey(sess.PresentationID), sess.DisplayName).Err(); err != nil {
		return nil, fmt.Errorf("delete session name: %w", err)
	}
	if err := s.rdb.ZRem(ctx, sessionsKey(sess.PresentationID), sess.ID).Err(); err != nil {
		return nil, fmt.Errorf("deindex session: %w", err)
	}
	if err := s.rdb.Del(ctx, sessKey(sess.ID)).Err(); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) ListSessions(ctx context.Context, presentationID string) ([]models.Session, error) {
	ids, err := s.rdb.ZRange(ctx, sessionsKey(presentationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]models.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.getSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			out = append(out, *sess)
		}
	}
	return out, nil
}

/*** Slides ***/

func (s *RedisStore) ListSlides(ctx context.Context, presentationID string) ([]models.Slide, error) {
	zs, err := s.rdb.ZRangeWithScores(ctx, slidesKey(presentationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	out := make([]models.Slide, 0, len(zs))
	for _, z := range zs {
		out = append(out, models.Slide{
			ID:             z.Member.(string),
			PresentationID: presentationID,
			SlideIndex:     int(z.Score),
		})
	}
	return out, nil
}

func (s *RedisStore) CreateSlide(ctx context.Context, presentationID string, index int) (*models.Slide, error) {
	p, err := s.getPresentation(ctx, presentationID)
	if err != nil {
		return nil, fmt.Errorf("create slide: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	sl := &models.Slide{ID: uuid.NewString(), PresentationID: presentationID, SlideIndex: index}
	err = s.rdb.HSet(ctx, slideKey(sl.ID), map[string]interface{}{
		"id":             sl.ID,
		"presentationId": presentationID,
		"slideIndex":     strconv.Itoa(index),
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("create slide: %w", err)
	}
	err = s.rdb.ZAdd(ctx, slidesKey(presentationID), redis.Z{Score: float64(index), Member: sl.ID}).Err()
	if err != nil {
		return nil, fmt.Errorf("index slide: %w", err)
	}
	return sl, nil
}

func (s *RedisStore) getSlide(ctx context.Context, slideID string) (*models.Slide, error) {
	m, err := s.rdb.HGetAll(ctx, slideKey(slideID)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	index, _ := strconv.Atoi(m["slideIndex"])
	return &models.Slide{ID: m["id"], PresentationID: m["presentationId"], SlideIndex: index}, nil
}

func (s *RedisStore) GetSlide(ctx context.Context, slideID string) (*models.SlideDetail, error) {
	sl, err := s.getSlide(ctx, slideID)
	if err != nil || sl == nil {
		return nil, err
	}
	elements, err := s.listElements(ctx, slideID)
	if err != nil {
		return nil, err
	}
	return &models.SlideDetail{Slide: *sl, Elements: elements}, nil
}

func (s *RedisStore) DeleteSlideCascade(ctx context.Context, slideID string) error {
	sl, err := s.getSlide(ctx, slideID)
	if err != nil {
		return fmt.Errorf("delete slide: %w", err)
	}
	if sl == nil {
		return ErrNotFound
	}
	ids, err := s.rdb.SMembers(ctx, elementsKey(slideID)).Result()
	if err != nil {
		return fmt.Errorf("delete slide elements: %w", err)
	}
	for _, id := range ids {
		if err := s.rdb.Del(ctx, elemKey(id)).Err(); err != nil {
			return fmt.Errorf("delete element: %w", err)
		}
	}
	if err := s.rdb.Del(ctx, elementsKey(slideID)).Err(); err != nil {
		return fmt.Errorf("delete element index: %w", err)
	}
	if err := s.rdb.ZRem(ctx, slidesKey(sl.PresentationID), slideID).Err(); err != nil {
		return fmt.Errorf("deindex slide: %w", err)
	}
	if err := s.rdb.Del(ctx, slideKey(slideID)).Err(); err != nil {
		return fmt.Errorf("delete slide: %w", err)
	}
	return nil
}

/*** Elements ***/

func (s *RedisStore) writeElement(ctx context.Context, e *models.SlideElement) error {
	return s.rdb.HSet(ctx, elemKey(e.ID), map[string]interface{}{
		"id":      e.ID,
		"slideId": e.SlideID,
		"content": e.Content,
		"posX":    strconv.FormatFloat(e.Position.X, 'g', -1, 64),
		"posY":    strconv.FormatFloat(e.Position.Y, 'g', -1, 64),
		"width":   strconv.FormatFloat(e.Size.Width, 'g', -1, 64),
		"height":  strconv.FormatFloat(e.Size.Height, 'g', -1, 64),
	}).Err()
}

func (s *RedisStore) getElement(ctx context.Context, id string) (*models.SlideElement, error) {
	m, err := s.rdb.HGetAll(ctx, elemKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	x, _ := strconv.ParseFloat(m["posX"], 64)
	y, _ := strconv.ParseFloat(m["posY"], 64)
	w, _ := strconv.ParseFloat(m["width"], 64)
	h, _ := strconv.ParseFloat(m["height"], 64)
	return &models.SlideElement{
		ID:       m["id"],
		SlideID:  m["slideId"],
		Content:  m["content"],
		Position: models.Position{X: x, Y: y},
		Size:     models.Size{Width: w, Height: h},
	}, nil
}

func (s *RedisStore) listElements(ctx context.Context, slideID string) ([]models.SlideElement, error) {
	ids, err := s.rdb.SMembers(ctx, elementsKey(slideID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}
	out := make([]models.SlideElement, 0, len(ids))
	for _, id := range ids {
		e, err := s.getElement(ctx, id)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *RedisStore) CreateElement(ctx context.Context, slideID, content string, pos models.Position, size models.Size) (*models.SlideElement, error) {
	sl, err := s.getSlide(ctx, slideID)
	if err != nil {
		return nil, fmt.Errorf("create element: %w", err)
	}
	if sl == nil {
		return nil, ErrNotFound
	}
	e := &models.SlideElement{
		ID:       uuid.NewString(),
		SlideID:  slideID,
		Content:  content,
		Position: pos,
		Size:     size,
	}
	if err := s.writeElement(ctx, e); err != nil {
		return nil, fmt.Errorf("create element: %w", err)
	}
	if err := s.rdb.SAdd(ctx, elementsKey(slideID), e.ID).Err(); err != nil {
		return nil, fmt.Errorf("index element: %w", err)
	}
	return e, nil
}

func (s *RedisStore) UpdateElement(ctx context.Context, elementID, content string, pos models.Position) (*models.SlideElement, error) {
	e, err := s.getElement(ctx, elementID)
	if err != nil {
		return nil, fmt.Errorf("update element: %w", err)
	}
	if e == nil {
		return nil, ErrNotFound
	}
	e.Content = content
	e.Position = pos
	if err := s.writeElement(ctx, e); err != nil {
		return nil, fmt.Errorf("update element: %w", err)
	}
	return e, nil
}

func (s *RedisStore) DeleteElement(ctx context.Context, elementID string) error {
	e, err := s.getElement(ctx, elementID)
	if err != nil {
		return fmt.Errorf("delete element: %w", err)
	}
	if e == nil {
		return ErrNotFound
	}
	if err := s.rdb.SRem(ctx, elementsKey(e.SlideID), elementID).Err(); err != nil {
		return fmt.Errorf("deindex element: %w", err)
	}
	if err := s.rdb.Del(ctx, elemKey(elementID)).Err(); err != nil {
		return fmt.Errorf("delete element: %w", err)
	}
	return nil
}
