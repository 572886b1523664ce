package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"presenter/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL plays better with the concurrent handler goroutines.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS presentations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS slides (
		id TEXT PRIMARY KEY,
		presentation_id TEXT NOT NULL,
		slide_index INTEGER NOT NULL,
		FOREIGN KEY (presentation_id) REFERENCES presentations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_slides_presentation ON slides(presentation_id, slide_index);

	CREATE TABLE IF NOT EXISTS elements (
		id TEXT PRIMARY KEY,
		slide_id TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		pos_x REAL NOT NULL DEFAULT 0,
		pos_y REAL NOT NULL DEFAULT 0,
		width REAL NOT NULL DEFAULT 0,
		height REAL NOT NULL DEFAULT 0,
		FOREIGN KEY (slide_id) REFERENCES slides(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_elements_slide ON elements(slide_id);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		presentation_id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL,
		connection_id TEXT NOT NULL DEFAULT '',
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		join_seq INTEGER,
		UNIQUE (presentation_id, display_name),
		FOREIGN KEY (presentation_id) REFERENCES presentations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_connection ON sessions(connection_id);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreatePresentation(ctx context.Context, title string) (*models.Presentation, error) {
	p := &models.Presentation{ID: uuid.NewString(), Title: title, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO presentations (id, title, created_at) VALUES (?, ?, ?)",
		p.ID, p.Title, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create presentation: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListPresentations(ctx context.Context) ([]models.Presentation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, created_at FROM presentations ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	defer rows.Close()

	out := make([]models.Presentation, 0)
	for rows.Next() {
		var p models.Presentation
		if err := rows.Scan(&p.ID, &p.Title, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetPresentation(ctx context.Context, id string) (*models.PresentationDetail, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, created_at FROM presentations WHERE id = ?", id,
	)
	var p models.Presentation
	err := row.Scan(&p.ID, &p.Title, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get presentation: %w", err)
	}

	slides, err := s.ListSlides(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &models.PresentationDetail{Presentation: p, Slides: make([]models.SlideDetail, 0, len(slides))}
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

func (s *SQLiteStore) CreateSession(ctx context.Context, presentationID, displayName string, role models.Role) (*models.Session, error) {
	sess := &models.Session{
		ID:             uuid.NewString(),
		PresentationID: presentationID,
		DisplayName:    displayName,
		Role:           role,
		JoinedAt:       time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, presentation_id, display_name, role, joined_at, join_seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(join_seq), 0) + 1 FROM sessions))
	`, sess.ID, presentationID, displayName, string(role), sess.JoinedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) scanSession(row *sql.Row) (*models.Session, error) {
	var sess models.Session
	var role string
	err := row.Scan(&sess.ID, &sess.PresentationID, &sess.DisplayName, &role, &sess.ConnectionID, &sess.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess.Role = models.Role(role)
	return &sess, nil
}

const sessionCols = "id, presentation_id, display_name, role, connection_id, joined_at"

func (s *SQLiteStore) FindSessionByName(ctx context.Context, presentationID, displayName string) (*models.Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx,
		"SELECT "+sessionCols+" FROM sessions WHERE presentation_id = ? AND display_name = ?",
		presentationID, displayName,
	))
}

func (s *SQLiteStore) FindSessionByConnection(ctx context.Context, connectionID string) (*models.Session, error) {
	if connectionID == "" {
		return nil, nil
	}
	return s.scanSession(s.db.QueryRowContext(ctx,
		"SELECT "+sessionCols+" FROM sessions WHERE connection_id = ?", connectionID,
	))
}

func (s *SQLiteStore) getSessionByID(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx,
		"SELECT "+sessionCols+" FROM sessions WHERE id = ?", sessionID,
	))
}

func (s *SQLiteStore) UpdateSessionRole(ctx context.Context, sessionID string, role models.Role) (*models.Session, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET role = ? WHERE id = ?", string(role), sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("update session role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.getSessionByID(ctx, sessionID)
}

func (s *SQLiteStore) UpdateSessionConnection(ctx context.Context, sessionID, connectionID string) (*models.Session, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET connection_id = ? WHERE id = ?", connectionID, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("update session connection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.getSessionByID(ctx, sessionID)
}

func (s *SQLiteStore) DeleteSessionsByConnection(ctx context.Context, connectionID string) (*models.Session, error) {
	sess, err := s.FindSessionByConnection(ctx, connectionID)
	if err != nil || sess == nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM sessions WHERE connection_id = ?", connectionID)
	if err != nil {
		return nil, fmt.Errorf("delete sessions by connection: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, presentationID string) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sessionCols+" FROM sessions WHERE presentation_id = ? ORDER BY join_seq ASC",
		presentationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Session, 0)
	for rows.Next() {
		var sess models.Session
		var role string
		if err := rows.Scan(&sess.ID, &sess.PresentationID, &sess.DisplayName, &role, &sess.ConnectionID, &sess.JoinedAt); err != nil {
			return nil, err
		}
		sess.Role = models.Role(role)
		out = append(out, sess)
	}
	return out, rows.Err()
}

/*** Slides ***/

func (s *SQLiteStore) ListSlides(ctx context.Context, presentationID string) ([]models.Slide, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, presentation_id, slide_index FROM slides WHERE presentation_id = ? ORDER BY slide_index ASC",
		presentationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	defer rows.Close()

	out := make([]models.Slide, 0)
	for rows.Next() {
		var sl models.Slide
		if err := rows.Scan(&sl.ID, &sl.PresentationID, &sl.SlideIndex); err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateSlide(ctx context.Context, presentationID string, index int) (*models.Slide, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM presentations WHERE id = ?", presentationID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("create slide: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}
	sl := &models.Slide{ID: uuid.NewString(), PresentationID: presentationID, SlideIndex: index}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO slides (id, presentation_id, slide_index) VALUES (?, ?, ?)",
		sl.ID, presentationID, index,
	)
	if err != nil {
		return nil, fmt.Errorf("create slide: %w", err)
	}
	return sl, nil
}

func (s *SQLiteStore) GetSlide(ctx context.Context, slideID string) (*models.SlideDetail, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, presentation_id, slide_index FROM slides WHERE id = ?", slideID,
	)
	var sl models.Slide
	err := row.Scan(&sl.ID, &sl.PresentationID, &sl.SlideIndex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slide: %w", err)
	}
	elements, err := s.listElements(ctx, slideID)
	if err != nil {
		return nil, err
	}
	return &models.SlideDetail{Slide: sl, Elements: elements}, nil
}

func (s *SQLiteStore) DeleteSlideCascade(ctx context.Context, slideID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete slide: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM elements WHERE slide_id = ?", slideID); err != nil {
		return fmt.Errorf("delete slide elements: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM slides WHERE id = ?", slideID)
	if err != nil {
		return fmt.Errorf("delete slide: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

/*** Elements ***/

func (s *SQLiteStore) listElements(ctx context.Context, slideID string) ([]models.SlideElement, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, slide_id, content, pos_x, pos_y, width, height FROM elements WHERE slide_id = ?",
		slideID,
	)
	if err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}
	defer rows.Close()

	out := make([]models.SlideElement, 0)
	for rows.Next() {
		var e models.SlideElement
		if err := rows.Scan(&e.ID, &e.SlideID, &e.Content, &e.Position.X, &e.Position.Y, &e.Size.Width, &e.Size.Height); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateElement(ctx context.Context, slideID, content string, pos models.Position, size models.Size) (*models.SlideElement, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM slides WHERE id = ?", slideID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("create element: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}
	e := &models.SlideElement{
		ID:       uuid.NewString(),
		SlideID:  slideID,
		Content:  content,
		Position: pos,
		Size:     size,
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO elements (id, slide_id, content, pos_x, pos_y, width, height) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.SlideID, e.Content, e.Position.X, e.Position.Y, e.Size.Width, e.Size.Height,
	)
	if err != nil {
		return nil, fmt.Errorf("create element: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) UpdateElement(ctx context.Context, elementID, content string, pos models.Position) (*models.SlideElement, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE elements SET content = ?, pos_x = ?, pos_y = ? WHERE id = ?",
		content, pos.X, pos.Y, elementID,
	)
	if err != nil {
		return nil, fmt.Errorf("update element: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT id, slide_id, content, pos_x, pos_y, width, height FROM elements WHERE id = ?", elementID,
	)
	var e models.SlideElement
	if err := row.Scan(&e.ID, &e.SlideID, &e.Content, &e.Position.X, &e.Position.Y, &e.Size.Width, &e.Size.Height); err != nil {
		return nil, fmt.Errorf("update element: %w", err)
	}
	return &e, nil
}

func (s *SQLiteStore) DeleteElement(ctx context.Context, elementID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM elements WHERE id = ?", elementID)
	if err != nil {
		return fmt.Errorf("delete element: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
