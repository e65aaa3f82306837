package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS practice_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			set_id TEXT NOT NULL,
			question_id TEXT NOT NULL,
			start_ts TEXT NOT NULL,
			runs INTEGER NOT NULL DEFAULT 0,
			submissions INTEGER NOT NULL DEFAULT 0,
			last_passed INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS question_progress (
			question_id TEXT PRIMARY KEY,
			done INTEGER NOT NULL DEFAULT 0,
			best_score INTEGER NOT NULL DEFAULT 0,
			total_tests INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_submitted_ts TEXT NOT NULL DEFAULT '',
			updated_ts TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS draft_files (
			question_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			content TEXT NOT NULL,
			updated_ts TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY(question_id, filename)
		);`,
		`CREATE TABLE IF NOT EXISTS history_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			question_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			created_ts TEXT NOT NULL,
			files_json TEXT NOT NULL,
			results_json TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL DEFAULT 0,
			max_score INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_history_entries_question ON history_entries(question_id, kind);`,
		`CREATE TABLE IF NOT EXISTS activity_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			question_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_ts TEXT NOT NULL DEFAULT (datetime('now'))
		);`,
		`CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	// Backfill older schemas that predate question_progress.total_tests.
	if _, err := s.db.ExecContext(ctx, `ALTER TABLE question_progress ADD COLUMN total_tests INTEGER NOT NULL DEFAULT 0`); err != nil {
		msg := strings.ToLower(err.Error())
		if !strings.Contains(msg, "duplicate column name") {
			return fmt.Errorf("ensure schema alter question_progress.total_tests: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) StartPracticeSession(ctx context.Context, sess PracticeSession) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO practice_sessions(session_id, set_id, question_id, start_ts) VALUES(?,?,?,?)`,
		sess.SessionID,
		sess.SetID,
		sess.QuestionID,
		sess.StartTS.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) RecordRun(ctx context.Context, sessionRowID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE practice_sessions SET runs = runs + 1 WHERE id = ?`, sessionRowID)
	return err
}

func (s *SQLiteStore) RecordSubmission(ctx context.Context, sessionRowID int64, passed bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE practice_sessions SET submissions = submissions + 1, last_passed = ? WHERE id = ?`,
		ifThen(passed, 1, 0), sessionRowID)
	return err
}

func (s *SQLiteStore) GetLastSession(ctx context.Context) (*LastSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT set_id, question_id, start_ts, runs, submissions, last_passed
		FROM practice_sessions
		ORDER BY id DESC
		LIMIT 1
	`)
	var (
		out        LastSession
		startTSRaw string
		lastPassed int
	)
	if err := row.Scan(&out.SetID, &out.QuestionID, &startTSRaw, &out.Runs, &out.Submissions, &lastPassed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if t, err := time.Parse(timeLayout, startTSRaw); err == nil {
		out.StartTS = t
	}
	out.LastPassed = lastPassed == 1
	return &out, nil
}

func (s *SQLiteStore) UpsertQuestionProgress(ctx context.Context, update QuestionProgressUpdate) error {
	questionID := strings.TrimSpace(update.QuestionID)
	if questionID == "" {
		return nil
	}
	submitted := update.SubmittedTS
	if submitted.IsZero() {
		submitted = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO question_progress(question_id, done, best_score, total_tests, attempts, last_submitted_ts, updated_ts)
		VALUES(?, 0, ?, ?, 1, ?, ?)
		ON CONFLICT(question_id) DO UPDATE SET
			best_score = CASE
				WHEN excluded.best_score > question_progress.best_score THEN excluded.best_score
				ELSE question_progress.best_score
			END,
			total_tests = excluded.total_tests,
			attempts = question_progress.attempts + 1,
			last_submitted_ts = excluded.last_submitted_ts,
			updated_ts = excluded.updated_ts
	`,
		questionID,
		max(0, update.Score),
		max(0, update.TotalTests),
		submitted.UTC().Format(timeLayout),
		submitted.UTC().Format(timeLayout),
	)
	return err
}

func (s *SQLiteStore) SetQuestionDone(ctx context.Context, questionID string, done bool, score int) error {
	questionID = strings.TrimSpace(questionID)
	if questionID == "" {
		return nil
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO question_progress(question_id, done, best_score, updated_ts)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(question_id) DO UPDATE SET
			done = excluded.done,
			best_score = CASE
				WHEN excluded.best_score > question_progress.best_score THEN excluded.best_score
				ELSE question_progress.best_score
			END,
			updated_ts = excluded.updated_ts
	`, questionID, ifThen(done, 1, 0), max(0, score), now)
	return err
}

func (s *SQLiteStore) GetQuestionProgressMap(ctx context.Context) (map[string]QuestionProgress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, done, best_score, total_tests, attempts, last_submitted_ts, updated_ts
		FROM question_progress
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]QuestionProgress{}
	for rows.Next() {
		p, err := scanQuestionProgress(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[p.QuestionID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) GetQuestionProgress(ctx context.Context, questionID string) (*QuestionProgress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT question_id, done, best_score, total_tests, attempts, last_submitted_ts, updated_ts
		FROM question_progress
		WHERE question_id = ?
	`, questionID)
	p, err := scanQuestionProgress(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func scanQuestionProgress(scan func(dest ...any) error) (QuestionProgress, error) {
	var (
		p            QuestionProgress
		done         int
		submittedRaw string
		updatedRaw   string
	)
	if err := scan(&p.QuestionID, &done, &p.BestScore, &p.TotalTests, &p.Attempts, &submittedRaw, &updatedRaw); err != nil {
		return QuestionProgress{}, err
	}
	p.Done = done == 1
	if t, err := time.Parse(timeLayout, submittedRaw); err == nil {
		p.LastSubmittedTS = t
	}
	if t, err := time.Parse(timeLayout, updatedRaw); err == nil {
		p.UpdatedTS = t
	}
	return p, nil
}

// SaveDraftFiles replaces the question's draft set in one transaction so a
// partial write can never mix old and new contents.
func (s *SQLiteStore) SaveDraftFiles(ctx context.Context, questionID string, files []DraftFile) error {
	questionID = strings.TrimSpace(questionID)
	if questionID == "" {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM draft_files WHERE question_id = ?`, questionID); err != nil {
		return err
	}
	now := time.Now().UTC().Format(timeLayout)
	for _, f := range files {
		if f.Filename == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO draft_files(question_id, filename, content, updated_ts) VALUES(?, ?, ?, ?)
		`, questionID, f.Filename, f.Content, now); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) LoadDraftFiles(ctx context.Context, questionID string) ([]DraftFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, content
		FROM draft_files
		WHERE question_id = ?
		ORDER BY filename
	`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]DraftFile, 0)
	for rows.Next() {
		var f DraftFile
		if err := rows.Scan(&f.Filename, &f.Content); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// PutIterationEntry keeps at most one iteration row per question.
func (s *SQLiteStore) PutIterationEntry(ctx context.Context, entry HistoryRecord) error {
	questionID := strings.TrimSpace(entry.QuestionID)
	if questionID == "" {
		return nil
	}
	entry.Kind = "iteration"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM history_entries WHERE question_id = ? AND kind = 'iteration'`,
		questionID); err != nil {
		return err
	}
	if err = insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// AppendSubmissionEntry inserts the entry and evicts the oldest rows beyond
// keep, inside one transaction so every reader observes the cap.
func (s *SQLiteStore) AppendSubmissionEntry(ctx context.Context, entry HistoryRecord, keep int) error {
	questionID := strings.TrimSpace(entry.QuestionID)
	if questionID == "" {
		return nil
	}
	entry.Kind = "submission"
	if keep <= 0 {
		keep = 5
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		DELETE FROM history_entries
		WHERE question_id = ? AND kind = 'submission' AND id NOT IN (
			SELECT id FROM history_entries
			WHERE question_id = ? AND kind = 'submission'
			ORDER BY id DESC
			LIMIT ?
		)
	`, questionID, questionID, keep); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, entry HistoryRecord) error {
	created := entry.CreatedTS
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO history_entries(question_id, kind, created_ts, files_json, results_json, score, max_score)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`,
		strings.TrimSpace(entry.QuestionID),
		entry.Kind,
		created.UTC().Format(timeLayout),
		entry.FilesJSON,
		entry.ResultsJSON,
		entry.Score,
		entry.MaxScore,
	)
	return err
}

func (s *SQLiteStore) DeleteIterationEntry(ctx context.Context, questionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM history_entries WHERE question_id = ? AND kind = 'iteration'`,
		strings.TrimSpace(questionID))
	return err
}

func (s *SQLiteStore) ListHistory(ctx context.Context, questionID string) ([]HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question_id, kind, created_ts, files_json, results_json, score, max_score
		FROM history_entries
		WHERE question_id = ?
		ORDER BY id DESC
	`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]HistoryRecord, 0)
	for rows.Next() {
		var (
			rec        HistoryRecord
			createdRaw string
		)
		if err := rows.Scan(&rec.ID, &rec.QuestionID, &rec.Kind, &createdRaw, &rec.FilesJSON, &rec.ResultsJSON, &rec.Score, &rec.MaxScore); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeLayout, createdRaw); err == nil {
			rec.CreatedTS = t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) AppendActivity(ctx context.Context, questionID string, kind string, detail string, at time.Time) error {
	if strings.TrimSpace(questionID) == "" || strings.TrimSpace(kind) == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log(question_id, kind, detail, created_ts) VALUES(?, ?, ?, ?)
	`, strings.TrimSpace(questionID), strings.TrimSpace(kind), detail, at.UTC().Format(timeLayout))
	return err
}

func (s *SQLiteStore) CountActivity(ctx context.Context, questionID string) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_log WHERE question_id = ?`,
		strings.TrimSpace(questionID))
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for key, value := range values {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO app_settings(key, value) VALUES(?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, k, value); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) LoadSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) GetSummary(ctx context.Context) (Summary, error) {
	var out Summary
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) as sessions,
			COALESCE(SUM(runs),0) as runs,
			COALESCE(SUM(submissions),0) as submissions,
			COALESCE(SUM(last_passed),0) as passes
		FROM practice_sessions
	`)
	if err := row.Scan(&out.Sessions, &out.Runs, &out.Submissions, &out.Passes); err != nil {
		return Summary{}, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM question_progress WHERE done = 1`)
	if err := row.Scan(&out.QuestionsDone); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func ifThen(cond bool, yes, no int) int {
	if cond {
		return yes
	}
	return no
}
