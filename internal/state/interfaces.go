package state

import (
	"context"
	"time"
)

type Store interface {
	EnsureSchema(ctx context.Context) error

	StartPracticeSession(ctx context.Context, sess PracticeSession) (int64, error)
	RecordRun(ctx context.Context, sessionRowID int64) error
	RecordSubmission(ctx context.Context, sessionRowID int64, passed bool) error
	GetLastSession(ctx context.Context) (*LastSession, error)

	UpsertQuestionProgress(ctx context.Context, update QuestionProgressUpdate) error
	SetQuestionDone(ctx context.Context, questionID string, done bool, score int) error
	GetQuestionProgressMap(ctx context.Context) (map[string]QuestionProgress, error)
	GetQuestionProgress(ctx context.Context, questionID string) (*QuestionProgress, error)

	SaveDraftFiles(ctx context.Context, questionID string, files []DraftFile) error
	LoadDraftFiles(ctx context.Context, questionID string) ([]DraftFile, error)

	PutIterationEntry(ctx context.Context, entry HistoryRecord) error
	AppendSubmissionEntry(ctx context.Context, entry HistoryRecord, keep int) error
	DeleteIterationEntry(ctx context.Context, questionID string) error
	ListHistory(ctx context.Context, questionID string) ([]HistoryRecord, error)

	AppendActivity(ctx context.Context, questionID string, kind string, detail string, at time.Time) error
	CountActivity(ctx context.Context, questionID string) (int, error)

	SaveSettings(ctx context.Context, values map[string]string) error
	LoadSettings(ctx context.Context) (map[string]string, error)

	GetSummary(ctx context.Context) (Summary, error)
	Close() error
}

type PracticeSession struct {
	SessionID  string
	SetID      string
	QuestionID string
	StartTS    time.Time
}

type LastSession struct {
	SetID       string
	QuestionID  string
	StartTS     time.Time
	Runs        int
	Submissions int
	LastPassed  bool
}

type QuestionProgress struct {
	QuestionID      string
	Done            bool
	BestScore       int
	TotalTests      int
	Attempts        int
	LastSubmittedTS time.Time
	UpdatedTS       time.Time
}

type QuestionProgressUpdate struct {
	QuestionID  string
	Passed      bool
	Score       int
	TotalTests  int
	SubmittedTS time.Time
}

type DraftFile struct {
	Filename string
	Content  string
}

// HistoryRecord is the storage shape of one history entry. Files and judge
// results travel as JSON strings; the history package owns the marshalling.
type HistoryRecord struct {
	ID          int64
	QuestionID  string
	Kind        string
	CreatedTS   time.Time
	FilesJSON   string
	ResultsJSON string
	Score       int
	MaxScore    int
}

type Summary struct {
	Sessions      int
	Runs          int
	Submissions   int
	Passes        int
	QuestionsDone int
}
