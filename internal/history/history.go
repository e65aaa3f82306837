package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dsadojo/internal/grading"
	"dsadojo/internal/questions"
	"dsadojo/internal/state"
)

const (
	KindSubmission = "submission"
	KindIteration  = "iteration"

	// MaxSubmissions caps stored submissions per question; the oldest entry
	// is evicted when a new one arrives.
	MaxSubmissions = 5
)

// SnapshotFile is the persisted slice of a CodeFile. Only filename and
// content are stored; metadata stays with the live file set, so a restore
// can never flip locked or hidden flags.
type SnapshotFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type Entry struct {
	ID        int64
	Kind      string
	Timestamp time.Time
	Files     []SnapshotFile
	Results   []grading.TestResult
	Score     int
	MaxScore  int
}

// Persister is the slice of the state store the history client needs.
type Persister interface {
	PutIterationEntry(ctx context.Context, entry state.HistoryRecord) error
	AppendSubmissionEntry(ctx context.Context, entry state.HistoryRecord, keep int) error
	DeleteIterationEntry(ctx context.Context, questionID string) error
	ListHistory(ctx context.Context, questionID string) ([]state.HistoryRecord, error)
}

type Client struct {
	store Persister
}

func NewClient(store Persister) *Client { return &Client{store: store} }

// RecordIteration upserts the single work-in-progress draft for a question.
func (c *Client) RecordIteration(ctx context.Context, questionID string, files []questions.CodeFile) error {
	filesJSON, err := marshalFiles(files)
	if err != nil {
		return err
	}
	return c.store.PutIterationEntry(ctx, state.HistoryRecord{
		QuestionID: questionID,
		Kind:       KindIteration,
		CreatedTS:  time.Now().UTC(),
		FilesJSON:  filesJSON,
	})
}

func (c *Client) RecordSubmission(ctx context.Context, questionID string, files []questions.CodeFile, results []grading.TestResult, score, maxScore int) error {
	filesJSON, err := marshalFiles(files)
	if err != nil {
		return err
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	return c.store.AppendSubmissionEntry(ctx, state.HistoryRecord{
		QuestionID:  questionID,
		Kind:        KindSubmission,
		CreatedTS:   time.Now().UTC(),
		FilesJSON:   filesJSON,
		ResultsJSON: string(resultsJSON),
		Score:       score,
		MaxScore:    maxScore,
	}, MaxSubmissions)
}

func (c *Client) ClearIteration(ctx context.Context, questionID string) error {
	return c.store.DeleteIterationEntry(ctx, questionID)
}

// List returns the question's history newest first, the iteration draft
// included wherever its insertion order put it.
func (c *Client) List(ctx context.Context, questionID string) ([]Entry, error) {
	records, err := c.store.ListHistory(ctx, questionID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(records))
	for _, rec := range records {
		entry := Entry{
			ID:        rec.ID,
			Kind:      rec.Kind,
			Timestamp: rec.CreatedTS,
			Score:     rec.Score,
			MaxScore:  rec.MaxScore,
		}
		if rec.FilesJSON != "" {
			if err := json.Unmarshal([]byte(rec.FilesJSON), &entry.Files); err != nil {
				return nil, fmt.Errorf("unmarshal history files for %s: %w", questionID, err)
			}
		}
		if rec.ResultsJSON != "" {
			if err := json.Unmarshal([]byte(rec.ResultsJSON), &entry.Results); err != nil {
				return nil, fmt.Errorf("unmarshal history results for %s: %w", questionID, err)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// Snapshot converts live files to their persisted shape.
func Snapshot(files []questions.CodeFile) []SnapshotFile {
	out := make([]SnapshotFile, 0, len(files))
	for _, f := range files {
		out = append(out, SnapshotFile{Filename: f.Filename, Content: f.Content})
	}
	return out
}

// MergeFiles overlays snapshot contents onto the current file set by
// filename. Only content moves: metadata is kept, files missing from the
// snapshot stay untouched, and snapshot files with no current counterpart
// are dropped.
func MergeFiles(current []questions.CodeFile, snapshot []SnapshotFile) []questions.CodeFile {
	byName := make(map[string]string, len(snapshot))
	for _, f := range snapshot {
		byName[f.Filename] = f.Content
	}
	out := make([]questions.CodeFile, len(current))
	copy(out, current)
	for i := range out {
		if content, ok := byName[out[i].Filename]; ok {
			out[i].Content = content
		}
	}
	return out
}

func marshalFiles(files []questions.CodeFile) (string, error) {
	b, err := json.Marshal(Snapshot(files))
	if err != nil {
		return "", fmt.Errorf("marshal files: %w", err)
	}
	return string(b), nil
}
