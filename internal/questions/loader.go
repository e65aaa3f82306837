package questions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type FSLoader struct{}

func NewLoader() *FSLoader { return &FSLoader{} }

func (l *FSLoader) LoadSets(ctx context.Context, root string) ([]Set, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	sets := make([]Set, 0)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		setPath := filepath.Join(root, entry.Name())
		setYAML := filepath.Join(setPath, "set.yaml")
		if _, err := os.Stat(setYAML); err != nil {
			continue
		}
		set, err := readSet(setYAML)
		if err != nil {
			return nil, fmt.Errorf("load set %s: %w", setPath, err)
		}
		set.Path = setPath
		applySetDefaults(&set)

		qs, err := l.readQuestions(set)
		if err != nil {
			return nil, err
		}
		set.LoadedQuestions = qs
		sets = append(sets, set)
	}

	sort.Slice(sets, func(i, j int) bool { return sets[i].SetID < sets[j].SetID })
	return sets, nil
}

func readSet(path string) (Set, error) {
	var set Set
	b, err := os.ReadFile(path)
	if err != nil {
		return set, err
	}
	if err := yaml.Unmarshal(b, &set); err != nil {
		return set, err
	}
	if err := set.Validate(); err != nil {
		return set, err
	}
	return set, nil
}

func applySetDefaults(set *Set) {
	if set.Defaults.Language == "" {
		set.Defaults.Language = "c"
	}
	if set.Defaults.Judge.NormalizeCRLF == nil {
		v := true
		set.Defaults.Judge.NormalizeCRLF = &v
	}
	if set.Defaults.Judge.IgnoreExtraWhitespace == nil {
		v := true
		set.Defaults.Judge.IgnoreExtraWhitespace = &v
	}
	if set.Defaults.Judge.TimeoutSeconds <= 0 {
		set.Defaults.Judge.TimeoutSeconds = 10
	}
}

func (l *FSLoader) readQuestions(set Set) ([]Question, error) {
	if len(set.Questions) > 0 {
		return l.readQuestionsFromManifest(set)
	}
	return l.readQuestionsFromScan(set)
}

func (l *FSLoader) readQuestionsFromManifest(set Set) ([]Question, error) {
	qs := make([]Question, 0, len(set.Questions))
	for _, ref := range set.Questions {
		if ref.Enabled != nil && !*ref.Enabled {
			continue
		}
		qYAML := filepath.Join(set.Path, ref.Path)
		q, err := loadQuestionFile(qYAML)
		if err != nil {
			return nil, err
		}
		if q.QuestionID != ref.QuestionID {
			return nil, fmt.Errorf("question id mismatch for %s: manifest=%s file=%s", qYAML, ref.QuestionID, q.QuestionID)
		}
		applyQuestionDefaults(&q, set)
		qs = append(qs, q)
	}
	return qs, nil
}

func (l *FSLoader) readQuestionsFromScan(set Set) ([]Question, error) {
	qRoot := filepath.Join(set.Path, "questions")
	entries, err := os.ReadDir(qRoot)
	if err != nil {
		return nil, err
	}
	qs := make([]Question, 0)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		q, err := loadQuestionFile(filepath.Join(qRoot, e.Name()))
		if err != nil {
			return nil, err
		}
		applyQuestionDefaults(&q, set)
		qs = append(qs, q)
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].QuestionID < qs[j].QuestionID })
	return qs, nil
}

func loadQuestionFile(path string) (Question, error) {
	var q Question
	b, err := os.ReadFile(path)
	if err != nil {
		return q, err
	}
	if err := yaml.Unmarshal(b, &q); err != nil {
		return q, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := q.Validate(); err != nil {
		return q, fmt.Errorf("validate %s: %w", path, err)
	}
	q.Path = path
	return q, nil
}

func applyQuestionDefaults(q *Question, set Set) {
	if q.Language == "" {
		q.Language = set.Defaults.Language
	}
	if q.Judge.NormalizeCRLF == nil {
		q.Judge.NormalizeCRLF = set.Defaults.Judge.NormalizeCRLF
	}
	if q.Judge.IgnoreExtraWhitespace == nil {
		q.Judge.IgnoreExtraWhitespace = set.Defaults.Judge.IgnoreExtraWhitespace
	}
	if q.Judge.TimeoutSeconds <= 0 {
		q.Judge.TimeoutSeconds = set.Defaults.Judge.TimeoutSeconds
	}
	for i := range q.Files {
		if q.Files[i].Language == "" {
			q.Files[i].Language = q.Language
		}
	}
}

func (l *FSLoader) FindQuestion(sets []Set, setID string, questionID string) (Set, Question, error) {
	for _, s := range sets {
		if s.SetID != setID {
			continue
		}
		for _, q := range s.LoadedQuestions {
			if q.QuestionID == questionID {
				return s, q, nil
			}
		}
	}
	return Set{}, Question{}, fmt.Errorf("question %s/%s not found", setID, questionID)
}
