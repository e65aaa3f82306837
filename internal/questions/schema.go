package questions

import (
	"fmt"
	"regexp"
)

const (
	SetKind                = "set"
	QuestionKind           = "question"
	SupportedSchemaVersion = 1
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,63}$`)

var supportedLanguages = map[string]struct{}{
	"c":          {},
	"cpp":        {},
	"python":     {},
	"javascript": {},
}

type Set struct {
	Kind          string         `yaml:"kind"`
	SchemaVersion int            `yaml:"schema_version"`
	SetID         string         `yaml:"set_id"`
	Name          string         `yaml:"name"`
	Version       string         `yaml:"version"`
	DescriptionMD string         `yaml:"description_md"`
	Defaults      SetDefaults    `yaml:"defaults"`
	Questions     []QuestionRef  `yaml:"questions"`
	Extensions    map[string]any `yaml:"extensions"`

	Path            string     `yaml:"-"`
	LoadedQuestions []Question `yaml:"-"`
}

type SetDefaults struct {
	Language string    `yaml:"language"`
	Judge    JudgeSpec `yaml:"judge"`
}

type QuestionRef struct {
	QuestionID string `yaml:"question_id"`
	Path       string `yaml:"path"`
	Enabled    *bool  `yaml:"enabled"`
}

type Question struct {
	Kind          string         `yaml:"kind"`
	SchemaVersion int            `yaml:"schema_version"`
	QuestionID    string         `yaml:"question_id"`
	Title         string         `yaml:"title"`
	Difficulty    int            `yaml:"difficulty"`
	Language      string         `yaml:"language"`
	Topics        []string       `yaml:"topics"`
	StatementMD   string         `yaml:"statement_md"`
	Files         []CodeFile     `yaml:"files"`
	Tests         []TestCase     `yaml:"tests"`
	Judge         JudgeSpec      `yaml:"judge"`
	Extensions    map[string]any `yaml:"extensions"`

	Path string `yaml:"-"`
}

// CodeFile is one file of a question workspace. Filename is the identity:
// unique within a question, and the key restores and drafts merge on.
type CodeFile struct {
	Filename     string `yaml:"filename"`
	Content      string `yaml:"content"`
	IsLocked     bool   `yaml:"is_locked"`
	IsAnswerFile bool   `yaml:"is_answer_file"`
	IsHidden     bool   `yaml:"is_hidden"`
	Language     string `yaml:"language"`
}

type TestCase struct {
	Input          string `yaml:"input"`
	ExpectedOutput string `yaml:"expected_output"`
	IsHidden       bool   `yaml:"is_hidden"`
}

type JudgeSpec struct {
	NormalizeCRLF         *bool `yaml:"normalize_crlf"`
	IgnoreExtraWhitespace *bool `yaml:"ignore_extra_whitespace"`
	TimeoutSeconds        int   `yaml:"timeout_seconds"`
}

func (s Set) Validate() error {
	if s.Kind != SetKind {
		return fmt.Errorf("kind must be %q", SetKind)
	}
	if s.SchemaVersion == 0 {
		return fmt.Errorf("schema_version is required")
	}
	if s.SchemaVersion > SupportedSchemaVersion {
		return fmt.Errorf("unsupported set schema_version %d (max supported %d)", s.SchemaVersion, SupportedSchemaVersion)
	}
	if !idPattern.MatchString(s.SetID) {
		return fmt.Errorf("invalid set_id %q", s.SetID)
	}
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Version == "" {
		return fmt.Errorf("version is required")
	}
	if s.Defaults.Language != "" {
		if _, ok := supportedLanguages[s.Defaults.Language]; !ok {
			return fmt.Errorf("unsupported defaults.language %q", s.Defaults.Language)
		}
	}
	seen := map[string]struct{}{}
	for _, q := range s.Questions {
		if q.QuestionID == "" {
			return fmt.Errorf("questions[].question_id is required")
		}
		if _, ok := seen[q.QuestionID]; ok {
			return fmt.Errorf("duplicate question_id %q in set.yaml", q.QuestionID)
		}
		seen[q.QuestionID] = struct{}{}
	}
	return nil
}

func (q Question) Validate() error {
	if q.Kind != QuestionKind {
		return fmt.Errorf("kind must be %q", QuestionKind)
	}
	if q.SchemaVersion == 0 {
		return fmt.Errorf("schema_version is required")
	}
	if q.SchemaVersion > SupportedSchemaVersion {
		return fmt.Errorf("unsupported question schema_version %d (max supported %d)", q.SchemaVersion, SupportedSchemaVersion)
	}
	if !idPattern.MatchString(q.QuestionID) {
		return fmt.Errorf("invalid question_id %q", q.QuestionID)
	}
	if q.Title == "" {
		return fmt.Errorf("title is required")
	}
	if q.Difficulty < 1 || q.Difficulty > 5 {
		return fmt.Errorf("difficulty must be 1..5")
	}
	if q.Language != "" {
		if _, ok := supportedLanguages[q.Language]; !ok {
			return fmt.Errorf("unsupported language %q", q.Language)
		}
	}
	if len(q.Files) == 0 {
		return fmt.Errorf("files must contain at least one entry")
	}
	seenFiles := map[string]struct{}{}
	answerFiles := 0
	for _, f := range q.Files {
		if f.Filename == "" {
			return fmt.Errorf("files[].filename is required")
		}
		if _, ok := seenFiles[f.Filename]; ok {
			return fmt.Errorf("duplicate filename %q", f.Filename)
		}
		seenFiles[f.Filename] = struct{}{}
		if f.IsAnswerFile {
			answerFiles++
		}
		if f.IsAnswerFile && f.IsLocked {
			return fmt.Errorf("file %q cannot be both answer file and locked", f.Filename)
		}
	}
	if answerFiles == 0 {
		return fmt.Errorf("question must have at least one answer file")
	}
	if len(q.Tests) == 0 {
		return fmt.Errorf("tests must contain at least one case")
	}
	for i, tc := range q.Tests {
		if tc.ExpectedOutput == "" {
			return fmt.Errorf("tests[%d].expected_output is required", i)
		}
	}
	if q.Judge.TimeoutSeconds < 0 {
		return fmt.Errorf("judge.timeout_seconds must be >= 0")
	}
	return nil
}

// VisibleFiles filters out hidden files. The result is recomputed from the
// full set whenever files change; hidden files still take part in runs and
// submissions.
func VisibleFiles(files []CodeFile) []CodeFile {
	out := make([]CodeFile, 0, len(files))
	for _, f := range files {
		if !f.IsHidden {
			out = append(out, f)
		}
	}
	return out
}

// FirstAnswerFile returns the filename of the first visible answer file, or
// the first visible file when no answer file is visible, or "" for an empty
// visible set.
func FirstAnswerFile(files []CodeFile) string {
	visible := VisibleFiles(files)
	for _, f := range visible {
		if f.IsAnswerFile {
			return f.Filename
		}
	}
	if len(visible) > 0 {
		return visible[0].Filename
	}
	return ""
}

// PlaceholderFor is the editor seed shown in an answer file that has no
// saved content yet.
func PlaceholderFor(language string) string {
	switch language {
	case "python":
		return "# your solution here\n"
	default:
		return "// your solution here\n"
	}
}
