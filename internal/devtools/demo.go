package devtools

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dsadojo/internal/term"
)

// Scenario is a resolved demo target. ResultPass is nil when the scenario
// does not show the submission result modal.
type Scenario struct {
	Name          string
	StatementOpen bool
	HistoryOpen   bool
	MenuOpen      bool
	ResultPass    *bool
}

type Manager struct{}

func NewManager() *Manager { return &Manager{} }

var _ Demo = (*Manager)(nil)

func (m *Manager) Resolve(name string) Scenario {
	pass := true
	fail := false
	switch name {
	case "main_menu":
		return Scenario{Name: name}
	case "question_select":
		return Scenario{Name: name}
	case "practical", "editing":
		return Scenario{Name: "practical"}
	case "statement_open":
		return Scenario{Name: name, StatementOpen: true}
	case "history_open":
		return Scenario{Name: name, HistoryOpen: true}
	case "menu", "menu_open":
		return Scenario{Name: "menu_open", MenuOpen: true}
	case "results_pass":
		return Scenario{Name: name, ResultPass: &pass}
	case "results_fail":
		return Scenario{Name: name, ResultPass: &fail}
	default:
		return Scenario{Name: "practical"}
	}
}

func (m *Manager) PlaybackFrames(questionID, scenario string) []term.PlaybackFrame {
	if scenario == "menu_open" {
		scenario = "practical"
	}
	keys := []string{
		fmt.Sprintf("%s_%s", scenario, questionID),
		scenario,
	}
	for _, key := range keys {
		b64, ok := prerecordedTTYRecBase64[key]
		if !ok {
			continue
		}
		frames, err := decodeTTYRecBase64(b64)
		if err == nil && len(frames) > 0 {
			return frames
		}
	}

	// Conservative fallback if fixture decoding fails.
	return []term.PlaybackFrame{
		{After: 0, Data: []byte("\x1b[2J\x1b[H[mock] judge engine not installed, running builtin echo program (1 files staged)\r\n")},
		{After: 40 * time.Millisecond, Data: []byte(fmt.Sprintf("[mock] question: %s\r\n", questionID))},
		{After: 40 * time.Millisecond, Data: []byte("[mock] type 'exit' to finish\r\n")},
	}
}

func (m *Manager) SetState(ctx context.Context, cacheDir string, state string, rendered bool) error {
	_ = ctx
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		cacheDir = filepath.Join(home, ".cache", "dsadojo")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	payload := map[string]any{
		"state":    strings.TrimSpace(state),
		"rendered": rendered,
	}
	b, _ := json.Marshal(payload)
	return os.WriteFile(filepath.Join(cacheDir, "dev_state.json"), b, 0o644)
}

func decodeTTYRecBase64(s string) ([]term.PlaybackFrame, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return decodeTTYRec(data)
}

// decodeTTYRec parses the classic ttyrec framing: little-endian sec, usec,
// size headers followed by raw terminal bytes. Frame delays come from the
// timestamp deltas.
func decodeTTYRec(data []byte) ([]term.PlaybackFrame, error) {
	if len(data) < 12 {
		return nil, errors.New("ttyrec data too short")
	}

	frames := make([]term.PlaybackFrame, 0, 16)
	offset := 0
	var lastTS int64
	first := true

	for {
		if offset == len(data) {
			break
		}
		if offset+12 > len(data) {
			return nil, errors.New("truncated ttyrec header")
		}

		sec := binary.LittleEndian.Uint32(data[offset : offset+4])
		usec := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		size := binary.LittleEndian.Uint32(data[offset+8 : offset+12])
		offset += 12

		if size > uint32(len(data)-offset) {
			return nil, errors.New("truncated ttyrec payload")
		}
		chunk := append([]byte(nil), data[offset:offset+int(size)]...)
		offset += int(size)

		tsUS := int64(sec)*1_000_000 + int64(usec)
		delay := time.Duration(0)
		if !first {
			delta := tsUS - lastTS
			if delta > 0 {
				delay = time.Duration(delta) * time.Microsecond
			}
		}
		first = false
		lastTS = tsUS

		frames = append(frames, term.PlaybackFrame{
			After: delay,
			Data:  chunk,
		})
	}

	if len(frames) == 0 {
		return nil, errors.New("no frames in ttyrec")
	}
	return frames, nil
}

// Recorded against the mock engine so demo playback matches what a real
// session in mock mode prints, exit footer included.
var prerecordedTTYRecBase64 = map[string]string{
	"practical_q-001-array-reverse": "wJazaAAAAAB3AAAAG1syShtbSFttb2NrXSBqdWRnZSBlbmdpbmUgbm90IGluc3RhbGxlZCwgcnVubmluZyBidWlsdGluIGVjaG8gcHJvZ3JhbSAoMiBmaWxlcyBzdGFnZWQpDQpbbW9ja10gdHlwZSAnZXhpdCcgdG8gZmluaXNoDQrAlrNoYOoAAAsAAAAxIDIgMyA0IDUNCsCWs2jwSQIACwAAADUgNCAzIDIgMQ0KwJazaNBsBABQAAAAZXhpdA0KYnllDQobWzkwbVtwcm9jZXNzIGV4aXRlZCB3aXRoIGNvZGUgMCB8IHRpbWU6IDM4bXMgfCBtZW1vcnk6IDEwODRLQl0bWzBtDQo=",
	"practical":                     "wJazaAAAAAB3AAAAG1syShtbSFttb2NrXSBqdWRnZSBlbmdpbmUgbm90IGluc3RhbGxlZCwgcnVubmluZyBidWlsdGluIGVjaG8gcHJvZ3JhbSAoMSBmaWxlcyBzdGFnZWQpDQpbbW9ja10gdHlwZSAnZXhpdCcgdG8gZmluaXNoDQrAlrNogDgBAA4AAABoZWxsbw0KaGVsbG8NCsCWs2hADQMATwAAAGV4aXQNCmJ5ZQ0KG1s5MG1bcHJvY2VzcyBleGl0ZWQgd2l0aCBjb2RlIDAgfCB0aW1lOiAyMm1zIHwgbWVtb3J5OiA5NjhLQl0bWzBtDQo=",
	"results_pass":                  "wJazaAAAAAB3AAAAG1syShtbSFttb2NrXSBqdWRnZSBlbmdpbmUgbm90IGluc3RhbGxlZCwgcnVubmluZyBidWlsdGluIGVjaG8gcHJvZ3JhbSAoMiBmaWxlcyBzdGFnZWQpDQpbbW9ja10gdHlwZSAnZXhpdCcgdG8gZmluaXNoDQrAlrNocBEBAAsAAAAtMyA3IDAgMTINCsCWs2gAcQIACwAAADEyIDAgNyAtMw0KwJazaNBsBABQAAAAZXhpdA0KYnllDQobWzkwbVtwcm9jZXNzIGV4aXRlZCB3aXRoIGNvZGUgMCB8IHRpbWU6IDQxbXMgfCBtZW1vcnk6IDExMzJLQl0bWzBtDQo=",
	"results_fail":                  "wJazaAAAAAB3AAAAG1syShtbSFttb2NrXSBqdWRnZSBlbmdpbmUgbm90IGluc3RhbGxlZCwgcnVubmluZyBidWlsdGluIGVjaG8gcHJvZ3JhbSAoMiBmaWxlcyBzdGFnZWQpDQpbbW9ja10gdHlwZSAnZXhpdCcgdG8gZmluaXNoDQrAlrNocBEBAAsAAAAtMyA3IDAgMTINCsCWs2gAcQIACwAAAC0zIDcgMCAxMg0KwJazaNBsBABQAAAAZXhpdA0KYnllDQobWzkwbVtwcm9jZXNzIGV4aXRlZCB3aXRoIGNvZGUgMSB8IHRpbWU6IDM3bXMgfCBtZW1vcnk6IDExMDBLQl0bWzBtDQo=",
	"statement_open":                "wJazaAAAAAB3AAAAG1syShtbSFttb2NrXSBqdWRnZSBlbmdpbmUgbm90IGluc3RhbGxlZCwgcnVubmluZyBidWlsdGluIGVjaG8gcHJvZ3JhbSAoMiBmaWxlcyBzdGFnZWQpDQpbbW9ja10gdHlwZSAnZXhpdCcgdG8gZmluaXNoDQrAlrNokF8BAA4AAAAyIDQgNg0KNiA0IDINCg==",
	"history_open":                  "wJazaAAAAAB3AAAAG1syShtbSFttb2NrXSBqdWRnZSBlbmdpbmUgbm90IGluc3RhbGxlZCwgcnVubmluZyBidWlsdGluIGVjaG8gcHJvZ3JhbSAoMiBmaWxlcyBzdGFnZWQpDQpbbW9ja10gdHlwZSAnZXhpdCcgdG8gZmluaXNoDQrAlrNokF8BAA4AAAAxMCAyMA0KMjAgMTANCsCWs2hgWwMAUAAAAGV4aXQNCmJ5ZQ0KG1s5MG1bcHJvY2VzcyBleGl0ZWQgd2l0aCBjb2RlIDAgfCB0aW1lOiAyOW1zIHwgbWVtb3J5OiAxMDQwS0JdG1swbQ0K",
}
