package devtools

import (
	"context"

	"dsadojo/internal/term"
)

// Demo drives deterministic screenshot and smoke-test states: resolving a
// requested scenario name, replaying a canned console session, and writing
// the dev state file external tooling polls.
type Demo interface {
	Resolve(name string) Scenario
	SetState(ctx context.Context, cacheDir string, state string, rendered bool) error
	PlaybackFrames(questionID, scenario string) []term.PlaybackFrame
}
