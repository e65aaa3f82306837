package questions

import "context"

type Loader interface {
	LoadSets(ctx context.Context, root string) ([]Set, error)
	FindQuestion(sets []Set, setID string, questionID string) (Set, Question, error)
}
