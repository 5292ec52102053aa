package pipeline

import "fmt"

// Stage names a step of a run for error reporting.
type Stage string

const (
	StageEventFetch          Stage = "event fetch"
	StageCandlestickFetch    Stage = "candlestick fetch"
	StageTeamLookup          Stage = "team lookup"
	StagePersistCandlesticks Stage = "persist candlesticks"
	StageReplaceRankings     Stage = "replace rankings"
)

// StageError is a fatal run error tagged with the stage that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
