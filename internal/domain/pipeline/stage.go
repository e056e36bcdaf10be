// internal/domain/pipeline/stage.go

package pipeline

// Stage identifies one step of an analysis run
type Stage string

const (
	StageRetrieve   Stage = "A"
	StageNormalize  Stage = "B"
	StageMine       Stage = "C"
	StageScore      Stage = "D"
	StageSynthesize Stage = "E"
)

// Stages lists every stage in execution order
var Stages = []Stage{StageRetrieve, StageNormalize, StageMine, StageScore, StageSynthesize}

// Status is the lifecycle status carried by a stage event
type Status string

const (
	StatusStart    Status = "start"
	StatusProgress Status = "progress"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// IsTerminal reports whether the status ends a stage
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// StageEvent is one record of the streaming protocol
type StageEvent struct {
	Stage      Stage       `json:"stage"`
	Status     Status      `json:"status"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Kind       Kind        `json:"kind,omitempty"`
	Resume     ResumePoint `json:"resume,omitempty"`
	Violations []string    `json:"violations,omitempty"`
}

// ErrorEvent builds the terminal error event for err at stage
func ErrorEvent(stage Stage, err error) StageEvent {
	ev := StageEvent{
		Stage:   stage,
		Status:  StatusError,
		Message: err.Error(),
		Kind:    KindOf(err),
	}

	var perr *Error
	if AsError(err, &perr) {
		ev.Message = perr.Message
		ev.Resume = perr.Resume
		ev.Violations = perr.Violations
	}

	return ev
}
