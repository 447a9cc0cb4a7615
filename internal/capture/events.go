package capture

import (
	"image"
	"time"

	"github.com/bryanchriswhite/shadowcap/internal/window"
)

// Stage names a step of the capture flow
type Stage string

const (
	StageResolved  Stage = "resolved"
	StageActivated Stage = "activated"
	StageResized   Stage = "resized"
	StageBackdrop  Stage = "backdrop"
	StageSampled   Stage = "sampled"
	StageUnmixed   Stage = "unmixed"
	StageRestored  Stage = "restored"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Event reports progress of a capture
type Event struct {
	Stage   Stage           `json:"stage"`
	Handle  window.Handle   `json:"handle,omitempty"`
	Title   string          `json:"title,omitempty"`
	Rect    image.Rectangle `json:"rect,omitempty"`
	Pass    string          `json:"pass,omitempty"`
	Message string          `json:"message,omitempty"`
	Elapsed time.Duration   `json:"elapsed_ns"`
	Time    time.Time       `json:"time"`
}

// Observer receives stage events. It is called synchronously from the
// capture goroutine and must not block.
type Observer func(Event)
