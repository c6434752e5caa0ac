package digest

import (
	"fmt"

	"github.com/jimdaga/newsdigest/internal/models"
)

// Status classifies the result of one digest run.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Step names the pipeline stage an outcome refers to.
type Step string

const (
	StepLoad        Step = "load"
	StepAggregate   Step = "aggregate"
	StepSummarize   Step = "summarize"
	StepRenderPDF   Step = "render_pdf"
	StepRenderAudio Step = "render_audio"
	StepToken       Step = "token"
	StepCompose     Step = "compose"
	StepSend        Step = "send"
	StepRecord      Step = "record"
)

// Skip reasons
const (
	ReasonUserNotFound       = "user not found"
	ReasonSettingsNotFound   = "settings not found"
	ReasonSchedulerDisabled  = "scheduler disabled"
	ReasonNoNotificationMail = "no notification email"
	ReasonNoArticles         = "no articles found"
)

// Outcome reports what happened to one user's digest.
type Outcome struct {
	UserID uint
	Status Status
	Step   Step
	Reason string
	Err    error
	Entry  *models.DeliveryLogEntry
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusDelivered:
		return fmt.Sprintf("user %d: delivered", o.UserID)
	case StatusSkipped:
		return fmt.Sprintf("user %d: skipped (%s)", o.UserID, o.Reason)
	}
	return fmt.Sprintf("user %d: failed at %s: %v", o.UserID, o.Step, o.Err)
}

func delivered(userID uint, entry *models.DeliveryLogEntry) Outcome {
	return Outcome{UserID: userID, Status: StatusDelivered, Step: StepRecord, Entry: entry}
}

func skipped(userID uint, step Step, reason string) Outcome {
	return Outcome{UserID: userID, Status: StatusSkipped, Step: step, Reason: reason}
}

func failed(userID uint, step Step, err error) Outcome {
	return Outcome{UserID: userID, Status: StatusFailed, Step: step, Reason: err.Error(), Err: err}
}
