package threads

import (
	"time"

	"threadcast/pkg/logger"
	"threadcast/pkg/models"
)

// Activity types accepted in an imported history. Entries with other
// types are dropped, not rejected.
const (
	activityResultStarted   = "result_started"
	activitySubmission      = "submission"
	activityResultValidated = "result_validated"
)

// IDRef is a reference to an external entity by id.
type IDRef struct {
	ID string `json:"id"`
}

// ActivityLogEntry is one out-of-band historical activity record imported
// when opening a thread. Each entry names its own participant and item, so
// an import may seed threads other than the one being opened.
type ActivityLogEntry struct {
	ActivityType string    `json:"activityType"`
	AttemptID    string    `json:"attemptId"`
	At           time.Time `json:"at"`
	AnswerID     string    `json:"answerId,omitempty"`
	Score        *float64  `json:"score,omitempty"`
	Item         IDRef     `json:"item"`
	Participant  IDRef     `json:"participant"`
}

// historyEvents maps imported activity entries to thread events carrying
// their original timestamps. Unmappable entries are dropped.
func historyEvents(history []ActivityLogEntry) []models.ThreadEvent {
	out := make([]models.ThreadEvent, 0, len(history))
	for _, h := range history {
		e, ok := historyEvent(h)
		if !ok {
			logger.Debug("history_entry_dropped", "activity", h.ActivityType, "attempt", h.AttemptID)
			continue
		}
		out = append(out, e)
	}
	return out
}

func historyEvent(h ActivityLogEntry) (models.ThreadEvent, bool) {
	key := models.NewThreadKey(h.Participant.ID, h.Item.ID)
	switch h.ActivityType {
	case activityResultStarted:
		return models.ThreadEvent{
			ThreadKey: key,
			Time:      h.At.UnixMilli(),
			Payload:   models.AttemptStarted{AttemptID: h.AttemptID},
		}, true
	case activitySubmission, activityResultValidated:
		if h.AnswerID == "" {
			return models.ThreadEvent{}, false
		}
		validated := h.ActivityType == activityResultValidated || (h.Score != nil && *h.Score == 100)
		return models.ThreadEvent{
			ThreadKey: key,
			Time:      h.At.UnixMilli(),
			Payload: models.Submission{
				AttemptID: h.AttemptID,
				AnswerID:  h.AnswerID,
				Score:     h.Score,
				Validated: &validated,
			},
		}, true
	default:
		return models.ThreadEvent{}, false
	}
}
