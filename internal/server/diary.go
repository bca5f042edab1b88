package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/ReliefMap/internal/assessment"
	"github.com/Skufu/ReliefMap/internal/diary"
	"github.com/Skufu/ReliefMap/internal/store"
)

type feedbackPayload struct {
	EntryType     assessment.EntryType    `json:"entryType"`
	EntryText     string                  `json:"entryText"`
	PainLevel     *int                    `json:"painLevel,omitempty"`
	Sentiment     *int                    `json:"sentiment,omitempty"`
	RecentEntries []assessment.DiaryEntry `json:"recentEntries"`
	Assessment    *assessment.Assessment  `json:"assessment"`
}

func (h *handler) diaryFeedback(c *gin.Context) {
	var p feedbackPayload
	if !bindJSON(c, &p) {
		return
	}
	entry := assessment.DiaryEntry{
		EntryType: p.EntryType,
		EntryText: p.EntryText,
		PainLevel: p.PainLevel,
		Sentiment: p.Sentiment,
		CreatedAt: h.now().UTC(),
	}
	if details := assessment.Validate(entry); len(details) > 0 {
		validationFailed(c, details)
		return
	}

	text, err := h.feedback.Feedback(c.Request.Context(), diary.FeedbackRequest{
		Entry:         entry,
		Assessment:    p.Assessment,
		RecentEntries: p.RecentEntries,
	})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Feedback is unavailable right now."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": text})
}

type recordPayload struct {
	assessment.DiaryEntry
	RequestFeedback bool `json:"requestFeedback"`
}

func (h *handler) recordDiaryEntry(c *gin.Context) {
	var p recordPayload
	if !bindJSON(c, &p) {
		return
	}

	saved, err := h.journal.Record(c.Request.Context(), p.DiaryEntry, p.RequestFeedback)
	if err != nil {
		writeDiaryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

type followUpPayload struct {
	Question string `json:"question"`
}

func (h *handler) followUp(c *gin.Context) {
	var p followUpPayload
	if !bindJSON(c, &p) {
		return
	}

	entry, err := h.journal.FollowUp(c.Request.Context(), c.Param("id"), p.Question)
	if err != nil {
		writeDiaryError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *handler) deleteDiaryEntry(c *gin.Context) {
	if err := h.archive.DeleteDiaryEntry(c.Request.Context(), c.Param("id")); err != nil {
		writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeDiaryError(c *gin.Context, err error) {
	var verr *diary.ValidationError
	switch {
	case errors.As(err, &verr):
		validationFailed(c, verr.Details)
	case errors.Is(err, diary.ErrFollowUpExists), errors.Is(err, diary.ErrNoFeedback):
		c.JSON(http.StatusConflict, gin.H{"message": conflictMessage(err)})
	default:
		writeStoreError(c, err)
	}
}

func conflictMessage(err error) string {
	if errors.Is(err, diary.ErrFollowUpExists) {
		return "This entry already has a follow-up."
	}
	return "Follow-up questions need an entry with feedback."
}

func writeStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found."})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong."})
}
