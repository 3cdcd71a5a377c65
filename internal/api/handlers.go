package api

import (
	"net/http"

	"autotag/internal/logging"
	"autotag/internal/queue"
	"autotag/internal/review"
	"autotag/internal/stage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.workflow.Health(r.Context())
	resp := HealthResponse{Ready: stage.AllReady(health), Stages: FromStageHealth(health)}
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeEnvelope(w, status, Envelope{Success: resp.Ready, Data: resp})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeData(w, FromStatusSummary(s.workflow.Status(r.Context())))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reviews.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, stats)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.workflow.Start(s.runCtx, 1); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("worker started via api")
	writeData(w, FromStatusSummary(s.workflow.Status(r.Context())))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.workflow.Pause()
	writeData(w, FromStatusSummary(s.workflow.Status(r.Context())))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.workflow.Resume()
	writeData(w, FromStatusSummary(s.workflow.Status(r.Context())))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.workflow.Stop()
	s.logger.Info("worker stop requested via api")
	writeData(w, FromStatusSummary(s.workflow.Status(r.Context())))
}

func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, raw := range r.URL.Query()["status"] {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			s.writeError(w, r, badRequest("unknown queue status "+raw))
			return
		}
		statuses = append(statuses, status)
	}
	items, err := s.queue.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, FromQueueItems(items))
}

func (s *Server) handleQueueSpecific(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.MediaIDs) == 0 {
		s.writeError(w, r, badRequest("mediaIds is required"))
		return
	}
	n, err := s.workflow.QueueSpecific(r.Context(), req.MediaIDs, req.Priority)
	s.writeCount(w, r, int64(n), err)
}

func (s *Server) handleQueueUntagged(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.workflow.QueueUntagged(r.Context(), req.Priority)
	s.writeCount(w, r, int64(n), err)
}

func (s *Server) handleQueueAll(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.workflow.QueueAll(r.Context(), req.Priority)
	s.writeCount(w, r, int64(n), err)
}

func (s *Server) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := s.workflow.RetryFailed(r.Context())
	s.writeCount(w, r, n, err)
}

func (s *Server) handleClearFailed(w http.ResponseWriter, r *http.Request) {
	n, err := s.workflow.ClearFailed(r.Context())
	s.writeCount(w, r, n, err)
}

func (s *Server) handleResetStuck(w http.ResponseWriter, r *http.Request) {
	n, err := s.workflow.ResetStuck(r.Context())
	s.writeCount(w, r, n, err)
}

func (s *Server) handleDequeue(w http.ResponseWriter, r *http.Request) {
	mediaID, err := mediaIDVar(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.workflow.Dequeue(r.Context(), []int64{mediaID})
	s.writeCount(w, r, n, err)
}

func (s *Server) writeCount(w http.ResponseWriter, r *http.Request, n int64, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, CountResponse{Count: n})
}

func (s *Server) handleReviewList(w http.ResponseWriter, r *http.Request) {
	var status queue.ReviewStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, ok := queue.ParseReviewStatus(raw)
		if !ok {
			s.writeError(w, r, badRequest("unknown review status "+raw))
			return
		}
		status = parsed
	}
	page, err := intQuery(r, "page", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pageSize, err := intQuery(r, "pageSize", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.reviews.ListByStatus(r.Context(), status, page, pageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, FromReviewPage(result))
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	mediaID, err := mediaIDVar(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req ApproveRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	outcome, err := s.reviews.ApproveWithEdits(r.Context(), mediaID, review.Edits{
		TagIDs:  req.TagIDs,
		NewTags: req.NewTags,
		Title:   req.Title,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, outcome)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	mediaID, err := mediaIDVar(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.reviews.Reject(r.Context(), mediaID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, CountResponse{Count: 1})
}

func (s *Server) handleApproveMany(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.bulkIDs(w, r)
	if !ok {
		return
	}
	result := s.reviews.ApproveMany(r.Context(), ids)
	s.logBulk("approve", result)
	writeData(w, result)
}

func (s *Server) handleRejectMany(w http.ResponseWriter, r *http.Request) {
	ids, ok := s.bulkIDs(w, r)
	if !ok {
		return
	}
	result := s.reviews.RejectMany(r.Context(), ids)
	s.logBulk("reject", result)
	writeData(w, result)
}

func (s *Server) bulkIDs(w http.ResponseWriter, r *http.Request) ([]int64, bool) {
	var req BulkRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	if len(req.MediaIDs) == 0 {
		s.writeError(w, r, badRequest("mediaIds is required"))
		return nil, false
	}
	return req.MediaIDs, true
}

func (s *Server) logBulk(action string, result review.BulkResult) {
	if len(result.Failed) == 0 {
		return
	}
	logging.WarnWithContext(s.logger, "bulk review partially failed", "review_bulk_partial",
		logging.String("action", action),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", len(result.Failed)),
		logging.String(logging.FieldErrorHint, "inspect the failed entries in the response"),
		logging.String(logging.FieldImpact, "failed entries keep their previous review status"),
	)
}
