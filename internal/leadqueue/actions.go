package leadqueue

import (
	"context"
	"fmt"
	"time"

	"leadflow/internal/api"
	"leadflow/internal/common/errors"
	"leadflow/internal/common/metrics"
	"leadflow/internal/models"
	"leadflow/internal/scoring"
)

// commit runs the optimistic write protocol shared by every action: capture
// the pre-patch snapshot, apply the in-memory patch, issue the call, and on
// failure restore exactly that snapshot. The patch always lands before the
// network call; rollback only ever restores the state captured immediately
// before it.
func (q *Queue) commit(ctx context.Context, action string, patchLocked func(), call func(context.Context) error) error {
	start := time.Now()

	q.mu.Lock()
	snap := q.snapshotLocked()
	patchLocked()
	q.mu.Unlock()

	err := call(ctx)

	if q.obs != nil {
		q.obs.RecordMutationDuration(ctx, action, time.Since(start))
	}

	if err != nil {
		q.mu.Lock()
		q.restoreLocked(snap)
		q.mu.Unlock()
		metrics.QueueRollbacksTotal.WithLabelValues(action).Inc()
		metrics.QueueMutationsTotal.WithLabelValues(action, "error").Inc()
		if q.obs != nil {
			q.obs.RecordMutation(ctx, action, "error")
		}
		q.logger.WithError(err).Warn("action rolled back", map[string]interface{}{
			"action": action,
		})
		return err
	}

	metrics.QueueMutationsTotal.WithLabelValues(action, "success").Inc()
	if q.obs != nil {
		q.obs.RecordMutation(ctx, action, "success")
	}
	return nil
}

// UpdateStatus moves a lead to a new lifecycle state. The status is patched
// in place; queue membership may have changed, so a background refetch
// follows success.
func (q *Queue) UpdateStatus(ctx context.Context, id string, status models.LeadStatus) error {
	if !status.Valid() {
		return errors.NewValidationError("status", string(status))
	}

	err := q.commit(ctx, "update_status",
		func() {
			if i := q.indexLocked(id); i >= 0 {
				q.leads[i].Status = status
			}
		},
		func(ctx context.Context) error { return q.api.UpdateStatus(ctx, id, status) },
	)
	if err != nil {
		q.notifier.Error("Could not update lead status")
		return err
	}

	q.notifier.Success(fmt.Sprintf("Lead moved to %s", status))
	q.refetchAsync("update_status")
	return nil
}

// Archive hides a lead from the active queues.
func (q *Queue) Archive(ctx context.Context, id string) error {
	err := q.commit(ctx, "archive",
		func() {
			q.removeLocked(id)
			if q.counts.All > 0 {
				q.counts.All--
			}
			q.counts.Archived++
		},
		func(ctx context.Context) error { return q.api.UpdateStatus(ctx, id, models.StatusArchived) },
	)
	if err != nil {
		q.notifier.Error("Could not archive lead")
		return err
	}

	q.notifier.Success("Lead archived")
	q.refetchAsync("archive")
	return nil
}

// Unarchive returns an archived lead to the active pipeline.
func (q *Queue) Unarchive(ctx context.Context, id string) error {
	err := q.commit(ctx, "unarchive",
		func() {
			if q.selected == models.QueueArchived {
				q.removeLocked(id)
			}
			if q.counts.Archived > 0 {
				q.counts.Archived--
			}
			q.counts.All++
		},
		func(ctx context.Context) error { return q.api.UpdateStatus(ctx, id, models.StatusNew) },
	)
	if err != nil {
		q.notifier.Error("Could not unarchive lead")
		return err
	}

	q.notifier.Success("Lead restored")
	q.refetchAsync("unarchive")
	return nil
}

// DeletePermanently removes a lead for good. The error is returned to the
// caller after rollback so a confirmation dialog can keep its own loading
// state.
func (q *Queue) DeletePermanently(ctx context.Context, id string) error {
	err := q.commit(ctx, "delete",
		func() {
			q.removeLocked(id)
			if q.counts.All > 0 {
				q.counts.All--
			}
		},
		func(ctx context.Context) error { return q.api.DeleteLead(ctx, id) },
	)
	if err != nil {
		q.notifier.Error("Could not delete lead")
		return err
	}

	q.notifier.Success("Lead deleted")
	q.refetchAsync("delete")
	return nil
}

// UpdateEvaluation merges manual estimate edits into the lead, marking each
// touched estimate as manual with no confidence, and recomputes the derived
// numbers locally for immediate display. The server's response is
// authoritative for MAO/spread and replaces the optimistic figures.
func (q *Queue) UpdateEvaluation(ctx context.Context, id string, input api.EvaluationInput) error {
	if input.Empty() {
		return errors.NewValidationError("evaluation", "no fields to update")
	}

	var serverLead *models.Lead
	err := q.commit(ctx, "update_evaluation",
		func() {
			i := q.indexLocked(id)
			if i < 0 {
				return
			}
			l := &q.leads[i]
			if input.ARV != nil {
				l.ARV = models.Estimate{Value: *input.ARV, Source: models.SourceManual}
			}
			if input.Rehab != nil {
				l.Rehab = models.Estimate{Value: *input.Rehab, Source: models.SourceManual}
			}
			if input.Rent != nil {
				l.Rent = models.Estimate{Value: *input.Rent, Source: models.SourceManual}
			}
			if input.Notes != nil {
				l.Notes = *input.Notes
			}
			l.MAO = scoring.MAO(l.ARV.Value, l.Rehab.Value)
			l.SpreadPercent = scoring.SpreadPercent(l.ListingPrice, l.MAO)
			l.LeadScore = scoring.ScoreFromSpread(l.SpreadPercent)
		},
		func(ctx context.Context) error {
			lead, err := q.api.SubmitEvaluation(ctx, id, input)
			if err != nil {
				return err
			}
			serverLead = lead
			return nil
		},
	)
	if err != nil {
		q.notifier.Error("Could not save evaluation")
		return err
	}

	if serverLead != nil {
		q.mu.Lock()
		if i := q.indexLocked(id); i >= 0 {
			isNew := q.leads[i].IsNew
			q.leads[i] = serverLead.Clone()
			q.leads[i].IsNew = isNew
		}
		q.mu.Unlock()
	}

	q.notifier.Success("Evaluation saved")
	q.refetchAsync("update_evaluation")
	return nil
}

// ScheduleFollowUp sets a follow-up date, YYYY-MM-DD. Same-day versus
// future is decided by plain string comparison; the format orders
// lexicographically and never touches timezones.
func (q *Queue) ScheduleFollowUp(ctx context.Context, id, dateISO string) error {
	if !validFollowUpDate(dateISO) {
		return errors.NewValidationError("date", "expected YYYY-MM-DD")
	}
	due := dateISO <= q.opts.Today()

	err := q.commit(ctx, "schedule_follow_up",
		func() {
			// Membership in these views may no longer hold once a
			// follow-up exists; drop the row and let the resync decide.
			if q.selected == models.QueueActionNow || q.selected == models.QueueFollowUp {
				q.removeLocked(id)
				return
			}
			if i := q.indexLocked(id); i >= 0 {
				q.leads[i].FollowUpDate = dateISO
				q.leads[i].FollowUpDue = due
			}
		},
		func(ctx context.Context) error { return q.api.ScheduleFollowUp(ctx, id, dateISO) },
	)
	if err != nil {
		q.notifier.Error("Could not schedule follow-up")
		return err
	}

	q.notifier.Success("Follow-up scheduled for " + dateISO)
	q.refetchAsync("schedule_follow_up")
	return nil
}

// CancelFollowUp clears the follow-up date and due flag.
func (q *Queue) CancelFollowUp(ctx context.Context, id string) error {
	err := q.commit(ctx, "cancel_follow_up",
		func() {
			// Same membership rule as scheduling: a lead may sit in these
			// views only because of its follow-up, so drop the row and let
			// the resync decide.
			if q.selected == models.QueueActionNow || q.selected == models.QueueFollowUp {
				q.removeLocked(id)
				return
			}
			if i := q.indexLocked(id); i >= 0 {
				q.leads[i].FollowUpDate = ""
				q.leads[i].FollowUpDue = false
			}
		},
		func(ctx context.Context) error { return q.api.CancelFollowUp(ctx, id) },
	)
	if err != nil {
		q.notifier.Error("Could not cancel follow-up")
		return err
	}

	q.notifier.Success("Follow-up canceled")
	q.refetchAsync("cancel_follow_up")
	return nil
}

// UpdateSellerPhone patches the seller contact number.
func (q *Queue) UpdateSellerPhone(ctx context.Context, id, phone string) error {
	err := q.commit(ctx, "update_phone",
		func() {
			if i := q.indexLocked(id); i >= 0 {
				q.leads[i].SellerPhone = phone
			}
		},
		func(ctx context.Context) error { return q.api.UpdateSellerPhone(ctx, id, phone) },
	)
	if err != nil {
		q.notifier.Error("Could not update phone number")
		return err
	}
	q.notifier.Success("Phone number updated")
	return nil
}

// UpdateNotes patches the free-form notes.
func (q *Queue) UpdateNotes(ctx context.Context, id, notes string) error {
	err := q.commit(ctx, "update_notes",
		func() {
			if i := q.indexLocked(id); i >= 0 {
				q.leads[i].Notes = notes
			}
		},
		func(ctx context.Context) error { return q.api.UpdateNotes(ctx, id, notes) },
	)
	if err != nil {
		q.notifier.Error("Could not save notes")
		return err
	}
	q.notifier.Success("Notes saved")
	return nil
}

// removeLocked drops a lead from the visible list if present.
func (q *Queue) removeLocked(id string) {
	if i := q.indexLocked(id); i >= 0 {
		q.leads = append(q.leads[:i], q.leads[i+1:]...)
	}
}

// validFollowUpDate accepts strictly YYYY-MM-DD.
func validFollowUpDate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, r := range s {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
