// Package moderation implements the decision engine for community-submitted
// content: reviews, player edits, and equipment submissions. It owns every
// status transition and the side effects tied to approval; the HTTP and
// Discord gateways only authenticate callers and format its results.
package moderation

import (
	"context"
	"log"

	"spindb/api/internal/store"
	"spindb/api/internal/util"
)

// Outcome discriminates the business result of a moderation operation.
// Expected conditions (wrong state, duplicate moderator, missing item) are
// outcomes, not errors; Go errors are reserved for wiring defects.
type Outcome string

const (
	OutcomeFirstApproval   Outcome = "first_approval"
	OutcomeFullyApproved   Outcome = "fully_approved"
	OutcomeAlreadyApproved Outcome = "already_approved"
	OutcomeApproved        Outcome = "approved"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeError           Outcome = "error"
)

type Result struct {
	Success bool
	Outcome Outcome
	Message string
}

func failure(outcome Outcome, message string) Result {
	return Result{Success: false, Outcome: outcome, Message: message}
}

func success(outcome Outcome, message string) Result {
	return Result{Success: true, Outcome: outcome, Message: message}
}

type dataStore interface {
	GetReview(ctx context.Context, reviewID string) (store.Review, error)
	MarkReviewAwaitingSecond(ctx context.Context, reviewID string) (bool, error)
	PublishReview(ctx context.Context, reviewID, moderatorID string, from ...string) (bool, error)
	RejectReview(ctx context.Context, reviewID, moderatorID, notes string) (bool, error)

	GetPlayerEdit(ctx context.Context, editID string) (store.PlayerEdit, error)
	MergePlayerFields(ctx context.Context, playerID string, fields map[string]string) error
	ApprovePlayerEdit(ctx context.Context, editID, moderatorID string) (bool, error)
	RejectPlayerEdit(ctx context.Context, editID, moderatorID, notes string) (bool, error)

	GetEquipmentSubmission(ctx context.Context, submissionID string) (store.EquipmentSubmission, error)
	InsertEquipment(ctx context.Context, item store.Equipment) error
	ApproveEquipmentSubmission(ctx context.Context, submissionID, moderatorID string) (bool, error)
	RejectEquipmentSubmission(ctx context.Context, submissionID, moderatorID, notes string) (bool, error)

	InsertModerationAction(ctx context.Context, action store.ModerationAction) error
	ApprovedModerators(ctx context.Context, itemID string) ([]string, error)

	ReviewStatusCounts(ctx context.Context) (store.StatusCounts, error)
	PlayerEditStatusCounts(ctx context.Context) (store.StatusCounts, error)
	EquipmentSubmissionStatusCounts(ctx context.Context) (store.StatusCounts, error)
}

// equipmentIndexer receives newly materialized equipment, fire-and-forget.
type equipmentIndexer interface {
	IndexEquipment(item store.Equipment)
}

type Engine struct {
	store   dataStore
	indexer equipmentIndexer
}

func New(dataStore dataStore) *Engine {
	return &Engine{store: dataStore}
}

// WithIndexer attaches a search indexer that is notified when approved
// submissions materialize into equipment rows.
func (e *Engine) WithIndexer(indexer equipmentIndexer) *Engine {
	e.indexer = indexer
	return e
}

// ApproveReview runs the two-stage consensus path, or the single-step
// privileged path when the caller is an admin. The "has this moderator
// already approved" check reads the action log, so a replayed command is an
// idempotent no-op rather than a second vote.
func (e *Engine) ApproveReview(ctx context.Context, reviewID, moderatorID string, privileged bool) Result {
	review, err := e.store.GetReview(ctx, reviewID)
	if err != nil {
		return failure(OutcomeNotFound, "Review not found")
	}
	if review.Status != store.StatusPending && review.Status != store.StatusAwaitingSecond {
		return failure(OutcomeAlreadyApproved, "Review already processed")
	}

	if privileged {
		changed, err := e.store.PublishReview(ctx, reviewID, moderatorID, store.StatusPending, store.StatusAwaitingSecond)
		if err != nil {
			return failure(OutcomeError, "Failed to update review status")
		}
		if !changed {
			// Lost the race: another caller finished the transition first.
			return failure(OutcomeAlreadyApproved, "Review already processed")
		}
		e.logAction(ctx, reviewID, store.ItemTypeReview, moderatorID, store.ActionApproved, "")
		return success(OutcomeFullyApproved, "Review approved and published")
	}

	approvers, err := e.store.ApprovedModerators(ctx, reviewID)
	if err != nil {
		return failure(OutcomeError, "Failed to update review status")
	}
	for _, id := range approvers {
		if id == moderatorID {
			return failure(OutcomeAlreadyApproved, "You have already approved this review")
		}
	}

	switch review.Status {
	case store.StatusPending:
		changed, err := e.store.MarkReviewAwaitingSecond(ctx, reviewID)
		if err != nil {
			return failure(OutcomeError, "Failed to update review status")
		}
		if !changed {
			// Lost the race: another moderator advanced the review first.
			return failure(OutcomeAlreadyApproved, "Review already processed")
		}
		e.logAction(ctx, reviewID, store.ItemTypeReview, moderatorID, store.ActionApproved, "")
		return success(OutcomeFirstApproval, "First approval recorded, awaiting a second moderator")
	default:
		changed, err := e.store.PublishReview(ctx, reviewID, moderatorID, store.StatusAwaitingSecond)
		if err != nil {
			return failure(OutcomeError, "Failed to update review status")
		}
		if !changed {
			return failure(OutcomeAlreadyApproved, "Review already processed")
		}
		e.logAction(ctx, reviewID, store.ItemTypeReview, moderatorID, store.ActionApproved, "")
		return success(OutcomeFullyApproved, "Review approved and published")
	}
}

// RejectReview rejects a pending review. Returns false when the review is not
// in pending or the storage write fails.
func (e *Engine) RejectReview(ctx context.Context, reviewID, moderatorID, reason string) bool {
	changed, err := e.store.RejectReview(ctx, reviewID, moderatorID, reason)
	if err != nil {
		log.Printf("moderation: reject review %s: %v", reviewID, err)
		return false
	}
	if changed {
		e.logAction(ctx, reviewID, store.ItemTypeReview, moderatorID, store.ActionRejected, reason)
	}
	return changed
}

// ApprovePlayerEdit merges the edit's field diff onto the player record, then
// marks the edit approved. The merge runs first: a failed merge leaves the
// edit pending so the terminal state is never reached without its side effect.
func (e *Engine) ApprovePlayerEdit(ctx context.Context, editID, moderatorID string) Result {
	edit, err := e.store.GetPlayerEdit(ctx, editID)
	if err != nil {
		return failure(OutcomeNotFound, "Player edit not found")
	}
	if edit.Status != store.StatusPending {
		return failure(OutcomeAlreadyApproved, "Player edit already processed")
	}

	if err := e.store.MergePlayerFields(ctx, edit.PlayerID, edit.Fields); err != nil {
		log.Printf("moderation: merge player fields for edit %s: %v", editID, err)
		return failure(OutcomeError, "Failed to apply player edit")
	}
	changed, err := e.store.ApprovePlayerEdit(ctx, editID, moderatorID)
	if err != nil || !changed {
		return failure(OutcomeError, "Failed to update edit status")
	}
	e.logAction(ctx, editID, store.ItemTypePlayerEdit, moderatorID, store.ActionApproved, "")
	return success(OutcomeApproved, "Player edit applied")
}

func (e *Engine) RejectPlayerEdit(ctx context.Context, editID, moderatorID, notes string) bool {
	changed, err := e.store.RejectPlayerEdit(ctx, editID, moderatorID, notes)
	if err != nil {
		log.Printf("moderation: reject player edit %s: %v", editID, err)
		return false
	}
	if changed {
		e.logAction(ctx, editID, store.ItemTypePlayerEdit, moderatorID, store.ActionRejected, notes)
	}
	return changed
}

// ApproveEquipmentSubmission materializes the submission into a catalog
// entity under a slug derived from its name, then marks the submission
// approved. A slug collision aborts before any status change.
func (e *Engine) ApproveEquipmentSubmission(ctx context.Context, submissionID, moderatorID string) Result {
	submission, err := e.store.GetEquipmentSubmission(ctx, submissionID)
	if err != nil {
		return failure(OutcomeNotFound, "Equipment submission not found")
	}
	if submission.Status != store.StatusPending {
		return failure(OutcomeAlreadyApproved, "Equipment submission already processed")
	}

	equipment := store.Equipment{
		ID:          util.NewID("eq"),
		Slug:        Slugify(submission.Name),
		Name:        submission.Name,
		Brand:       submission.Brand,
		Category:    submission.Category,
		Description: submission.Description,
		CreatedBy:   submission.SubmitterID,
	}
	if err := e.store.InsertEquipment(ctx, equipment); err != nil {
		log.Printf("moderation: materialize equipment for submission %s: %v", submissionID, err)
		return failure(OutcomeError, "Failed to create equipment entry")
	}
	changed, err := e.store.ApproveEquipmentSubmission(ctx, submissionID, moderatorID)
	if err != nil || !changed {
		return failure(OutcomeError, "Failed to update submission status")
	}
	e.logAction(ctx, submissionID, store.ItemTypeEquipmentSubmission, moderatorID, store.ActionApproved, "")
	if e.indexer != nil {
		e.indexer.IndexEquipment(equipment)
	}
	return success(OutcomeApproved, "Equipment created: "+equipment.Slug)
}

func (e *Engine) RejectEquipmentSubmission(ctx context.Context, submissionID, moderatorID, notes string) bool {
	changed, err := e.store.RejectEquipmentSubmission(ctx, submissionID, moderatorID, notes)
	if err != nil {
		log.Printf("moderation: reject equipment submission %s: %v", submissionID, err)
		return false
	}
	if changed {
		e.logAction(ctx, submissionID, store.ItemTypeEquipmentSubmission, moderatorID, store.ActionRejected, notes)
	}
	return changed
}

// Stats aggregates queue counts across all three item kinds. A kind whose
// count query fails reports zeros rather than failing the whole summary.
func (e *Engine) Stats(ctx context.Context) map[string]any {
	reviews, err := e.store.ReviewStatusCounts(ctx)
	if err != nil {
		log.Printf("moderation: review counts: %v", err)
		reviews = store.StatusCounts{}
	}
	edits, err := e.store.PlayerEditStatusCounts(ctx)
	if err != nil {
		log.Printf("moderation: player edit counts: %v", err)
		edits = store.StatusCounts{}
	}
	submissions, err := e.store.EquipmentSubmissionStatusCounts(ctx)
	if err != nil {
		log.Printf("moderation: equipment submission counts: %v", err)
		submissions = store.StatusCounts{}
	}
	return map[string]any{
		"reviews":              statsEntry(reviews),
		"playerEdits":          statsEntry(edits),
		"equipmentSubmissions": statsEntry(submissions),
		"pendingTotal":         reviews.Pending + edits.Pending + submissions.Pending,
	}
}

func statsEntry(counts store.StatusCounts) map[string]any {
	return map[string]any{
		"pending":  counts.Pending,
		"approved": counts.Approved,
		"rejected": counts.Rejected,
		"total":    counts.Total(),
	}
}

// logAction appends to the moderation audit log. Best-effort: a log-write
// failure never reverses a transition that already committed.
func (e *Engine) logAction(ctx context.Context, itemID, itemType, moderatorID, action, reason string) {
	err := e.store.InsertModerationAction(ctx, store.ModerationAction{
		ItemID:      itemID,
		ItemType:    itemType,
		ModeratorID: moderatorID,
		Action:      action,
		Reason:      reason,
	})
	if err != nil {
		log.Printf("moderation: record action %s on %s: %v", action, itemID, err)
	}
}
