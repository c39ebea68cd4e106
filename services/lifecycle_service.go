// services/lifecycle_service.go
package services

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/truesuntrading/warranty_backend/models"
)

// Per-call deadline for every collaborator round trip, so a hung downstream
// call cannot stall a bulk batch indefinitely.
const collaboratorTimeout = 15 * time.Second

// RequestStore is the persistence collaborator for verification requests.
type RequestStore interface {
	// LoadPage returns up to PageSize requests with the given status
	// ("all" disables the filter), ordered by creation time descending.
	// The returned cursor resumes after the last item; hasMore is true iff
	// a full page was returned.
	LoadPage(ctx context.Context, status, cursor string) ([]models.VerificationRequest, string, bool, error)

	// Get fetches a single request by id.
	Get(ctx context.Context, id string) (*models.VerificationRequest, error)

	// SetStatus atomically moves a request from one status to another,
	// applying extra field updates. It returns false when the request was
	// not in the expected source status.
	SetStatus(ctx context.Context, id, from, to string, set map[string]interface{}) (bool, error)
}

// CertificateGenerator produces the warranty certificate document for an
// accepted request. Emailing the document is a side effect of generation.
type CertificateGenerator interface {
	Generate(ctx context.Context, req *models.VerificationRequest) ([]byte, error)
}

// RejectionNotifier sends the rejection notice to the requester.
type RejectionNotifier interface {
	SendRejection(ctx context.Context, email, name, reason, certificateNo string) error
}

// ActionLogger records admin actions in the audit log.
type ActionLogger interface {
	Log(ctx context.Context, adminEmail, action string, details models.LogDetails) error
}

// PageSize is the fixed page size for request listing.
const PageSize = 20

// AcceptResult carries the outcome of a successful accept transition.
type AcceptResult struct {
	Request     *models.VerificationRequest
	Certificate []byte
}

// BulkItemResult is the per-item outcome of a bulk accept.
type BulkItemResult struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// LifecycleService owns the local view of fetched requests and drives every
// status transition through a fixed protocol that keeps local state,
// persisted state and notifications consistent when a collaborator fails.
type LifecycleService struct {
	store     RequestStore
	generator CertificateGenerator
	notifier  RejectionNotifier
	logger    ActionLogger

	mu       sync.Mutex
	local    map[string]*models.VerificationRequest
	selected map[string]struct{}
	filter   string
}

// NewLifecycleService creates a lifecycle service around its collaborators.
func NewLifecycleService(store RequestStore, generator CertificateGenerator, notifier RejectionNotifier, logger ActionLogger) *LifecycleService {
	return &LifecycleService{
		store:     store,
		generator: generator,
		notifier:  notifier,
		logger:    logger,
		local:     make(map[string]*models.VerificationRequest),
		selected:  make(map[string]struct{}),
	}
}

// nextStatus is the transition table. Accept and reject leave pending;
// revert is the compensating transition out of accepted.
func nextStatus(current, target string) (string, error) {
	switch {
	case current == models.StatusPending && target == models.StatusAccepted:
		return models.StatusAccepted, nil
	case current == models.StatusPending && target == models.StatusRejected:
		return models.StatusRejected, nil
	case current == models.StatusAccepted && target == models.StatusPending:
		return models.StatusPending, nil
	}
	return "", ErrInvalidTransition
}

// LoadPage fetches one page of requests and merges it into the local view.
// Changing the filter discards any cursor from a previous filter.
func (s *LifecycleService) LoadPage(ctx context.Context, filter, cursor string) (*models.RequestPage, error) {
	s.mu.Lock()
	if filter != s.filter {
		cursor = ""
		s.filter = filter
		s.local = make(map[string]*models.VerificationRequest)
	}
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()

	requests, nextCursor, hasMore, err := s.store.LoadPage(callCtx, filter, cursor)
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "request store", Err: err}
	}

	s.mu.Lock()
	for i := range requests {
		req := requests[i]
		s.local[req.ID.Hex()] = &req
	}
	s.mu.Unlock()

	return &models.RequestPage{
		Requests:   requests,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// getLocal returns the locally held record for an id, fetching it from the
// store on a miss.
func (s *LifecycleService) getLocal(ctx context.Context, id string) (*models.VerificationRequest, error) {
	s.mu.Lock()
	req, ok := s.local[id]
	s.mu.Unlock()
	if ok {
		return req, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()

	req, err := s.store.Get(callCtx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.local[id] = req
	s.mu.Unlock()
	return req, nil
}

func (s *LifecycleService) setLocalStatus(id, status string) {
	s.mu.Lock()
	if req, ok := s.local[id]; ok {
		req.Status = status
	}
	if status != models.StatusPending {
		delete(s.selected, id)
	}
	s.mu.Unlock()
}

// Accept runs the accept path for a single request:
//
//	validate -> optimistic local accept -> persist (CAS) -> generate certificate
//
// A generation failure triggers the compensating transition back to pending,
// both locally and in the store. The acting admin is passed explicitly so the
// audit entry never depends on ambient state.
func (s *LifecycleService) Accept(ctx context.Context, principal, id string) (*AcceptResult, error) {
	req, err := s.getLocal(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := nextStatus(req.Status, models.StatusAccepted); err != nil {
		if req.Status == models.StatusAccepted || req.Status == models.StatusRejected {
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}

	// Fail fast before any collaborator is called.
	if !req.HasCertificateFields() {
		return nil, &ValidationError{
			Field:  "certificateFields",
			Reason: "warranty certificate number, invoice number, issue date and product description are required before acceptance",
		}
	}

	// Optimistic local transition, visible to readers immediately.
	s.setLocalStatus(id, models.StatusAccepted)

	persistCtx, cancelPersist := context.WithTimeout(ctx, collaboratorTimeout)
	ok, err := s.store.SetStatus(persistCtx, id, models.StatusPending, models.StatusAccepted, map[string]interface{}{
		"updatedAt": time.Now(),
	})
	cancelPersist()
	if err != nil {
		s.setLocalStatus(id, models.StatusPending)
		return nil, &CollaboratorError{Collaborator: "request store", Err: err}
	}
	if !ok {
		// Lost the compare-and-swap: another call already processed this
		// request. Never generate a second certificate. Reconcile the local
		// view from the store.
		s.setLocalStatus(id, models.StatusPending)
		refreshCtx, cancelRefresh := context.WithTimeout(ctx, collaboratorTimeout)
		if current, getErr := s.store.Get(refreshCtx, id); getErr == nil {
			s.mu.Lock()
			s.local[id] = current
			s.mu.Unlock()
		}
		cancelRefresh()
		return nil, ErrAlreadyProcessed
	}

	genCtx, cancelGen := context.WithTimeout(ctx, collaboratorTimeout)
	certificate, err := s.generator.Generate(genCtx, req)
	cancelGen()
	if err != nil {
		s.revertAccept(id)
		return nil, &CollaboratorError{Collaborator: "certificate generation", Err: err, Reverted: true}
	}

	s.logAction(principal, models.ActionAccepted, models.LogDetails{
		WarrantyCertificateNo: req.WarrantyCertificateNo,
		IntegratorName:        req.IntegratorName,
	})

	return &AcceptResult{Request: req, Certificate: certificate}, nil
}

// revertAccept is the compensating transition: local and persisted status go
// back to pending after a failed downstream side effect.
func (s *LifecycleService) revertAccept(id string) {
	s.setLocalStatus(id, models.StatusPending)

	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()

	if _, err := s.store.SetStatus(ctx, id, models.StatusAccepted, models.StatusPending, map[string]interface{}{
		"updatedAt": time.Now(),
	}); err != nil {
		log.Printf("Failed to revert request %s to pending: %v", id, err)
	}
}

// Reject runs the reject path. The notifier is invoked before persistence and
// its failure does not block the rejection; a store failure does.
func (s *LifecycleService) Reject(ctx context.Context, principal, id, reason string) (*models.VerificationRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Field: "reason", Reason: "a rejection reason is required"}
	}

	req, err := s.getLocal(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := nextStatus(req.Status, models.StatusRejected); err != nil {
		if req.Status == models.StatusAccepted || req.Status == models.StatusRejected {
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}

	notifyCtx, cancelNotify := context.WithTimeout(ctx, collaboratorTimeout)
	err = s.notifier.SendRejection(notifyCtx, req.Email, req.IntegratorName, reason, req.WarrantyCertificateNo)
	cancelNotify()
	if err != nil {
		// Failure to notify does not block the rejection itself.
		log.Printf("Failed to send rejection notice for request %s: %v", id, err)
	}

	persistCtx, cancelPersist := context.WithTimeout(ctx, collaboratorTimeout)
	ok, err := s.store.SetStatus(persistCtx, id, models.StatusPending, models.StatusRejected, map[string]interface{}{
		"rejectionReason": reason,
		"updatedAt":       time.Now(),
	})
	cancelPersist()
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "request store", Err: err}
	}
	if !ok {
		return nil, ErrAlreadyProcessed
	}

	s.setLocalStatus(id, models.StatusRejected)
	s.mu.Lock()
	req.RejectionReason = reason
	s.mu.Unlock()

	s.logAction(principal, models.ActionRejected, models.LogDetails{
		WarrantyCertificateNo: req.WarrantyCertificateNo,
		IntegratorName:        req.IntegratorName,
		Reason:                reason,
	})

	return req, nil
}

// BulkAccept processes the given ids strictly one at a time, each item
// completing its full accept path (including any compensating rollback)
// before the next begins. The ids are snapshotted into a work queue so that
// local view changes during processing cannot desynchronize the iteration,
// and the selection set is cleared before the first item starts.
func (s *LifecycleService) BulkAccept(ctx context.Context, principal string, ids []string) []BulkItemResult {
	queue := make([]string, len(ids))
	copy(queue, ids)

	s.mu.Lock()
	s.selected = make(map[string]struct{})
	s.mu.Unlock()

	results := make([]BulkItemResult, 0, len(queue))
	for _, id := range queue {
		if err := ctx.Err(); err != nil {
			results = append(results, BulkItemResult{ID: id, Status: s.localStatus(id), Error: "batch cancelled"})
			continue
		}

		res, err := s.Accept(ctx, principal, id)
		if err != nil {
			results = append(results, BulkItemResult{ID: id, Status: s.localStatus(id), Error: err.Error()})
			continue
		}
		results = append(results, BulkItemResult{ID: id, Accepted: true, Status: res.Request.Status})
	}
	return results
}

func (s *LifecycleService) localStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.local[id]; ok {
		return req.Status
	}
	return ""
}

// ToggleSelect adds or removes an id from the selection set. Only pending
// requests can be added; removal is always permitted.
func (s *LifecycleService) ToggleSelect(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}

	req, ok := s.local[id]
	if !ok || req.Status != models.StatusPending {
		return false
	}

	s.selected[id] = struct{}{}
	return true
}

// SelectedIDs returns the current selection set.
func (s *LifecycleService) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	return ids
}

// logAction writes the audit entry for a completed transition. Log failures
// are never surfaced to the admin and never retried.
func (s *LifecycleService) logAction(principal, action string, details models.LogDetails) {
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()

	if err := s.logger.Log(ctx, principal, action, details); err != nil {
		log.Printf("Failed to record admin action %s by %s: %v", action, principal, err)
	}
}
