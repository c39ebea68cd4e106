package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/truesuntrading/warranty_backend/models"
)

// fakeStore is an in-memory RequestStore that records every mutating call in
// a shared operation log so tests can assert call ordering across fakes.
type fakeStore struct {
	mu      sync.Mutex
	order   []*models.VerificationRequest // createdAt descending
	byID    map[string]*models.VerificationRequest
	ops     *[]string
	casFail map[string]bool
	setErr  map[string]error
}

func newFakeStore(ops *[]string, requests ...*models.VerificationRequest) *fakeStore {
	s := &fakeStore{
		byID:    make(map[string]*models.VerificationRequest),
		ops:     ops,
		casFail: make(map[string]bool),
		setErr:  make(map[string]error),
	}
	for _, req := range requests {
		s.order = append(s.order, req)
		s.byID[req.ID.Hex()] = req
	}
	return s
}

func (s *fakeStore) LoadPage(ctx context.Context, status, cursor string) ([]models.VerificationRequest, string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var filtered []*models.VerificationRequest
	for _, req := range s.order {
		if status == "" || req.Status == status {
			filtered = append(filtered, req)
		}
	}

	start := 0
	if cursor != "" {
		for i, req := range filtered {
			if req.ID.Hex() == cursor {
				start = i + 1
				break
			}
		}
	}

	end := start + PageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	page := make([]models.VerificationRequest, 0, end-start)
	for _, req := range filtered[start:end] {
		page = append(page, *req)
	}

	nextCursor := ""
	if len(page) > 0 {
		nextCursor = page[len(page)-1].ID.Hex()
	}
	return page, nextCursor, len(page) == PageSize, nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*models.VerificationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.byID[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *req
	return &cp, nil
}

func (s *fakeStore) SetStatus(ctx context.Context, id, from, to string, set map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	*s.ops = append(*s.ops, fmt.Sprintf("persist:%s:%s->%s", id, from, to))

	if err := s.setErr[id]; err != nil {
		return false, err
	}
	if s.casFail[id] {
		return false, nil
	}
	req, ok := s.byID[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	if reason, ok := set["rejectionReason"].(string); ok {
		req.RejectionReason = reason
	}
	return true, nil
}

func (s *fakeStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.byID[id]; ok {
		return req.Status
	}
	return ""
}

type fakeGenerator struct {
	mu    sync.Mutex
	ops   *[]string
	calls []string
	fail  map[string]error
}

func (g *fakeGenerator) Generate(ctx context.Context, req *models.VerificationRequest) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := req.ID.Hex()
	g.calls = append(g.calls, id)
	*g.ops = append(*g.ops, "generate:"+id)
	if err := g.fail[id]; err != nil {
		return nil, err
	}
	return []byte("certificate"), nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	ops   *[]string
	calls []string
	err   error
}

func (n *fakeNotifier) SendRejection(ctx context.Context, email, name, reason, certificateNo string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, email+":"+reason)
	*n.ops = append(*n.ops, "notify:"+email)
	return n.err
}

type fakeLogger struct {
	mu      sync.Mutex
	entries []models.AdminLogEntry
	err     error
}

func (l *fakeLogger) Log(ctx context.Context, adminEmail, action string, details models.LogDetails) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, models.AdminLogEntry{AdminEmail: adminEmail, Action: action, Details: details})
	return l.err
}

type lifecycleFixture struct {
	service   *LifecycleService
	store     *fakeStore
	generator *fakeGenerator
	notifier  *fakeNotifier
	logger    *fakeLogger
	ops       []string
}

func newFixture(requests ...*models.VerificationRequest) *lifecycleFixture {
	f := &lifecycleFixture{}
	f.store = newFakeStore(&f.ops, requests...)
	f.generator = &fakeGenerator{ops: &f.ops, fail: make(map[string]error)}
	f.notifier = &fakeNotifier{ops: &f.ops}
	f.logger = &fakeLogger{}
	f.service = NewLifecycleService(f.store, f.generator, f.notifier, f.logger)
	return f
}

func readyRequest(name string) *models.VerificationRequest {
	return &models.VerificationRequest{
		ID:                    primitive.NewObjectID(),
		IntegratorName:        name,
		Email:                 strings.ToLower(name) + "@example.com",
		SerialNumbers:         []string{"SN-001"},
		WarrantyCertificateNo: "WC-1001",
		PremierInvoiceNo:      "INV-2001",
		CertificateIssueDate:  "2026-01-15",
		ProductDescription:    "540W solar module",
		Status:                models.StatusPending,
		CreatedAt:             time.Now(),
	}
}

func TestAcceptSuccess(t *testing.T) {
	req := readyRequest("Solar One")
	f := newFixture(req)
	id := req.ID.Hex()

	result, err := f.service.Accept(context.Background(), "admin@example.com", id)
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if string(result.Certificate) != "certificate" {
		t.Errorf("unexpected certificate content: %q", result.Certificate)
	}
	if result.Request.Status != models.StatusAccepted {
		t.Errorf("request status = %q, want %q", result.Request.Status, models.StatusAccepted)
	}
	if got := f.store.status(id); got != models.StatusAccepted {
		t.Errorf("persisted status = %q, want %q", got, models.StatusAccepted)
	}
	if len(f.logger.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(f.logger.entries))
	}
	entry := f.logger.entries[0]
	if entry.Action != models.ActionAccepted || entry.AdminEmail != "admin@example.com" {
		t.Errorf("audit entry = %s by %s", entry.Action, entry.AdminEmail)
	}
	if entry.Details.WarrantyCertificateNo != "WC-1001" {
		t.Errorf("audit certificate no = %q", entry.Details.WarrantyCertificateNo)
	}
}

func TestAcceptRequiresCertificateFields(t *testing.T) {
	clear := []struct {
		name  string
		strip func(*models.VerificationRequest)
	}{
		{"missing certificate number", func(r *models.VerificationRequest) { r.WarrantyCertificateNo = "" }},
		{"missing invoice number", func(r *models.VerificationRequest) { r.PremierInvoiceNo = "" }},
		{"missing issue date", func(r *models.VerificationRequest) { r.CertificateIssueDate = "" }},
		{"missing product description", func(r *models.VerificationRequest) { r.ProductDescription = "" }},
	}

	for _, tc := range clear {
		t.Run(tc.name, func(t *testing.T) {
			req := readyRequest("Solar One")
			tc.strip(req)
			f := newFixture(req)

			_, err := f.service.Accept(context.Background(), "admin@example.com", req.ID.Hex())

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(f.ops) != 0 {
				t.Errorf("collaborators were called: %v", f.ops)
			}
			if got := f.store.status(req.ID.Hex()); got != models.StatusPending {
				t.Errorf("status = %q, want pending", got)
			}
		})
	}
}

func TestAcceptGenerationFailureRevertsToPending(t *testing.T) {
	req := readyRequest("Solar One")
	f := newFixture(req)
	id := req.ID.Hex()
	f.generator.fail[id] = errors.New("template unreadable")

	_, err := f.service.Accept(context.Background(), "admin@example.com", id)

	var collaboratorErr *CollaboratorError
	if !errors.As(err, &collaboratorErr) {
		t.Fatalf("expected CollaboratorError, got %v", err)
	}
	if !collaboratorErr.Reverted {
		t.Error("expected the error to report the compensating revert")
	}
	if got := f.store.status(id); got != models.StatusPending {
		t.Errorf("persisted status = %q, want pending after revert", got)
	}
	if got := f.service.localStatus(id); got != models.StatusPending {
		t.Errorf("local status = %q, want pending after revert", got)
	}

	want := []string{
		"persist:" + id + ":pending->accepted",
		"generate:" + id,
		"persist:" + id + ":accepted->pending",
	}
	if len(f.ops) != len(want) {
		t.Fatalf("operations = %v, want %v", f.ops, want)
	}
	for i := range want {
		if f.ops[i] != want[i] {
			t.Errorf("operation %d = %q, want %q", i, f.ops[i], want[i])
		}
	}
	if len(f.logger.entries) != 0 {
		t.Errorf("no audit entry expected on failure, got %v", f.logger.entries)
	}
}

func TestAcceptAlreadyProcessed(t *testing.T) {
	req := readyRequest("Solar One")
	req.Status = models.StatusAccepted
	f := newFixture(req)

	_, err := f.service.Accept(context.Background(), "admin@example.com", req.ID.Hex())
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if len(f.generator.calls) != 0 {
		t.Error("certificate generator must not run for a processed request")
	}
}

func TestAcceptLostRace(t *testing.T) {
	// The persisted record moved out of pending between the local check and
	// the store write. The compare-and-swap miss must not generate a
	// certificate.
	req := readyRequest("Solar One")
	f := newFixture(req)
	id := req.ID.Hex()
	f.store.casFail[id] = true

	_, err := f.service.Accept(context.Background(), "admin@example.com", id)
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if len(f.generator.calls) != 0 {
		t.Error("certificate generator must not run after a lost race")
	}
}

func TestAcceptUnknownRequest(t *testing.T) {
	f := newFixture()

	_, err := f.service.Accept(context.Background(), "admin@example.com", primitive.NewObjectID().Hex())
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("expected no-documents error, got %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	for _, reason := range []string{"", "   ", "\t\n"} {
		t.Run(fmt.Sprintf("reason=%q", reason), func(t *testing.T) {
			req := readyRequest("Solar One")
			f := newFixture(req)

			_, err := f.service.Reject(context.Background(), "admin@example.com", req.ID.Hex(), reason)

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(f.ops) != 0 {
				t.Errorf("collaborators were called: %v", f.ops)
			}
		})
	}
}

func TestRejectNotifiesBeforePersist(t *testing.T) {
	req := readyRequest("Solar One")
	f := newFixture(req)
	id := req.ID.Hex()

	updated, err := f.service.Reject(context.Background(), "admin@example.com", id, "serials not found in our records")
	if err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if updated.RejectionReason != "serials not found in our records" {
		t.Errorf("rejection reason = %q", updated.RejectionReason)
	}
	if got := f.store.status(id); got != models.StatusRejected {
		t.Errorf("persisted status = %q, want rejected", got)
	}

	if len(f.ops) != 2 {
		t.Fatalf("operations = %v", f.ops)
	}
	if !strings.HasPrefix(f.ops[0], "notify:") {
		t.Errorf("first operation = %q, want the notification", f.ops[0])
	}
	if !strings.HasPrefix(f.ops[1], "persist:") {
		t.Errorf("second operation = %q, want the store write", f.ops[1])
	}

	if len(f.logger.entries) != 1 || f.logger.entries[0].Action != models.ActionRejected {
		t.Fatalf("audit entries = %v", f.logger.entries)
	}
	if f.logger.entries[0].Details.Reason == "" {
		t.Error("audit entry is missing the rejection reason")
	}
}

func TestRejectSurvivesNotifierFailure(t *testing.T) {
	req := readyRequest("Solar One")
	f := newFixture(req)
	f.notifier.err = errors.New("smtp connection refused")

	_, err := f.service.Reject(context.Background(), "admin@example.com", req.ID.Hex(), "incomplete documents")
	if err != nil {
		t.Fatalf("notifier failure must not block the rejection: %v", err)
	}
	if got := f.store.status(req.ID.Hex()); got != models.StatusRejected {
		t.Errorf("persisted status = %q, want rejected", got)
	}
}

func TestRejectAlreadyProcessed(t *testing.T) {
	req := readyRequest("Solar One")
	req.Status = models.StatusRejected
	f := newFixture(req)

	_, err := f.service.Reject(context.Background(), "admin@example.com", req.ID.Hex(), "duplicate")
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if len(f.notifier.calls) != 0 {
		t.Error("notifier must not run for a processed request")
	}
}

func TestBulkAcceptSequentialWithMidBatchFailure(t *testing.T) {
	first := readyRequest("Solar One")
	second := readyRequest("Solar Two")
	third := readyRequest("Solar Three")
	f := newFixture(first, second, third)
	f.generator.fail[second.ID.Hex()] = errors.New("placeholder mismatch")

	ids := []string{first.ID.Hex(), second.ID.Hex(), third.ID.Hex()}
	_, _ = f.service.LoadPage(context.Background(), "", "")
	for _, id := range ids {
		f.service.ToggleSelect(id)
	}

	results := f.service.BulkAccept(context.Background(), "admin@example.com", ids)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if !results[0].Accepted || results[0].Status != models.StatusAccepted {
		t.Errorf("first item = %+v, want accepted", results[0])
	}
	if results[1].Accepted || results[1].Error == "" {
		t.Errorf("second item = %+v, want failure", results[1])
	}
	if results[1].Status != models.StatusPending {
		t.Errorf("failed item status = %q, want pending after revert", results[1].Status)
	}
	if !results[2].Accepted {
		t.Errorf("third item = %+v, want accepted despite earlier failure", results[2])
	}

	// The failed item's full rollback must complete before the next item
	// starts.
	var genOrder []string
	for _, op := range f.ops {
		if strings.HasPrefix(op, "generate:") || strings.HasPrefix(op, "persist:") {
			genOrder = append(genOrder, op)
		}
	}
	revert := "persist:" + second.ID.Hex() + ":accepted->pending"
	thirdStart := "persist:" + third.ID.Hex() + ":pending->accepted"
	revertIdx, thirdIdx := -1, -1
	for i, op := range genOrder {
		if op == revert {
			revertIdx = i
		}
		if op == thirdStart {
			thirdIdx = i
		}
	}
	if revertIdx == -1 || thirdIdx == -1 || revertIdx > thirdIdx {
		t.Errorf("rollback did not complete before the next item: %v", genOrder)
	}

	if got := f.service.SelectedIDs(); len(got) != 0 {
		t.Errorf("selection set not cleared: %v", got)
	}
}

func TestBulkAcceptCancelledContext(t *testing.T) {
	first := readyRequest("Solar One")
	second := readyRequest("Solar Two")
	f := newFixture(first, second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := f.service.BulkAccept(ctx, "admin@example.com", []string{first.ID.Hex(), second.ID.Hex()})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Accepted || res.Error != "batch cancelled" {
			t.Errorf("item = %+v, want batch cancelled", res)
		}
	}
	if len(f.generator.calls) != 0 {
		t.Error("no certificates may be generated after cancellation")
	}
}

func TestToggleSelect(t *testing.T) {
	pending := readyRequest("Solar One")
	processed := readyRequest("Solar Two")
	processed.Status = models.StatusAccepted
	f := newFixture(pending, processed)
	_, _ = f.service.LoadPage(context.Background(), "", "")

	if !f.service.ToggleSelect(pending.ID.Hex()) {
		t.Error("pending request should be selectable")
	}
	if f.service.ToggleSelect(pending.ID.Hex()) {
		t.Error("second toggle should deselect")
	}
	if f.service.ToggleSelect(processed.ID.Hex()) {
		t.Error("processed request must not be selectable")
	}
	if f.service.ToggleSelect(primitive.NewObjectID().Hex()) {
		t.Error("unknown request must not be selectable")
	}
}

func TestAcceptRemovesFromSelection(t *testing.T) {
	req := readyRequest("Solar One")
	f := newFixture(req)
	id := req.ID.Hex()
	_, _ = f.service.LoadPage(context.Background(), "", "")
	f.service.ToggleSelect(id)

	if _, err := f.service.Accept(context.Background(), "admin@example.com", id); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if got := f.service.SelectedIDs(); len(got) != 0 {
		t.Errorf("accepted request still selected: %v", got)
	}
}

func TestLoadPagePagination(t *testing.T) {
	total := 45
	requests := make([]*models.VerificationRequest, 0, total)
	base := time.Now()
	for i := 0; i < total; i++ {
		req := readyRequest(fmt.Sprintf("Integrator %02d", i))
		req.CreatedAt = base.Add(-time.Duration(i) * time.Minute)
		requests = append(requests, req)
	}
	f := newFixture(requests...)

	seen := make(map[string]bool)
	cursor := ""
	pages := 0
	for {
		page, err := f.service.LoadPage(context.Background(), "", cursor)
		if err != nil {
			t.Fatalf("LoadPage returned error: %v", err)
		}
		pages++
		if len(page.Requests) > PageSize {
			t.Fatalf("page %d has %d items, limit is %d", pages, len(page.Requests), PageSize)
		}
		var prev time.Time
		for i, req := range page.Requests {
			id := req.ID.Hex()
			if seen[id] {
				t.Fatalf("request %s appeared on two pages", id)
			}
			seen[id] = true
			if i > 0 && req.CreatedAt.After(prev) {
				t.Fatalf("page %d is not ordered newest first", pages)
			}
			prev = req.CreatedAt
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	if len(seen) != total {
		t.Errorf("paged through %d requests, want %d", len(seen), total)
	}
	if pages != 3 {
		t.Errorf("expected 3 pages for %d requests, got %d", total, pages)
	}
}

func TestLoadPageStatusFilter(t *testing.T) {
	pending := readyRequest("Solar One")
	accepted := readyRequest("Solar Two")
	accepted.Status = models.StatusAccepted
	f := newFixture(pending, accepted)

	page, err := f.service.LoadPage(context.Background(), models.StatusPending, "")
	if err != nil {
		t.Fatalf("LoadPage returned error: %v", err)
	}
	if len(page.Requests) != 1 || page.Requests[0].ID != pending.ID {
		t.Fatalf("filtered page = %+v", page.Requests)
	}
	if page.HasMore {
		t.Error("single result must not report more pages")
	}
}
