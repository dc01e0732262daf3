package pharmacy

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/audit"
	"github.com/hms/hms/internal/platform/websocket"
)

// ---------------------------------------------------------------------------
// Mock store
// ---------------------------------------------------------------------------

// mockStore backs all three repositories with shared in-memory state. The
// mutex belongs to the transaction harness, which holds it for the whole
// unit of work the way row locks are held until commit.
type mockStore struct {
	mu        sync.Mutex
	medicines map[uuid.UUID]*Medicine
	items     map[uuid.UUID]*PrescriptionItem
	issues    []*MedicineIssue
	failIssue bool
}

func intPtr(n int) *int { return &n }

func newMockStore() *mockStore {
	return &mockStore{
		medicines: make(map[uuid.UUID]*Medicine),
		items:     make(map[uuid.UUID]*PrescriptionItem),
	}
}

func (s *mockStore) seedMedicine(name string, priceCents int64, stock int) uuid.UUID {
	id := uuid.New()
	s.medicines[id] = &Medicine{ID: id, Name: name, UnitPriceCents: priceCents, StockQuantity: stock}
	return id
}

func (s *mockStore) seedItem(medicineID uuid.UUID, quantity int) uuid.UUID {
	id := uuid.New()
	s.items[id] = &PrescriptionItem{ID: id, PrescriptionID: uuid.New(), MedicineID: medicineID, Quantity: quantity}
	return id
}

func (s *mockStore) issuedFor(itemID uuid.UUID) int {
	total := 0
	for _, i := range s.issues {
		if i.PrescriptionItemID == itemID {
			total += i.IssuedQuantity
		}
	}
	return total
}

func (s *mockStore) GetByID(_ context.Context, id uuid.UUID) (*Medicine, error) {
	m, ok := s.medicines[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *mockStore) List(_ context.Context, limit, offset int) ([]*Medicine, int, error) {
	all := make([]*Medicine, 0, len(s.medicines))
	for _, m := range s.medicines {
		all = append(all, m)
	}
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *mockStore) DecrementStock(_ context.Context, id uuid.UUID, qty int) error {
	m, ok := s.medicines[id]
	if !ok || m.StockQuantity < qty {
		return ErrInsufficientStock
	}
	m.StockQuantity -= qty
	return nil
}

func (s *mockStore) ItemForDispense(_ context.Context, itemID uuid.UUID) (*DispenseCheck, error) {
	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	m := s.medicines[item.MedicineID]
	return &DispenseCheck{
		MedicineID:         item.MedicineID,
		StockQuantity:      m.StockQuantity,
		PrescribedQuantity: item.Quantity,
		AlreadyIssued:      s.issuedFor(itemID),
	}, nil
}

func (s *mockStore) Create(_ context.Context, issue *MedicineIssue) error {
	if s.failIssue {
		return errors.New("insert failed")
	}
	issue.ID = uuid.New()
	issue.CreatedAt = time.Now()
	copied := *issue
	s.issues = append(s.issues, &copied)
	return nil
}

func (s *mockStore) ListByItem(_ context.Context, itemID uuid.UUID) ([]*MedicineIssue, error) {
	var out []*MedicineIssue
	for _, i := range s.issues {
		if i.PrescriptionItemID == itemID {
			out = append(out, i)
		}
	}
	return out, nil
}

type mockAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
	fail    bool
}

func (m *mockAuditor) Record(_ context.Context, e audit.Entry) error {
	if m.fail {
		return errors.New("audit insert failed")
	}
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (p *capturePublisher) Publish(_ context.Context, e websocket.Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// txHarness serializes units of work against the store and restores the
// store's state when one fails, matching what row locks and rollback give
// the real repositories.
type txHarness struct {
	store *mockStore
}

func (h *txHarness) run(ctx context.Context, fn func(context.Context) error) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	savedMedicines := make(map[uuid.UUID]*Medicine, len(h.store.medicines))
	for k, v := range h.store.medicines {
		copied := *v
		savedMedicines[k] = &copied
	}
	savedIssues := append([]*MedicineIssue(nil), h.store.issues...)

	if err := fn(ctx); err != nil {
		h.store.medicines = savedMedicines
		h.store.issues = savedIssues
		return err
	}
	return nil
}

type fixture struct {
	store   *mockStore
	auditor *mockAuditor
	pub     *capturePublisher
	svc     *Service
}

func newFixture() *fixture {
	f := &fixture{
		store:   newMockStore(),
		auditor: &mockAuditor{},
		pub:     &capturePublisher{},
	}
	harness := &txHarness{store: f.store}
	f.svc = NewService(f.store, f.store, f.store, f.auditor, harness.run, f.pub, zerolog.Nop())
	return f
}

// ---------------------------------------------------------------------------
// IssueMedicine
// ---------------------------------------------------------------------------

func TestIssueMedicine_Dispenses(t *testing.T) {
	f := newFixture()
	medID := f.store.seedMedicine("Paracetamol 500mg", 500, 100)
	itemID := f.store.seedItem(medID, 10)
	chemistID := uuid.New()
	patientID := uuid.New()

	issue, err := f.svc.IssueMedicine(context.Background(), DispenseInput{
		PrescriptionItemID: itemID,
		PatientID:          patientID,
		IssuedQuantity:     intPtr(4),
	}, chemistID)
	if err != nil {
		t.Fatalf("IssueMedicine failed: %v", err)
	}

	if issue.IssuedQuantity != 4 {
		t.Errorf("expected issued quantity 4, got %d", issue.IssuedQuantity)
	}
	if issue.ChemistID != chemistID {
		t.Error("expected the chemist recorded on the issue")
	}
	if got := f.store.medicines[medID].StockQuantity; got != 96 {
		t.Errorf("expected stock 96, got %d", got)
	}
	if len(f.store.issues) != 1 {
		t.Errorf("expected 1 issue row, got %d", len(f.store.issues))
	}
}

func TestIssueMedicine_PartialFulfillmentAccumulates(t *testing.T) {
	f := newFixture()
	medID := f.store.seedMedicine("Amoxicillin 250mg", 1200, 100)
	itemID := f.store.seedItem(medID, 10)
	in := DispenseInput{PrescriptionItemID: itemID, PatientID: uuid.New()}

	in.IssuedQuantity = intPtr(4)
	if _, err := f.svc.IssueMedicine(context.Background(), in, uuid.New()); err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	in.IssuedQuantity = intPtr(6)
	if _, err := f.svc.IssueMedicine(context.Background(), in, uuid.New()); err != nil {
		t.Fatalf("second issue failed: %v", err)
	}

	// The prescription is now fully dispensed.
	in.IssuedQuantity = intPtr(1)
	_, err := f.svc.IssueMedicine(context.Background(), in, uuid.New())
	var qErr *InvalidQuantityError
	if !errors.As(err, &qErr) {
		t.Fatalf("expected InvalidQuantityError, got %v", err)
	}
	if qErr.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", qErr.Remaining)
	}
	if got := f.store.medicines[medID].StockQuantity; got != 90 {
		t.Errorf("expected stock 90, got %d", got)
	}
}

func TestIssueMedicine_OverRemaining(t *testing.T) {
	f := newFixture()
	medID := f.store.seedMedicine("Ibuprofen 400mg", 800, 100)
	itemID := f.store.seedItem(medID, 10)
	in := DispenseInput{PrescriptionItemID: itemID, PatientID: uuid.New()}

	in.IssuedQuantity = intPtr(6)
	if _, err := f.svc.IssueMedicine(context.Background(), in, uuid.New()); err != nil {
		t.Fatalf("setup issue failed: %v", err)
	}

	in.IssuedQuantity = intPtr(5)
	_, err := f.svc.IssueMedicine(context.Background(), in, uuid.New())
	var qErr *InvalidQuantityError
	if !errors.As(err, &qErr) {
		t.Fatalf("expected InvalidQuantityError, got %v", err)
	}
	if qErr.Requested != 5 || qErr.Remaining != 4 {
		t.Errorf("expected requested 5 remaining 4, got %d/%d", qErr.Requested, qErr.Remaining)
	}
	if got := f.store.medicines[medID].StockQuantity; got != 94 {
		t.Errorf("rejected issue must not touch stock, got %d", got)
	}
}

func TestIssueMedicine_NonPositiveQuantity(t *testing.T) {
	f := newFixture()
	medID := f.store.seedMedicine("Cetirizine 10mg", 300, 50)
	itemID := f.store.seedItem(medID, 10)

	for _, qty := range []int{0, -3} {
		_, err := f.svc.IssueMedicine(context.Background(), DispenseInput{
			PrescriptionItemID: itemID,
			PatientID:          uuid.New(),
			IssuedQuantity:     intPtr(qty),
		}, uuid.New())
		var qErr *InvalidQuantityError
		if !errors.As(err, &qErr) {
			t.Errorf("quantity %d: expected InvalidQuantityError, got %v", qty, err)
		}
	}
}

func TestIssueMedicine_InsufficientStock(t *testing.T) {
	f := newFixture()
	medID := f.store.seedMedicine("Insulin pen", 45000, 2)
	itemID := f.store.seedItem(medID, 10)

	_, err := f.svc.IssueMedicine(context.Background(), DispenseInput{
		PrescriptionItemID: itemID,
		PatientID:          uuid.New(),
		IssuedQuantity:     intPtr(3),
	}, uuid.New())
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if got := f.store.medicines[medID].StockQuantity; got != 2 {
		t.Errorf("stock must be unchanged, got %d", got)
	}
	if len(f.store.issues) != 0 {
		t.Errorf("no issue rows expected, got %d", len(f.store.issues))
	}
}

func TestIssueMedicine_ConcurrentLastUnit(t *testing.T) {
	f := newFixture()
	medID := f.store.seedMedicine("Adrenaline ampoule", 9000, 1)
	itemID := f.store.seedItem(medID, 2)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.IssueMedicine(context.Background(), DispenseInput{
				PrescriptionItemID: itemID,
				PatientID:          uuid.New(),
				IssuedQuantity:     intPtr(1),
			}, uuid.New())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, failed int
	for err := range results {
		if err == nil {
			succeeded++
		} else if errors.Is(err, ErrInsufficientStock) {
			failed++
		} else {
			t.Errorf("unexpected error: %v", err)
		}
	}

	if succeeded != 1 || failed != 1 {
		t.Errorf("expected exactly one success and one stock failure, got %d/%d", succeeded, failed)
	}
	if got := f.store.medicines[medID].StockQuantity; got != 0 {
		t.Errorf("expected final stock 0, got %d", got)
	}
	if len(f.store.issues) != 1 {
		t.Errorf("expected 1 issue row, got %d", len(f.store.issues))
	}
}

func TestIssueMedicine_UnknownItem(t *testing.T) {
	f := newFixture()

	_, err := f.svc.IssueMedicine(context.Background(), DispenseInput{
		PrescriptionItemID: uuid.New(),
		PatientID:          uuid.New(),
		IssuedQuantity:     intPtr(1),
	}, uuid.New())
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestIssueMedicine_Validation(t *testing.T) {
	f := newFixture()
	medID := f.store.seedMedicine("Saline", 100, 10)
	itemID := f.store.seedItem(medID, 5)

	tests := []struct {
		name  string
		in    DispenseInput
		field string
	}{
		{"missing item", DispenseInput{PatientID: uuid.New(), IssuedQuantity: intPtr(1)}, "prescription_item_id"},
		{"missing patient", DispenseInput{PrescriptionItemID: itemID, IssuedQuantity: intPtr(1)}, "patient_id"},
		{"missing quantity", DispenseInput{PrescriptionItemID: itemID, PatientID: uuid.New()}, "issued_quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.IssueMedicine(context.Background(), tt.in, uuid.New())
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, vErr.Field)
			}
		})
	}
}

func TestIssueMedicine_RecordsAudit(t *testing.T) {
	f := newFixture()
	medID := f.store.seedMedicine("Metformin 500mg", 400, 30)
	itemID := f.store.seedItem(medID, 10)
	chemistID := uuid.New()

	issue, err := f.svc.IssueMedicine(context.Background(), DispenseInput{
		PrescriptionItemID: itemID,
		PatientID:          uuid.New(),
		IssuedQuantity:     intPtr(2),
	}, chemistID)
	if err != nil {
		t.Fatalf("IssueMedicine failed: %v", err)
	}

	if len(f.auditor.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(f.auditor.entries))
	}
	entry := f.auditor.entries[0]
	if entry.ActorID != chemistID {
		t.Error("expected the chemist as audit actor")
	}
	meta, ok := entry.Meta.(audit.MedicineDispensed)
	if !ok {
		t.Fatalf("expected MedicineDispensed metadata, got %T", entry.Meta)
	}
	if meta.IssueID != issue.ID || meta.MedicineID != medID || meta.Quantity != 2 {
		t.Error("audit metadata does not match the issue")
	}
}

func TestIssueMedicine_RollsBackOnAuditFailure(t *testing.T) {
	f := newFixture()
	medID := f.store.seedMedicine("Warfarin 5mg", 700, 20)
	itemID := f.store.seedItem(medID, 10)
	f.auditor.fail = true

	_, err := f.svc.IssueMedicine(context.Background(), DispenseInput{
		PrescriptionItemID: itemID,
		PatientID:          uuid.New(),
		IssuedQuantity:     intPtr(3),
	}, uuid.New())
	if err == nil {
		t.Fatal("expected failure when audit insert fails")
	}

	if got := f.store.medicines[medID].StockQuantity; got != 20 {
		t.Errorf("expected stock restored to 20, got %d", got)
	}
	if len(f.store.issues) != 0 {
		t.Errorf("expected no issue rows after rollback, got %d", len(f.store.issues))
	}
	if f.pub.count() != 0 {
		t.Error("no event should be published on failure")
	}
}

func TestIssueMedicine_RollsBackOnIssueFailure(t *testing.T) {
	f := newFixture()
	medID := f.store.seedMedicine("Omeprazole 20mg", 600, 15)
	itemID := f.store.seedItem(medID, 10)
	f.store.failIssue = true

	_, err := f.svc.IssueMedicine(context.Background(), DispenseInput{
		PrescriptionItemID: itemID,
		PatientID:          uuid.New(),
		IssuedQuantity:     intPtr(2),
	}, uuid.New())
	if err == nil {
		t.Fatal("expected failure when the issue insert fails")
	}
	if got := f.store.medicines[medID].StockQuantity; got != 15 {
		t.Errorf("expected stock unchanged, got %d", got)
	}
}

func TestIssueMedicine_PublishesDispensedEvent(t *testing.T) {
	f := newFixture()
	medID := f.store.seedMedicine("Azithromycin 500mg", 1500, 10)
	itemID := f.store.seedItem(medID, 5)

	issue, err := f.svc.IssueMedicine(context.Background(), DispenseInput{
		PrescriptionItemID: itemID,
		PatientID:          uuid.New(),
		IssuedQuantity:     intPtr(1),
	}, uuid.New())
	if err != nil {
		t.Fatalf("IssueMedicine failed: %v", err)
	}

	if f.pub.count() != 1 {
		t.Fatalf("expected 1 event, got %d", f.pub.count())
	}
	event := f.pub.events[0]
	if event.Type != websocket.EventPrescriptionDispensed {
		t.Errorf("expected prescription.dispensed, got %s", event.Type)
	}
	if event.Topic != websocket.TopicPrescriptions {
		t.Errorf("expected prescriptions topic, got %s", event.Topic)
	}

	var payload MedicineIssue
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		t.Fatalf("failed to unmarshal event payload: %v", err)
	}
	if payload.ID != issue.ID {
		t.Error("event payload should carry the issue id")
	}
}

func TestListIssues(t *testing.T) {
	f := newFixture()
	medID := f.store.seedMedicine("Vitamin D3", 250, 100)
	itemID := f.store.seedItem(medID, 10)
	in := DispenseInput{PrescriptionItemID: itemID, PatientID: uuid.New()}

	for _, qty := range []int{3, 2} {
		in.IssuedQuantity = intPtr(qty)
		if _, err := f.svc.IssueMedicine(context.Background(), in, uuid.New()); err != nil {
			t.Fatalf("IssueMedicine failed: %v", err)
		}
	}

	issues, err := f.svc.ListIssues(context.Background(), itemID)
	if err != nil {
		t.Fatalf("ListIssues failed: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(issues))
	}
	if issues[0].IssuedQuantity != 3 || issues[1].IssuedQuantity != 2 {
		t.Error("expected issues in dispensing order")
	}
}

func TestDispenseCheck_Remaining(t *testing.T) {
	tests := []struct {
		prescribed, issued, want int
	}{
		{10, 0, 10},
		{10, 6, 4},
		{10, 10, 0},
	}
	for _, tt := range tests {
		c := DispenseCheck{PrescribedQuantity: tt.prescribed, AlreadyIssued: tt.issued}
		if got := c.Remaining(); got != tt.want {
			t.Errorf("Remaining(%d, %d) = %d, want %d", tt.prescribed, tt.issued, got, tt.want)
		}
	}
}
