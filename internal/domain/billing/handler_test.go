package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/websocket"
)

type capturePublisher struct {
	events []websocket.Event
}

func (p *capturePublisher) Publish(_ context.Context, e websocket.Event) error {
	p.events = append(p.events, e)
	return nil
}

func newTestHandler() (*Handler, *capturePublisher, *mockTreatmentRepo, *mockBillRepo, *echo.Echo) {
	treatments := newMockTreatmentRepo()
	bills := newMockBillRepo()
	svc := NewService(treatments, bills, &mockChargeRepo{}, &mockAuditor{}, passTx, testFees)
	pub := &capturePublisher{}
	h := NewHandler(svc, pub, zerolog.Nop())
	e := echo.New()
	return h, pub, treatments, bills, e
}

func TestHandler_GenerateBill(t *testing.T) {
	h, pub, treatments, _, e := newTestHandler()

	patientID := uuid.New()
	seedTreatment(treatments, patientID, time.Now())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())

	if err := h.GenerateBill(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var summary BillSummary
	json.Unmarshal(rec.Body.Bytes(), &summary)
	if summary.TotalCents != 50000 {
		t.Errorf("expected total 50000, got %d", summary.TotalCents)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.events))
	}
	if pub.events[0].Type != websocket.EventBillGenerated {
		t.Errorf("expected bill.generated event, got %s", pub.events[0].Type)
	}
	if pub.events[0].Topic != websocket.TopicBills {
		t.Errorf("expected bills topic, got %s", pub.events[0].Topic)
	}
}

func TestHandler_GenerateBill_NoTreatment(t *testing.T) {
	h, pub, _, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GenerateBill(c)
	if err == nil {
		t.Fatal("expected error when patient has no treatment")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
	if len(pub.events) != 0 {
		t.Error("no event should be published on failure")
	}
}

func TestHandler_GenerateBill_InvalidPatientID(t *testing.T) {
	h, _, _, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GenerateBill(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
}

func TestHandler_GetBill(t *testing.T) {
	h, _, treatments, bills, e := newTestHandler()

	patientID := uuid.New()
	seedTreatment(treatments, patientID, time.Now())

	summary, err := h.svc.GenerateBill(context.Background(), patientID, uuid.New())
	if err != nil {
		t.Fatalf("GenerateBill failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(summary.BillID.String())

	if err := h.GetBill(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Bill  Bill        `json:"bill"`
		Items []*BillItem `json:"items"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Bill.ID != summary.BillID {
		t.Error("expected the generated bill in the response")
	}
	if len(resp.Items) != len(bills.items[summary.BillID]) {
		t.Errorf("expected %d items, got %d", len(bills.items[summary.BillID]), len(resp.Items))
	}
}

func TestHandler_GetBill_NotFound(t *testing.T) {
	h, _, _, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetBill(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", httpErr.Code)
	}
}

func TestHandler_ListPatientBills(t *testing.T) {
	h, _, treatments, _, e := newTestHandler()

	patientID := uuid.New()
	seedTreatment(treatments, patientID, time.Now())
	for i := 0; i < 3; i++ {
		if _, err := h.svc.GenerateBill(context.Background(), patientID, uuid.New()); err != nil {
			t.Fatalf("GenerateBill failed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/?limit=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())

	if err := h.ListPatientBills(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Total   int  `json:"total"`
		HasMore bool `json:"has_more"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 3 {
		t.Errorf("expected total 3, got %d", resp.Total)
	}
	if !resp.HasMore {
		t.Error("expected has_more with limit 2 of 3")
	}
}
