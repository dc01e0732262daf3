package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/audit"
	"github.com/hms/hms/internal/platform/db"
)

// Fees is the flat fee schedule applied when pricing a bill.
type Fees struct {
	ConsultationCents int64
	LabTestCents      int64
}

type Service struct {
	treatments TreatmentRepository
	bills      BillRepository
	charges    ChargeSourceRepository
	auditor    audit.Recorder
	inTx       db.TxRunner
	fees       Fees
	now        func() time.Time
}

func NewService(treatments TreatmentRepository, bills BillRepository, charges ChargeSourceRepository, auditor audit.Recorder, inTx db.TxRunner, fees Fees) *Service {
	return &Service{
		treatments: treatments,
		bills:      bills,
		charges:    charges,
		auditor:    auditor,
		inTx:       inTx,
		fees:       fees,
		now:        time.Now,
	}
}

// GenerateBill prices the patient's latest treatment into a new bill. The
// bill, its line items, the recomputed total and the audit entry become
// visible together or not at all. Every call creates a new bill; the engine
// does not deduplicate repeat calls for the same treatment.
func (s *Service) GenerateBill(ctx context.Context, patientID, actorID uuid.UUID) (*BillSummary, error) {
	if patientID == uuid.Nil {
		return nil, &ValidationError{Field: "patient_id"}
	}

	treatment, err := s.treatments.LatestByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	var summary *BillSummary
	err = s.inTx(ctx, func(ctx context.Context) error {
		bill := &Bill{
			PatientID:   patientID,
			TreatmentID: treatment.ID,
			Status:      StatusIssued,
			IssuedAt:    s.now(),
		}
		if err := s.bills.Create(ctx, bill); err != nil {
			return err
		}

		treatmentRef := treatment.ID
		if err := s.bills.AddItem(ctx, &BillItem{
			BillID:      bill.ID,
			ItemType:    ItemConsultation,
			RefID:       &treatmentRef,
			Description: "Doctor consultation",
			AmountCents: s.fees.ConsultationCents,
		}); err != nil {
			return err
		}

		accs, err := s.charges.Accommodations(ctx, patientID)
		if err != nil {
			return err
		}
		var roomCents int64
		for _, a := range accs {
			roomCents += int64(a.StayDays(s.now())) * a.DailyRateCents
		}
		if roomCents > 0 {
			if err := s.bills.AddItem(ctx, &BillItem{
				BillID:      bill.ID,
				ItemType:    ItemRoom,
				Description: "Room charges",
				AmountCents: roomCents,
			}); err != nil {
				return err
			}
		}

		labs, err := s.charges.CountLabRequests(ctx, treatment.ID)
		if err != nil {
			return err
		}
		if labs > 0 {
			if err := s.bills.AddItem(ctx, &BillItem{
				BillID:      bill.ID,
				ItemType:    ItemLab,
				Description: "Laboratory charges",
				AmountCents: int64(labs) * s.fees.LabTestCents,
			}); err != nil {
				return err
			}
		}

		medCents, err := s.charges.MedicineChargeCents(ctx, treatment.ID)
		if err != nil {
			return err
		}
		if medCents > 0 {
			if err := s.bills.AddItem(ctx, &BillItem{
				BillID:      bill.ID,
				ItemType:    ItemMedicine,
				Description: "Prescribed medicines",
				AmountCents: medCents,
			}); err != nil {
				return err
			}
		}

		// The stored total comes from re-reading the persisted items, not
		// from the running sum above.
		total, err := s.bills.SumItems(ctx, bill.ID)
		if err != nil {
			return err
		}
		if err := s.bills.SetTotal(ctx, bill.ID, total); err != nil {
			return err
		}

		if err := s.auditor.Record(ctx, audit.Entry{
			ActorID:    actorID,
			EntityType: "bills",
			EntityID:   bill.ID,
			Meta: audit.BillIssued{
				BillID:      bill.ID,
				TreatmentID: treatment.ID,
				TotalCents:  total,
			},
		}); err != nil {
			return err
		}

		summary = &BillSummary{
			BillID:      bill.ID,
			TreatmentID: treatment.ID,
			TotalCents:  total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// GetBill returns a bill with its line items.
func (s *Service) GetBill(ctx context.Context, id uuid.UUID) (*Bill, []*BillItem, error) {
	bill, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.bills.GetItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return bill, items, nil
}

// ListPatientBills returns the patient's bills, newest first.
func (s *Service) ListPatientBills(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error) {
	return s.bills.ListByPatient(ctx, patientID, limit, offset)
}
