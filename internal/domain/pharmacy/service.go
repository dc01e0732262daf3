package pharmacy

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/audit"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/websocket"
)

type Service struct {
	medicines     MedicineRepository
	prescriptions PrescriptionRepository
	issues        IssueRepository
	auditor       audit.Recorder
	inTx          db.TxRunner
	events        websocket.EventPublisher
	logger        zerolog.Logger
}

func NewService(medicines MedicineRepository, prescriptions PrescriptionRepository, issues IssueRepository, auditor audit.Recorder, inTx db.TxRunner, events websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		medicines:     medicines,
		prescriptions: prescriptions,
		issues:        issues,
		auditor:       auditor,
		inTx:          inTx,
		events:        events,
		logger:        logger,
	}
}

// IssueMedicine dispenses quantity units against a prescription item. The
// request is checked against a locked snapshot of the item and its medicine:
// it may not exceed what the prescription still allows, and it may not take
// stock below zero. The issue row, the stock decrement, and the audit entry
// land in one transaction.
func (s *Service) IssueMedicine(ctx context.Context, in DispenseInput, chemistID uuid.UUID) (*MedicineIssue, error) {
	if in.PrescriptionItemID == uuid.Nil {
		return nil, &ValidationError{Field: "prescription_item_id"}
	}
	if in.PatientID == uuid.Nil {
		return nil, &ValidationError{Field: "patient_id"}
	}
	if in.IssuedQuantity == nil {
		return nil, &ValidationError{Field: "issued_quantity"}
	}
	qty := *in.IssuedQuantity

	var issue *MedicineIssue
	err := s.inTx(ctx, func(ctx context.Context) error {
		check, err := s.prescriptions.ItemForDispense(ctx, in.PrescriptionItemID)
		if err != nil {
			return err
		}

		remaining := check.Remaining()
		if qty <= 0 || qty > remaining {
			return &InvalidQuantityError{Requested: qty, Remaining: remaining}
		}
		if check.StockQuantity < qty {
			return ErrInsufficientStock
		}

		issue = &MedicineIssue{
			PrescriptionItemID: in.PrescriptionItemID,
			PatientID:          in.PatientID,
			ChemistID:          chemistID,
			IssuedQuantity:     qty,
		}
		if err := s.issues.Create(ctx, issue); err != nil {
			return err
		}
		if err := s.medicines.DecrementStock(ctx, check.MedicineID, qty); err != nil {
			return err
		}

		return s.auditor.Record(ctx, audit.Entry{
			ActorID:    chemistID,
			EntityType: "medicine_issues",
			EntityID:   issue.ID,
			Meta: audit.MedicineDispensed{
				IssueID:            issue.ID,
				PrescriptionItemID: in.PrescriptionItemID,
				MedicineID:         check.MedicineID,
				Quantity:           qty,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishDispensed(ctx, issue)
	return issue, nil
}

// publishDispensed emits prescription.dispensed after commit, best-effort.
func (s *Service) publishDispensed(ctx context.Context, issue *MedicineIssue) {
	event, err := websocket.NewEvent(websocket.EventPrescriptionDispensed, websocket.TopicPrescriptions, issue)
	if err == nil {
		err = s.events.Publish(ctx, event)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("issue_id", issue.ID.String()).Msg("publish prescription.dispensed failed")
	}
}

func (s *Service) GetMedicine(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return s.medicines.GetByID(ctx, id)
}

func (s *Service) ListMedicines(ctx context.Context, limit, offset int) ([]*Medicine, int, error) {
	return s.medicines.List(ctx, limit, offset)
}

// ListIssues returns every dispensing act against a prescription item,
// oldest first.
func (s *Service) ListIssues(ctx context.Context, itemID uuid.UUID) ([]*MedicineIssue, error) {
	return s.issues.ListByItem(ctx, itemID)
}
