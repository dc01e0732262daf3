package payment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/audit"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/websocket"

	"github.com/google/uuid"
)

type Service struct {
	payments PaymentRepository
	ledger   LedgerRepository
	bills    BillRepository
	auditor  audit.Recorder
	inTx     db.TxRunner
	events   websocket.EventPublisher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(payments PaymentRepository, ledger LedgerRepository, bills BillRepository, auditor audit.Recorder, inTx db.TxRunner, events websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		payments: payments,
		ledger:   ledger,
		bills:    bills,
		auditor:  auditor,
		inTx:     inTx,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordPayment records a successful payment against a bill, appends the
// matching CREDIT entry to the wallet ledger, and marks the bill PAID when
// this single payment covers the whole total. Repeat calls with the same
// input each record a new payment and a new credit; the engine does not
// deduplicate. Everything becomes visible together or not at all.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (*PaymentResult, error) {
	if in.BillID == uuid.Nil {
		return nil, &ValidationError{Field: "bill_id"}
	}
	if in.AmountCents <= 0 {
		return nil, &ValidationError{Field: "amount_cents"}
	}
	if in.Method == "" {
		return nil, &ValidationError{Field: "method"}
	}
	if in.PayerID == uuid.Nil {
		return nil, &ValidationError{Field: "payer_id"}
	}

	var result *PaymentResult
	err := s.inTx(ctx, func(ctx context.Context) error {
		total, err := s.bills.TotalCents(ctx, in.BillID)
		if err != nil {
			return err
		}

		p := &Payment{
			BillID:      in.BillID,
			PayerID:     in.PayerID,
			AmountCents: in.AmountCents,
			Method:      in.Method,
			Status:      StatusSuccess,
			PaidAt:      s.now(),
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return err
		}

		prev, err := s.ledger.LastBalanceForUpdate(ctx)
		if err != nil {
			return err
		}
		entry := &LedgerEntry{
			BillID:            &p.BillID,
			PaymentID:         &p.ID,
			Direction:         DirectionCredit,
			AmountCents:       in.AmountCents,
			BalanceAfterCents: NextBalance(prev, DirectionCredit, in.AmountCents),
		}
		if err := s.ledger.Append(ctx, entry); err != nil {
			return err
		}

		// A bill flips to PAID only when one payment covers the whole
		// total; smaller payments leave the status untouched.
		paid := total > 0 && in.AmountCents >= total
		if paid {
			if err := s.bills.MarkPaid(ctx, in.BillID); err != nil {
				return err
			}
		}

		if err := s.auditor.Record(ctx, audit.Entry{
			ActorID:    in.PayerID,
			EntityType: "payments",
			EntityID:   p.ID,
			Meta: audit.PaymentRecorded{
				PaymentID:   p.ID,
				BillID:      in.BillID,
				AmountCents: in.AmountCents,
				Method:      in.Method,
			},
		}); err != nil {
			return err
		}

		result = &PaymentResult{
			PaymentID:   p.ID,
			BillID:      in.BillID,
			AmountCents: in.AmountCents,
			BillPaid:    paid,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishCompleted(ctx, result)
	return result, nil
}

// publishCompleted emits payment.completed after commit, best-effort.
func (s *Service) publishCompleted(ctx context.Context, result *PaymentResult) {
	event, err := websocket.NewEvent(websocket.EventPaymentCompleted, websocket.TopicPayments, result)
	if err == nil {
		err = s.events.Publish(ctx, event)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", result.PaymentID.String()).Msg("publish payment.completed failed")
	}
}

// WalletBalance returns the balance after the newest ledger entry.
func (s *Service) WalletBalance(ctx context.Context) (int64, error) {
	return s.ledger.CurrentBalance(ctx)
}

// ListLedger returns ledger entries, newest first.
func (s *Service) ListLedger(ctx context.Context, limit, offset int) ([]*LedgerEntry, int, error) {
	return s.ledger.List(ctx, limit, offset)
}
