package service

import (
	"context"
	"fmt"

	"github.com/medsupply/indent-backend/internal/indent/domain"
	indentsvc "github.com/medsupply/indent-backend/internal/indent/service"
	"github.com/medsupply/indent-backend/internal/prescription/repository"
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/errors"
	"github.com/medsupply/indent-backend/pkg/logger"
)

// PrescriptionStore persists prescriptions. Create applies the stock
// draw-down and the record insert as one atomic unit.
type PrescriptionStore interface {
	Create(ctx context.Context, p *repository.Prescription, allocations []domain.Allocation) error
	GetByID(ctx context.Context, id, plantID string) (*repository.Prescription, error)
	List(ctx context.Context, plantID string, page, perPage int) ([]*repository.Prescription, int64, error)
}

// PrescriptionService dispenses prescriptions against compounder inventory.
// Each line draws stock FIFO across the earliest-expiring batches; the whole
// dispense either lands or rolls back.
type PrescriptionService struct {
	prescriptions PrescriptionStore
	batches       indentsvc.BatchStore
	audit         *indentsvc.AuditService
	publisher     indentsvc.EventPublisher
	logger        *logger.Logger
}

// NewPrescriptionService creates a new prescription service
func NewPrescriptionService(prescriptions PrescriptionStore, batches indentsvc.BatchStore, audit *indentsvc.AuditService, publisher indentsvc.EventPublisher, log *logger.Logger) *PrescriptionService {
	return &PrescriptionService{
		prescriptions: prescriptions,
		batches:       batches,
		audit:         audit,
		publisher:     publisher,
		logger:        log.WithComponent("prescription_service"),
	}
}

// LineInput is one requested medicine draw.
type LineInput struct {
	MedItemID string
	Quantity  int
}

// DispenseInput carries a prescription to dispense.
type DispenseInput struct {
	PatientName string
	Lines       []LineInput
}

// Dispense allocates every line FIFO over the compounder pool, then applies
// the draw-down and the prescription record as one atomic store write. A
// shortfall on any line rejects the whole prescription before stock moves.
func (s *PrescriptionService) Dispense(ctx context.Context, act actor.Actor, in DispenseInput) (*repository.Prescription, error) {
	if act.Role != actor.RoleDoctor && act.Role != actor.RoleCompounder {
		return nil, errors.PermissionDenied("only doctors and compounders may dispense prescriptions", map[string]string{
			"role": string(act.Role),
		})
	}
	if in.PatientName == "" {
		return nil, errors.Validation(map[string]string{"patient_name": "this field is required"})
	}
	if len(in.Lines) == 0 {
		return nil, errors.Validation(map[string]string{"lines": "at least one line is required"})
	}

	// Earlier lines' allocations are deducted from each fresh pool snapshot
	// so two lines for the same medicine never claim the same stock twice.
	claimed := map[string]int{}
	var allocations []domain.Allocation
	lines := make([]*repository.PrescriptionLine, 0, len(in.Lines))
	for _, line := range in.Lines {
		pool, err := s.batches.ListForMedicine(ctx, line.MedItemID, act.PlantID, domain.TierCompounder)
		if err != nil {
			return nil, err
		}
		for _, b := range pool {
			b.AvailableStock -= claimed[b.BatchID]
		}
		allocs, err := domain.AllocateFIFO(pool, line.Quantity)
		if err != nil {
			return nil, err
		}
		for _, a := range allocs {
			claimed[a.BatchID] += a.Quantity
		}
		allocations = append(allocations, allocs...)
		lines = append(lines, &repository.PrescriptionLine{
			MedItemID: line.MedItemID,
			Quantity:  line.Quantity,
		})
	}

	p := &repository.Prescription{
		PlantID:      act.PlantID,
		PatientName:  in.PatientName,
		PrescribedBy: act.Username,
		Lines:        lines,
	}
	if err := s.prescriptions.Create(ctx, p, allocations); err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(lines))
	for _, line := range lines {
		events = append(events, domain.Event{
			Module:   domain.ModulePrescription,
			Action:   "dispense",
			EntityID: p.PrescriptionID,
			Message:  fmt.Sprintf("dispensed %s x%d for %s", line.MedItemID, line.Quantity, p.PatientName),
			Actor:    act.Username,
		})
		s.publisher.PrescriptionDispensed(ctx, p.PrescriptionID, act.PlantID, line.MedItemID, line.Quantity, act)
	}
	s.audit.Record(ctx, act.PlantID, events)

	return p, nil
}

// Get loads a prescription with its lines.
func (s *PrescriptionService) Get(ctx context.Context, act actor.Actor, id string) (*repository.Prescription, error) {
	return s.prescriptions.GetByID(ctx, id, act.PlantID)
}

// List lists the plant's prescriptions, newest first.
func (s *PrescriptionService) List(ctx context.Context, act actor.Actor, page, perPage int) ([]*repository.Prescription, int64, error) {
	return s.prescriptions.List(ctx, act.PlantID, page, perPage)
}
