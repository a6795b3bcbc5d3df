// Package casework manages investigation cases and SAR filings, enforcing
// their state machines and write serialization.
package casework

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/shrike/internal/domain"
)

// caseTransitions are the allowed analyst-driven case moves. Closed and
// SAR Filed are terminal; SAR Filed is only reachable through FileSAR.
var caseTransitions = map[domain.CaseStatus][]domain.CaseStatus{
	domain.CaseOpen:       {domain.CaseInProgress, domain.CaseClosed},
	domain.CaseInProgress: {domain.CaseClosed},
}

// sarTransitions enforce the monotonic filing progression.
var sarTransitions = map[domain.SARStatus][]domain.SARStatus{
	domain.SARDraft:   {domain.SARPending},
	domain.SARPending: {domain.SARFiled},
}

// Service coordinates case and SAR workflows over the repository.
type Service struct {
	repo domain.Repository
	bus  domain.EventBus
}

// NewService creates a casework service. bus may be nil.
func NewService(repo domain.Repository, bus domain.EventBus) *Service {
	return &Service{repo: repo, bus: bus}
}

// OpenCase escalates an alert into a new investigation case and marks the
// alert reviewed. Only pending alerts can be escalated.
func (s *Service) OpenCase(ctx context.Context, alertID, analystID string) (*domain.Case, error) {
	alert, err := s.repo.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.Status != domain.AlertPending {
		return nil, fmt.Errorf("%w: alert %s is %s, only pending alerts can be escalated",
			domain.ErrInvalidStateTransition, alertID, alert.Status)
	}

	now := time.Now().UTC()
	c := &domain.Case{
		ID:        uuid.New().String(),
		AlertID:   alertID,
		Status:    domain.CaseOpen,
		AnalystID: analystID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.SaveCase(ctx, c); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAlertStatus(ctx, alertID, domain.AlertReviewed); err != nil {
		return nil, err
	}

	s.publishCaseUpdated(ctx, c)
	return c, nil
}

// TransitionCase moves a case to a new status. version is the version the
// caller read; a mismatch fails with a version conflict.
func (s *Service) TransitionCase(ctx context.Context, caseID string, to domain.CaseStatus, version int) (*domain.Case, error) {
	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if to == domain.CaseSARFiled {
		return nil, fmt.Errorf("%w: cases reach %q only through SAR filing",
			domain.ErrInvalidStateTransition, domain.CaseSARFiled)
	}
	if !allowedCaseMove(c.Status, to) {
		return nil, fmt.Errorf("%w: case cannot move from %q to %q",
			domain.ErrInvalidStateTransition, c.Status, to)
	}

	c.Status = to
	c.Version = version
	c.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateCase(ctx, c); err != nil {
		return nil, err
	}

	s.publishCaseUpdated(ctx, c)
	return c, nil
}

// AssignAnalyst sets the owning analyst without changing case status.
func (s *Service) AssignAnalyst(ctx context.Context, caseID, analystID string, version int) (*domain.Case, error) {
	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status == domain.CaseClosed || c.Status == domain.CaseSARFiled {
		return nil, fmt.Errorf("%w: case %s is %s", domain.ErrInvalidStateTransition, caseID, c.Status)
	}

	c.AnalystID = analystID
	c.Version = version
	c.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateCase(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddNote appends an analyst note to a case. Notes are append-only and
// allowed in any non-terminal state.
func (s *Service) AddNote(ctx context.Context, caseID, analystID, text string) (*domain.CaseNote, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: note text is required", domain.ErrValidation)
	}

	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status == domain.CaseClosed || c.Status == domain.CaseSARFiled {
		return nil, fmt.Errorf("%w: case %s is %s", domain.ErrInvalidStateTransition, caseID, c.Status)
	}

	note := &domain.CaseNote{
		ID:        uuid.New().String(),
		CaseID:    caseID,
		AnalystID: analystID,
		Note:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.AddCaseNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// SARRequest is the creation payload for a new filing.
type SARRequest struct {
	CaseID       string
	CustomerName string
	Amount       float64
	Description  string

	// Status may be Draft or Pending; empty defaults to Draft.
	Status domain.SARStatus
}

// CreateSAR creates a filing against an active case. The human-readable
// identifier is sequential within the filing year.
func (s *Service) CreateSAR(ctx context.Context, req *SARRequest) (*domain.SAR, error) {
	if req.CaseID == "" {
		return nil, fmt.Errorf("%w: case_id is required", domain.ErrValidation)
	}
	status := req.Status
	if status == "" {
		status = domain.SARDraft
	}
	if status != domain.SARDraft && status != domain.SARPending {
		return nil, fmt.Errorf("%w: new filings start as %q or %q",
			domain.ErrValidation, domain.SARDraft, domain.SARPending)
	}

	c, err := s.repo.GetCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Status == domain.CaseClosed || c.Status == domain.CaseSARFiled {
		return nil, fmt.Errorf("%w: case %s is %s", domain.ErrInvalidStateTransition, c.ID, c.Status)
	}

	seq, err := s.repo.CountSARs(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sar := &domain.SAR{
		ID:           uuid.New().String(),
		SARID:        fmt.Sprintf("SAR-%d-%03d", now.Year(), seq+1),
		CaseID:       req.CaseID,
		CustomerName: req.CustomerName,
		Amount:       req.Amount,
		Description:  req.Description,
		Status:       status,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.SaveSAR(ctx, sar); err != nil {
		return nil, err
	}
	return sar, nil
}

// SARUpdate carries mutable filing fields. Nil pointers leave the field
// unchanged.
type SARUpdate struct {
	CustomerName *string
	Amount       *float64
	Description  *string
	Status       *domain.SARStatus
	Version      int
}

// UpdateSAR applies edits to a filing. Status changes must follow the
// monotonic progression; moving to Filed goes through the filing path so
// the parent case is updated too.
func (s *Service) UpdateSAR(ctx context.Context, id string, upd *SARUpdate) (*domain.SAR, error) {
	sar, err := s.repo.GetSAR(ctx, id)
	if err != nil {
		return nil, err
	}

	toFiled := false
	if upd.Status != nil && *upd.Status != sar.Status {
		if !allowedSARMove(sar.Status, *upd.Status) {
			return nil, fmt.Errorf("%w: filing cannot move from %q to %q",
				domain.ErrInvalidStateTransition, sar.Status, *upd.Status)
		}
		if *upd.Status == domain.SARFiled {
			toFiled = true
		} else {
			sar.Status = *upd.Status
		}
	}

	if upd.CustomerName != nil {
		sar.CustomerName = *upd.CustomerName
	}
	if upd.Amount != nil {
		sar.Amount = *upd.Amount
	}
	if upd.Description != nil {
		sar.Description = *upd.Description
	}

	// Field edits and the filing land in one write.
	if toFiled {
		return s.file(ctx, sar, upd.Version)
	}

	sar.Version = upd.Version
	sar.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateSAR(ctx, sar); err != nil {
		return nil, err
	}
	return sar, nil
}

// FileSAR finalizes a pending filing: sets the filing date, marks it Filed,
// and moves the parent case to SAR Filed.
func (s *Service) FileSAR(ctx context.Context, id string, version int) (*domain.SAR, error) {
	sar, err := s.repo.GetSAR(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.file(ctx, sar, version)
}

// file finalizes an already-fetched filing, preserving any edits the caller
// applied to it.
func (s *Service) file(ctx context.Context, sar *domain.SAR, version int) (*domain.SAR, error) {
	if sar.Status != domain.SARPending {
		return nil, fmt.Errorf("%w: only pending filings can be filed, %s is %q",
			domain.ErrInvalidStateTransition, sar.SARID, sar.Status)
	}

	now := time.Now().UTC()
	sar.Status = domain.SARFiled
	sar.FilingDate = now
	sar.Version = version
	sar.UpdatedAt = now
	if err := s.repo.UpdateSAR(ctx, sar); err != nil {
		return nil, err
	}

	c, err := s.repo.GetCase(ctx, sar.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CaseSARFiled {
		c.Status = domain.CaseSARFiled
		c.UpdatedAt = now
		if err := s.repo.UpdateCase(ctx, c); err != nil {
			return nil, err
		}
		s.publishCaseUpdated(ctx, c)
	}

	if s.bus != nil {
		payload := []byte(fmt.Sprintf(`{"sarId":%q,"caseId":%q,"filingDate":%q}`,
			sar.SARID, sar.CaseID, now.Format(time.RFC3339)))
		if err := s.bus.Publish(ctx, domain.TopicSARFiled, payload); err != nil {
			slog.Warn("failed to publish sar filed event", "sar_id", sar.SARID, "error", err)
		}
	}

	return sar, nil
}

func (s *Service) publishCaseUpdated(ctx context.Context, c *domain.Case) {
	if s.bus == nil {
		return
	}
	payload := []byte(fmt.Sprintf(`{"caseId":%q,"status":%q}`, c.ID, c.Status))
	if err := s.bus.Publish(ctx, domain.TopicCaseUpdated, payload); err != nil {
		slog.Warn("failed to publish case updated event", "case_id", c.ID, "error", err)
	}
}

func allowedCaseMove(from, to domain.CaseStatus) bool {
	for _, next := range caseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func allowedSARMove(from, to domain.SARStatus) bool {
	for _, next := range sarTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
