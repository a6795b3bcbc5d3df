package casework

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/repository"
)

func newTestService(t *testing.T) (*Service, domain.Repository) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "shrike-casework-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return NewService(repo, nil), repo
}

func seedAlert(t *testing.T, repo domain.Repository, alertID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	tx := &domain.Transaction{
		ID:         "tx-" + alertID,
		CustomerID: "cust-001",
		MerchantID: "merch-001",
		Amount:     4200.00,
		Category:   "R",
		Type:       "PAYMENT",
		Timestamp:  now,
		CreatedAt:  now,
	}
	if err := repo.SaveTransaction(ctx, tx); err != nil {
		t.Fatalf("SaveTransaction failed: %v", err)
	}

	alert := &domain.Alert{
		ID:            alertID,
		TransactionID: tx.ID,
		RiskScore:     85,
		RiskLevel:     "High",
		Status:        domain.AlertPending,
		AssignedQueue: domain.QueueGeneral,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}
}

func TestOpenCase(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedAlert(t, repo, "alert-001")

	c, err := svc.OpenCase(ctx, "alert-001", "analyst-1")
	if err != nil {
		t.Fatalf("OpenCase failed: %v", err)
	}
	if c.Status != domain.CaseOpen {
		t.Errorf("new cases start Open, got %s", c.Status)
	}
	if c.Version != 1 {
		t.Errorf("new cases start at version 1, got %d", c.Version)
	}

	// Escalation marks the alert reviewed
	alert, _ := repo.GetAlert(ctx, "alert-001")
	if alert.Status != domain.AlertReviewed {
		t.Errorf("expected alert Reviewed after escalation, got %s", alert.Status)
	}

	// Escalating a non-pending alert is rejected
	if _, err := svc.OpenCase(ctx, "alert-001", "analyst-1"); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("expected invalid transition re-escalating, got %v", err)
	}
}

func TestCaseLifecycle(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedAlert(t, repo, "alert-001")

	c, err := svc.OpenCase(ctx, "alert-001", "")
	if err != nil {
		t.Fatalf("OpenCase failed: %v", err)
	}

	c, err = svc.TransitionCase(ctx, c.ID, domain.CaseInProgress, c.Version)
	if err != nil {
		t.Fatalf("Open -> In Progress failed: %v", err)
	}
	if c.Version != 2 {
		t.Errorf("expected version 2 after transition, got %d", c.Version)
	}

	c, err = svc.TransitionCase(ctx, c.ID, domain.CaseClosed, c.Version)
	if err != nil {
		t.Fatalf("In Progress -> Closed failed: %v", err)
	}

	// Closed is terminal
	if _, err := svc.TransitionCase(ctx, c.ID, domain.CaseOpen, c.Version); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("expected invalid transition from Closed, got %v", err)
	}
	if _, err := svc.AssignAnalyst(ctx, c.ID, "analyst-2", c.Version); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("expected invalid transition assigning closed case, got %v", err)
	}
	if _, err := svc.AddNote(ctx, c.ID, "analyst-2", "too late"); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("expected invalid transition noting closed case, got %v", err)
	}
}

func TestDirectSARFiledRejected(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedAlert(t, repo, "alert-001")

	c, _ := svc.OpenCase(ctx, "alert-001", "")

	_, err := svc.TransitionCase(ctx, c.ID, domain.CaseSARFiled, c.Version)
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("SAR Filed is only reachable through filing, got %v", err)
	}
}

func TestStaleVersionConflicts(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedAlert(t, repo, "alert-001")

	c, _ := svc.OpenCase(ctx, "alert-001", "")

	if _, err := svc.TransitionCase(ctx, c.ID, domain.CaseInProgress, c.Version); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	// Replaying the original version loses the race
	_, err := svc.TransitionCase(ctx, c.ID, domain.CaseClosed, 1)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Errorf("expected version conflict, got %v", err)
	}
}

func TestAddNote(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedAlert(t, repo, "alert-001")

	c, _ := svc.OpenCase(ctx, "alert-001", "analyst-1")

	if _, err := svc.AddNote(ctx, c.ID, "analyst-1", ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for empty note, got %v", err)
	}

	note, err := svc.AddNote(ctx, c.ID, "analyst-1", "checked device fingerprint")
	if err != nil {
		t.Fatalf("AddNote failed: %v", err)
	}
	if note.CaseID != c.ID {
		t.Errorf("note bound to wrong case: %s", note.CaseID)
	}

	retrieved, _ := repo.GetCase(ctx, c.ID)
	if len(retrieved.Notes) != 1 {
		t.Errorf("expected 1 note, got %d", len(retrieved.Notes))
	}
}

func TestCreateSAR(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedAlert(t, repo, "alert-001")

	c, _ := svc.OpenCase(ctx, "alert-001", "")

	sar, err := svc.CreateSAR(ctx, &SARRequest{
		CaseID:       c.ID,
		CustomerName: "cust-001",
		Amount:       4200.00,
		Description:  "unusual volume",
	})
	if err != nil {
		t.Fatalf("CreateSAR failed: %v", err)
	}
	if sar.Status != domain.SARDraft {
		t.Errorf("filings default to Draft, got %s", sar.Status)
	}
	if !strings.HasPrefix(sar.SARID, "SAR-") || !strings.HasSuffix(sar.SARID, "-001") {
		t.Errorf("unexpected SAR identifier %s", sar.SARID)
	}

	// Second filing gets the next sequence number
	second, err := svc.CreateSAR(ctx, &SARRequest{CaseID: c.ID, Status: domain.SARPending})
	if err != nil {
		t.Fatalf("CreateSAR failed: %v", err)
	}
	if !strings.HasSuffix(second.SARID, "-002") {
		t.Errorf("expected sequence 002, got %s", second.SARID)
	}
	if second.Status != domain.SARPending {
		t.Errorf("expected Pending, got %s", second.Status)
	}

	// Filed is not a valid starting state
	if _, err := svc.CreateSAR(ctx, &SARRequest{CaseID: c.ID, Status: domain.SARFiled}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for Filed start, got %v", err)
	}

	// Missing case
	if _, err := svc.CreateSAR(ctx, &SARRequest{CaseID: "ghost"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSARMonotonicProgression(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedAlert(t, repo, "alert-001")

	c, _ := svc.OpenCase(ctx, "alert-001", "")
	sar, _ := svc.CreateSAR(ctx, &SARRequest{CaseID: c.ID})

	// Draft -> Filed skips Pending
	filed := domain.SARFiled
	_, err := svc.UpdateSAR(ctx, sar.ID, &SARUpdate{Status: &filed, Version: sar.Version})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("expected invalid transition Draft -> Filed, got %v", err)
	}

	// Draft -> Pending
	pending := domain.SARPending
	sar, err = svc.UpdateSAR(ctx, sar.ID, &SARUpdate{Status: &pending, Version: sar.Version})
	if err != nil {
		t.Fatalf("Draft -> Pending failed: %v", err)
	}

	// Pending -> Draft is a regression
	draft := domain.SARDraft
	_, err = svc.UpdateSAR(ctx, sar.ID, &SARUpdate{Status: &draft, Version: sar.Version})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("expected invalid transition Pending -> Draft, got %v", err)
	}
}

func TestFileSAR(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedAlert(t, repo, "alert-001")

	c, _ := svc.OpenCase(ctx, "alert-001", "")
	sar, _ := svc.CreateSAR(ctx, &SARRequest{CaseID: c.ID, Status: domain.SARPending})

	filed, err := svc.FileSAR(ctx, sar.ID, sar.Version)
	if err != nil {
		t.Fatalf("FileSAR failed: %v", err)
	}
	if filed.Status != domain.SARFiled {
		t.Errorf("expected Filed, got %s", filed.Status)
	}
	if filed.FilingDate.IsZero() {
		t.Error("filing date must be set")
	}

	// Filing flips the parent case
	parent, _ := repo.GetCase(ctx, c.ID)
	if parent.Status != domain.CaseSARFiled {
		t.Errorf("expected parent case SAR Filed, got %s", parent.Status)
	}

	// Filed is terminal
	if _, err := svc.FileSAR(ctx, sar.ID, filed.Version); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("expected invalid transition refiling, got %v", err)
	}
}

func TestFileSARRequiresPending(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedAlert(t, repo, "alert-001")

	c, _ := svc.OpenCase(ctx, "alert-001", "")
	sar, _ := svc.CreateSAR(ctx, &SARRequest{CaseID: c.ID}) // Draft

	_, err := svc.FileSAR(ctx, sar.ID, sar.Version)
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("draft filings cannot be filed directly, got %v", err)
	}
}

func TestUpdateSARThroughFiling(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedAlert(t, repo, "alert-001")

	c, _ := svc.OpenCase(ctx, "alert-001", "")
	sar, _ := svc.CreateSAR(ctx, &SARRequest{CaseID: c.ID, Status: domain.SARPending})

	// Pending -> Filed via UpdateSAR goes through the filing path
	filed := domain.SARFiled
	updated, err := svc.UpdateSAR(ctx, sar.ID, &SARUpdate{Status: &filed, Version: sar.Version})
	if err != nil {
		t.Fatalf("UpdateSAR to Filed failed: %v", err)
	}
	if updated.FilingDate.IsZero() {
		t.Error("filing through update must set filing date")
	}

	parent, _ := repo.GetCase(ctx, c.ID)
	if parent.Status != domain.CaseSARFiled {
		t.Errorf("expected parent case SAR Filed, got %s", parent.Status)
	}
}

func TestUpdateSARFilingKeepsFieldEdits(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	seedAlert(t, repo, "alert-001")

	c, _ := svc.OpenCase(ctx, "alert-001", "")
	sar, _ := svc.CreateSAR(ctx, &SARRequest{
		CaseID:       c.ID,
		CustomerName: "cust-001",
		Amount:       4200.00,
		Description:  "initial narrative",
		Status:       domain.SARPending,
	})

	// Edits arriving in the same update as the Filed transition must land
	// with the filing, not be dropped.
	filed := domain.SARFiled
	amount := 9800.00
	desc := "final narrative with wire details"
	updated, err := svc.UpdateSAR(ctx, sar.ID, &SARUpdate{
		Amount:      &amount,
		Description: &desc,
		Status:      &filed,
		Version:     sar.Version,
	})
	if err != nil {
		t.Fatalf("UpdateSAR to Filed failed: %v", err)
	}
	if updated.Status != domain.SARFiled {
		t.Errorf("expected Filed, got %s", updated.Status)
	}
	if updated.Amount != amount {
		t.Errorf("amount edit dropped: expected %.2f, got %.2f", amount, updated.Amount)
	}
	if updated.Description != desc {
		t.Errorf("description edit dropped: got %q", updated.Description)
	}

	persisted, err := repo.GetSAR(ctx, sar.ID)
	if err != nil {
		t.Fatalf("GetSAR failed: %v", err)
	}
	if persisted.Amount != amount || persisted.Description != desc {
		t.Errorf("persisted filing lost edits: amount %.2f, description %q",
			persisted.Amount, persisted.Description)
	}
	if persisted.Status != domain.SARFiled || persisted.FilingDate.IsZero() {
		t.Errorf("expected persisted Filed with filing date, got %s", persisted.Status)
	}

	parent, _ := repo.GetCase(ctx, c.ID)
	if parent.Status != domain.CaseSARFiled {
		t.Errorf("expected parent case SAR Filed, got %s", parent.Status)
	}
}
