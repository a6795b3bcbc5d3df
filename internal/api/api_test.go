package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/opensource-finance/shrike/internal/alerting"
	"github.com/opensource-finance/shrike/internal/cache"
	"github.com/opensource-finance/shrike/internal/casework"
	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/model"
	"github.com/opensource-finance/shrike/internal/pipeline"
	"github.com/opensource-finance/shrike/internal/repository"
	"github.com/opensource-finance/shrike/internal/rules"
	"github.com/opensource-finance/shrike/internal/scoring"
	"github.com/opensource-finance/shrike/internal/velocity"
)

// createTestServer wires a full server over a temp SQLite database. Scoring
// runs in rules mode so results are deterministic: only the loaded
// high-amount rule can push a score past the alert threshold.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "api-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
		os.Remove(tmpPath)
	})

	lruCache := cache.NewLRUCache(100)
	t.Cleanup(func() { lruCache.Close() })

	evaluator := rules.NewEvaluator()
	seed := &domain.Rule{
		ID:          "high-amount",
		Name:        "High Amount",
		Conditions:  &domain.Condition{Field: "amount", Operator: ">", Value: 5000.0},
		ScoreImpact: 90,
		Action:      "Review",
		Priority:    10,
		IsActive:    true,
	}
	if err := repo.SaveRule(context.Background(), seed); err != nil {
		t.Fatalf("failed to seed rule: %v", err)
	}
	evaluator.LoadRules([]*domain.Rule{seed})

	gen, err := alerting.NewGenerator(alerting.DefaultRoutingRules(), nil)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	scorer := model.NewScorer("")
	vel := velocity.NewService(repo, lruCache)
	processor := pipeline.NewProcessor(evaluator, scorer, vel, gen, repo)
	configs := scoring.NewConfigStore(repo, lruCache)

	cfg := domain.DefaultScoringConfig()
	cfg.Mode = domain.ModeRules
	if err := configs.Save(context.Background(), cfg); err != nil {
		t.Fatalf("failed to save scoring config: %v", err)
	}

	return NewServer(domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}, Deps{
		Repo:      repo,
		Cache:     lruCache,
		Evaluator: evaluator,
		Scorer:    scorer,
		Processor: processor,
		Configs:   configs,
		Casework:  casework.NewService(repo, nil),
		Version:   "test-v1",
	})
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
}

func ingestTx(t *testing.T, server *Server, amount float64) map[string]json.RawMessage {
	t.Helper()

	rr := doJSON(t, server, http.MethodPost, "/transactions", domain.TransactionRequest{
		CustomerID: "cust-001",
		MerchantID: "merch-001",
		Amount:     amount,
		Category:   "R",
		Type:       "PAYMENT",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]json.RawMessage
	decode(t, rr, &resp)
	return resp
}

func TestIngestTransaction(t *testing.T) {
	server := createTestServer(t)

	t.Run("LowRiskScored", func(t *testing.T) {
		resp := ingestTx(t, server, 100.0)

		var result domain.ScoreResult
		if err := json.Unmarshal(resp["result"], &result); err != nil {
			t.Fatalf("failed to parse result: %v", err)
		}

		if result.FinalScore != 0 {
			t.Errorf("no rule matches: expected score 0, got %d", result.FinalScore)
		}
		if result.RiskLevel != "Very Low" {
			t.Errorf("expected Very Low, got %s", result.RiskLevel)
		}
		if _, ok := resp["alert"]; ok {
			t.Error("low-risk transaction must not alert")
		}
	})

	t.Run("HighRiskCreatesAlert", func(t *testing.T) {
		resp := ingestTx(t, server, 9000.0)

		var result domain.ScoreResult
		json.Unmarshal(resp["result"], &result)
		if result.FinalScore != 90 {
			t.Errorf("expected score 90, got %d", result.FinalScore)
		}

		raw, ok := resp["alert"]
		if !ok {
			t.Fatal("expected alert in response")
		}
		var alert domain.Alert
		if err := json.Unmarshal(raw, &alert); err != nil {
			t.Fatalf("failed to parse alert: %v", err)
		}
		if alert.Status != domain.AlertPending {
			t.Errorf("new alerts start Pending, got %s", alert.Status)
		}
		if alert.AssignedQueue == "" {
			t.Error("expected a queue assignment")
		}
	})

	t.Run("MissingCustomerID", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/transactions", domain.TransactionRequest{
			Amount: 100, Category: "R", Type: "PAYMENT",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/transactions", domain.TransactionRequest{
			CustomerID: "cust-001", Amount: 0, Category: "R", Type: "PAYMENT",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString("not-json"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestGetTransaction(t *testing.T) {
	server := createTestServer(t)

	resp := ingestTx(t, server, 100.0)
	var tx domain.Transaction
	json.Unmarshal(resp["transaction"], &tx)

	rr := doJSON(t, server, http.MethodGet, "/transactions/"+tx.ID, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	rr = doJSON(t, server, http.MethodGet, "/transactions/nonexistent", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}

	var errResp map[string]string
	decode(t, rr, &errResp)
	if errResp["kind"] != "not_found" {
		t.Errorf("expected kind not_found, got %s", errResp["kind"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t)

	rr := doJSON(t, server, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var health map[string]string
	decode(t, rr, &health)
	if health["status"] != "healthy" {
		t.Errorf("expected healthy, got %s", health["status"])
	}
	if health["version"] != "test-v1" {
		t.Errorf("expected version test-v1, got %s", health["version"])
	}

	rr = doJSON(t, server, http.MethodGet, "/ready", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestConfigEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("Get", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/config", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var cfg domain.ScoringConfig
		decode(t, rr, &cfg)
		if cfg.Mode != domain.ModeRules {
			t.Errorf("expected rules mode, got %s", cfg.Mode)
		}
		if len(cfg.RiskThresholds) != 5 {
			t.Errorf("expected 5 risk bands, got %d", len(cfg.RiskThresholds))
		}
	})

	t.Run("UpdateValid", func(t *testing.T) {
		cfg := domain.DefaultScoringConfig()
		cfg.Mode = domain.ModeRules
		cfg.AlertThreshold = 25

		rr := doJSON(t, server, http.MethodPut, "/config", cfg)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodGet, "/config", nil)
		var updated domain.ScoringConfig
		decode(t, rr, &updated)
		if updated.AlertThreshold != 25 {
			t.Errorf("expected threshold 25, got %d", updated.AlertThreshold)
		}
	})

	t.Run("RejectsBandGap", func(t *testing.T) {
		cfg := domain.DefaultScoringConfig()
		cfg.RiskThresholds[1].Min = 15 // gap between 10 and 15

		rr := doJSON(t, server, http.MethodPut, "/config", cfg)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}

		var errResp map[string]string
		decode(t, rr, &errResp)
		if errResp["kind"] != "unconfigured_thresholds" {
			t.Errorf("expected kind unconfigured_thresholds, got %s", errResp["kind"])
		}
	})
}

func TestRulesEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("List", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/rules", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Rules []*domain.Rule `json:"rules"`
			Count int            `json:"count"`
		}
		decode(t, rr, &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 seeded rule, got %d", resp.Count)
		}
	})

	t.Run("CreateAndGet", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rules", &domain.Rule{
			Name:        "Velocity Spike",
			Conditions:  &domain.Condition{Field: "velocity_count", Operator: ">=", Value: 5.0},
			ScoreImpact: 30,
			Action:      "Review",
			Priority:    20,
			IsActive:    true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var created domain.Rule
		decode(t, rr, &created)
		if created.ID == "" {
			t.Fatal("expected generated rule ID")
		}

		rr = doJSON(t, server, http.MethodGet, "/rules/"+created.ID, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("RejectsUnknownField", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rules", &domain.Rule{
			Name:        "Bad Field",
			Conditions:  &domain.Condition{Field: "nonsense", Operator: ">", Value: 1.0},
			ScoreImpact: 10,
			Action:      "Review",
			IsActive:    true,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rules", &domain.Rule{
			Name:        "Short Lived",
			Conditions:  &domain.Condition{Field: "amount", Operator: ">", Value: 1.0},
			ScoreImpact: 5,
			Action:      "Review",
			IsActive:    true,
		})
		var created domain.Rule
		decode(t, rr, &created)

		rr = doJSON(t, server, http.MethodDelete, "/rules/"+created.ID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		rr = doJSON(t, server, http.MethodGet, "/rules/"+created.ID, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 after delete, got %d", rr.Code)
		}
	})
}

// escalateAlert ingests a high-risk transaction and opens a case from the
// resulting alert.
func escalateAlert(t *testing.T, server *Server) (domain.Alert, domain.Case) {
	t.Helper()

	resp := ingestTx(t, server, 9000.0)
	var alert domain.Alert
	if err := json.Unmarshal(resp["alert"], &alert); err != nil {
		t.Fatalf("expected alert: %v", err)
	}

	rr := doJSON(t, server, http.MethodPost, "/alerts/"+alert.ID+"/action", AlertActionRequest{
		Action:    "Escalate",
		AnalystID: "analyst-001",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var actionResp struct {
		Case domain.Case `json:"case"`
	}
	decode(t, rr, &actionResp)
	return alert, actionResp.Case
}

func TestAlertWorkflow(t *testing.T) {
	server := createTestServer(t)

	alert, c := escalateAlert(t, server)

	t.Run("EscalateOpensCase", func(t *testing.T) {
		if c.Status != domain.CaseOpen {
			t.Errorf("expected Open case, got %s", c.Status)
		}
		if c.AlertID != alert.ID {
			t.Errorf("case references wrong alert: %s", c.AlertID)
		}
		if c.Version != 1 {
			t.Errorf("expected version 1, got %d", c.Version)
		}
	})

	t.Run("EscalateMarksAlertReviewed", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/alerts/"+alert.ID, nil)
		var got domain.Alert
		decode(t, rr, &got)
		if got.Status != domain.AlertReviewed {
			t.Errorf("escalated alert should be Reviewed, got %s", got.Status)
		}
	})

	t.Run("ReEscalateRejected", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/alerts/"+alert.ID+"/action", AlertActionRequest{
			Action: "Escalate",
		})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("UnknownAction", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/alerts/"+alert.ID+"/action", AlertActionRequest{
			Action: "Explode",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ListFiltersByStatus", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/alerts?status=Reviewed", nil)
		var resp struct {
			Count int `json:"count"`
		}
		decode(t, rr, &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 reviewed alert, got %d", resp.Count)
		}
	})
}

func TestCaseWorkflow(t *testing.T) {
	server := createTestServer(t)

	_, c := escalateAlert(t, server)

	t.Run("Transition", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPut, "/cases/"+c.ID, UpdateCaseRequest{
			Status:  domain.CaseInProgress,
			Version: 1,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var updated domain.Case
		decode(t, rr, &updated)
		if updated.Version != 2 {
			t.Errorf("expected version 2, got %d", updated.Version)
		}
	})

	t.Run("StaleVersionConflicts", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPut, "/cases/"+c.ID, UpdateCaseRequest{
			Status:  domain.CaseClosed,
			Version: 1, // stale
		})
		if rr.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
		}

		var errResp map[string]string
		decode(t, rr, &errResp)
		if errResp["kind"] != "version_conflict" {
			t.Errorf("expected kind version_conflict, got %s", errResp["kind"])
		}
	})

	t.Run("DirectSARFiledRejected", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPut, "/cases/"+c.ID, UpdateCaseRequest{
			Status:  domain.CaseSARFiled,
			Version: 2,
		})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("AddNote", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/cases/notes", CaseNoteRequest{
			CaseID:    c.ID,
			AnalystID: "analyst-001",
			Note:      "customer contacted",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("EmptyNoteRejected", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/cases/notes", CaseNoteRequest{
			CaseID: c.ID,
			Note:   "",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Assign", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/cases/"+c.ID+"/assign", AssignCaseRequest{
			AnalystID: "analyst-002",
			Version:   2,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestSARWorkflow(t *testing.T) {
	server := createTestServer(t)

	_, c := escalateAlert(t, server)

	var sar domain.SAR

	t.Run("CreateDefaultsFromCase", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/sars", CreateSARRequest{
			CaseID:      c.ID,
			Description: "structured transfers",
			Status:      domain.SARPending,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		decode(t, rr, &sar)
		if sar.Status != domain.SARPending {
			t.Errorf("expected Pending, got %s", sar.Status)
		}
		if sar.Amount != 9000.0 {
			t.Errorf("amount should default from the case transaction, got %.2f", sar.Amount)
		}
		if sar.SARID == "" {
			t.Error("expected generated SAR ID")
		}
	})

	t.Run("GetBySARID", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/sars/"+sar.SARID, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("File", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/sars/"+sar.ID+"/file", FileSARRequest{Version: sar.Version})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var filed domain.SAR
		decode(t, rr, &filed)
		if filed.Status != domain.SARFiled {
			t.Errorf("expected Filed, got %s", filed.Status)
		}
		if filed.FilingDate.IsZero() {
			t.Error("expected filing date to be set")
		}
	})

	t.Run("FilingClosesCase", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/cases/"+c.ID, nil)
		var got domain.Case
		decode(t, rr, &got)
		if got.Status != domain.CaseSARFiled {
			t.Errorf("expected SAR Filed case, got %s", got.Status)
		}
	})

	t.Run("RefilingRejected", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/sars/"+sar.ID+"/file", FileSARRequest{Version: sar.Version + 1})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("Stats", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/sars/stats", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var stats domain.SARStats
		decode(t, rr, &stats)
		if stats.SuccessfullyFiled != 1 {
			t.Errorf("expected 1 filed SAR, got %d", stats.SuccessfullyFiled)
		}
	})

	t.Run("ExportCSV", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/sars/export/batch", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
			t.Errorf("expected text/csv, got %s", ct)
		}
		if !bytes.Contains(rr.Body.Bytes(), []byte(sar.SARID)) {
			t.Error("expected SAR ID in CSV export")
		}
	})
}

func TestDashboardEndpoints(t *testing.T) {
	server := createTestServer(t)

	ingestTx(t, server, 100.0)
	ingestTx(t, server, 9000.0)

	t.Run("KPIs", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/dashboard/kpis", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var kpis map[string]float64
		decode(t, rr, &kpis)

		// 1 alert over 2 transactions
		if kpis["detection_rate"] != 50 {
			t.Errorf("expected detection_rate 50, got %.2f", kpis["detection_rate"])
		}
		if kpis["approval_rate"] != 50 {
			t.Errorf("expected approval_rate 50, got %.2f", kpis["approval_rate"])
		}
	})

	t.Run("AlertsOverTime", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/dashboard/alerts-over-time?days=7", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var trend []domain.AlertTrendPoint
		decode(t, rr, &trend)
		if len(trend) != 1 {
			t.Fatalf("expected 1 trend point, got %d", len(trend))
		}
		if trend[0].Alerts != 1 {
			t.Errorf("expected 1 alert today, got %d", trend[0].Alerts)
		}
	})
}

func TestReportEndpoints(t *testing.T) {
	server := createTestServer(t)

	ingestTx(t, server, 9000.0)

	t.Run("Templates", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/reports/templates", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Templates []ReportTemplate `json:"templates"`
		}
		decode(t, rr, &resp)
		if len(resp.Templates) == 0 {
			t.Error("expected report templates")
		}
	})

	t.Run("Generate", func(t *testing.T) {
		today := "2026-01-01"
		rr := doJSON(t, server, http.MethodPost, "/reports/generate", GenerateReportRequest{
			StartDate:  today,
			EndDate:    "2099-12-31",
			ReportType: "fraud-summary",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var report map[string]any
		decode(t, rr, &report)
		if report["total_alerts"] != float64(1) {
			t.Errorf("expected 1 alert in report, got %v", report["total_alerts"])
		}
	})

	t.Run("GenerateRejectsBadDates", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/reports/generate", GenerateReportRequest{
			StartDate: "not-a-date",
			EndDate:   "2026-01-31",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ExportJSON", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/reports/export?format=json", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestAnalysisEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("ResultsEmpty", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/analysis/results", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		decode(t, rr, &resp)
		if resp["status"] != "training" {
			t.Errorf("no stored results: expected training status, got %s", resp["status"])
		}
	})

	t.Run("TrendsEmpty", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/analysis/trends", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 with no alerts, got %d", rr.Code)
		}
	})
}
