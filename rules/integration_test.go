//go:build integration
// +build integration

package rules_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/badgekit/badgerules/rules"
	"github.com/badgekit/badgerules/ruletree"

	_ "github.com/lib/pq"
)

// setupTestDB creates a PostgreSQL container and returns a connection
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "badgerules_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithStartupTimeout(60 * time.Second),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=badgerules_test sslmode=disable", host, port.Port())

	// Wait for connection to be available
	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_initial_schema.up.sql"))
	if err != nil {
		// Try without the ../ prefix
		migrationSQL, err = os.ReadFile(filepath.Join("migrations", "000001_initial_schema.up.sql"))
		if err != nil {
			t.Fatalf("Failed to read migration file: %v", err)
		}
	}

	_, err = db.Exec(string(migrationSQL))
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgresContainer.Terminate(ctx)
	}

	return db, cleanup
}

func testRule(code string) *rules.Rule {
	return &rules.Rule{
		ID:        uuid.New().String(),
		RuleCode:  code,
		Name:      "rule " + code,
		EventType: "purchase",
		Tree: &ruletree.Group{Operator: ruletree.LogicAnd, Children: []ruletree.Node{
			&ruletree.Condition{Field: "amount", Operator: ruletree.OpGte, Value: float64(100)},
			&ruletree.Condition{Field: "currency", Operator: ruletree.OpEq, Value: "EUR"},
		}},
		Actions: []ruletree.Action{{Effect: ruletree.EffectGrantBadge, TargetCode: code}},
		Active:  true,
	}
}

func TestPostgresRuleStore_BasicCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresRuleStore(db)

	rule := testRule("big-spender")

	err := store.Add(rule)
	if err != nil {
		t.Fatalf("Failed to add rule: %v", err)
	}

	retrieved, err := store.Get(rule.ID)
	if err != nil {
		t.Fatalf("Failed to get rule: %v", err)
	}
	if retrieved.RuleCode != "big-spender" {
		t.Errorf("Expected code 'big-spender', got '%s'", retrieved.RuleCode)
	}
	if !ruletree.Equal(retrieved.Tree, rule.Tree) {
		t.Error("Tree changed through the JSONB round trip")
	}
	if len(retrieved.Actions) != 1 || retrieved.Actions[0].TargetCode != "big-spender" {
		t.Errorf("Actions changed through the JSONB round trip: %+v", retrieved.Actions)
	}

	byCode, err := store.GetByCode("big-spender")
	if err != nil {
		t.Fatalf("Failed to get rule by code: %v", err)
	}
	if byCode.ID != rule.ID {
		t.Errorf("GetByCode returned wrong rule: %s", byCode.ID)
	}

	activeRules, err := store.ListActiveForEvent("purchase")
	if err != nil {
		t.Fatalf("Failed to list active rules: %v", err)
	}
	if len(activeRules) != 1 {
		t.Errorf("Expected 1 active rule, got %d", len(activeRules))
	}

	rule.Name = "updated-rule"
	rule.Active = false
	err = store.Update(rule)
	if err != nil {
		t.Fatalf("Failed to update rule: %v", err)
	}

	updated, err := store.Get(rule.ID)
	if err != nil {
		t.Fatalf("Failed to get updated rule: %v", err)
	}
	if updated.Name != "updated-rule" {
		t.Errorf("Expected name 'updated-rule', got '%s'", updated.Name)
	}
	if updated.Active {
		t.Error("Expected rule to be inactive after update")
	}

	activeRules, err = store.ListActiveForEvent("purchase")
	if err != nil {
		t.Fatalf("Failed to list active rules: %v", err)
	}
	if len(activeRules) != 0 {
		t.Errorf("Expected 0 active rules, got %d", len(activeRules))
	}

	err = store.Delete(rule.ID)
	if err != nil {
		t.Fatalf("Failed to delete rule: %v", err)
	}

	_, err = store.Get(rule.ID)
	if err == nil {
		t.Error("Expected error when getting deleted rule, got nil")
	}
}

func TestPostgresRuleStore_DuplicateRule(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresRuleStore(db)

	rule := testRule("dup-check")
	err := store.Add(rule)
	if err != nil {
		t.Fatalf("Failed to add rule: %v", err)
	}

	// Same ID
	err = store.Add(rule)
	if err == nil {
		t.Error("Expected error when adding duplicate rule ID, got nil")
	}

	// Same code, different ID
	other := testRule("dup-check")
	err = store.Add(other)
	if err == nil {
		t.Error("Expected error when adding duplicate rule code, got nil")
	}
}

func TestPostgresRuleStore_UpdateNonExistent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresRuleStore(db)

	err := store.Update(testRule("ghost"))
	if err == nil {
		t.Error("Expected error when updating non-existent rule, got nil")
	}
}

func TestPostgresRuleStore_DeleteNonExistent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresRuleStore(db)

	err := store.Delete(uuid.New().String())
	if err == nil {
		t.Error("Expected error when deleting non-existent rule, got nil")
	}
}

func TestPostgresRuleStore_EventOrdering(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresRuleStore(db)

	for i := 1; i <= 5; i++ {
		rule := testRule(fmt.Sprintf("rule-%d", i))
		err := store.Add(rule)
		if err != nil {
			t.Fatalf("Failed to add rule %d: %v", i, err)
		}
		time.Sleep(10 * time.Millisecond) // Ensure different timestamps
	}

	rulesList, err := store.ListActiveForEvent("purchase")
	if err != nil {
		t.Fatalf("Failed to list rules: %v", err)
	}

	if len(rulesList) != 5 {
		t.Fatalf("Expected 5 rules, got %d", len(rulesList))
	}

	// Evaluation order is oldest-first
	for i := 0; i < len(rulesList)-1; i++ {
		if rulesList[i].CreatedAt.After(rulesList[i+1].CreatedAt) {
			t.Error("Rules are not ordered by created_at ascending")
		}
	}

	all, err := store.List()
	if err != nil {
		t.Fatalf("Failed to list all rules: %v", err)
	}
	// Listing for the editor is newest-first
	for i := 0; i < len(all)-1; i++ {
		if all[i].CreatedAt.Before(all[i+1].CreatedAt) {
			t.Error("Rules are not ordered by created_at descending")
		}
	}
}

func TestPostgresRuleStore_FrequencyLimits(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	// Frequency limits survive the nullable columns
	store := rules.NewPostgresRuleStore(db)
	max := 3
	quota := 1000
	rule := testRule("limited")
	rule.MaxCountPerUser = &max
	rule.GlobalQuota = &quota

	if err := store.Add(rule); err != nil {
		t.Fatalf("Failed to add rule: %v", err)
	}

	got, err := store.Get(rule.ID)
	if err != nil {
		t.Fatalf("Failed to get rule: %v", err)
	}
	if got.MaxCountPerUser == nil || *got.MaxCountPerUser != 3 {
		t.Errorf("MaxCountPerUser = %v, want 3", got.MaxCountPerUser)
	}
	if got.GlobalQuota == nil || *got.GlobalQuota != 1000 {
		t.Errorf("GlobalQuota = %v, want 1000", got.GlobalQuota)
	}
}
