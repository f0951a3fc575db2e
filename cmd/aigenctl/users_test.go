package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/ai-gen-platform/internal/repository"
)

func TestPrintUsers(t *testing.T) {
	var buf bytes.Buffer
	rows := []repository.AccountSummary{
		{ID: 1, Email: "admin@example.com", Role: "ADMIN", Credits: 0, CreatedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)},
		{ID: 2, Email: "user@example.com", Role: "USER", Credits: 14, Requests: 3, Pending: 1, Purchases: 2, PurchasedCent: 550,
			CreatedAt: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)},
	}
	if err := printUsers(&buf, rows); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"EMAIL", "user@example.com", "$5.50", "$0.00", "2024-05-02 10:00", "2 account(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
