package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledger/internal/invalidation"
	"ledger/internal/models"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

type settlementFixture struct {
	ledger      *memLedger
	invalidator *recordingInvalidator
	service     *SettlementService
	now         time.Time
}

func newSettlementFixture(t *testing.T) settlementFixture {
	t.Helper()
	ledger := newMemLedger()
	ledger.accounts["acc-checking"] = models.Account{ID: "acc-checking", OwnerID: testOwner, Name: "Checking"}
	ledger.cards["card-c"] = models.Card{ID: "card-c", OwnerID: testOwner, Name: "Gold", FundingAccountID: stringPtr("acc-checking")}
	ledger.categories = []models.Category{{ID: "cat-pay", OwnerID: testOwner, Name: "Payments"}}
	ledger.payers = []models.Payer{
		{ID: "payer-owner", OwnerID: testOwner, Name: "Me", Role: models.PayerRoleOwner},
		{ID: "payer-partner", OwnerID: testOwner, Name: "Partner", Role: "member"},
	}
	card := func(id string, amount int64, txType models.TransactionType, payerID string) models.LedgerEntry {
		return models.LedgerEntry{
			ID: id, OwnerID: testOwner, Name: id, Amount: amount, Period: "2025-03",
			TransactionType: txType, Condition: models.ConditionSingle, PaymentMethod: "credit_card",
			CardID: stringPtr("card-c"), PayerID: stringPtr(payerID),
		}
	}
	ledger.addEntry(card("groceries", -30000, models.TransactionExpense, "payer-owner"))
	ledger.addEntry(card("fuel", -15000, models.TransactionExpense, "payer-owner"))
	ledger.addEntry(card("dinner", -8000, models.TransactionExpense, "payer-partner"))
	ledger.addEntry(card("refund", 1000, models.TransactionIncome, "payer-owner"))
	other := card("april", -5000, models.TransactionExpense, "payer-owner")
	other.Period = "2025-04"
	ledger.addEntry(other)

	invalidator := &recordingInvalidator{}
	now := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	service := NewSettlementService(&memTxRunner{ledger: ledger}, ledger, memInvoices{ledger: ledger}, memDirectory{ledger: ledger}, invalidator, zerolog.Nop(), "Payments")
	service.now = func() time.Time { return now }
	return settlementFixture{ledger: ledger, invalidator: invalidator, service: service, now: now}
}

func (f settlementFixture) setStatus(t *testing.T, status models.PaymentStatus) SettlementResult {
	t.Helper()
	result, err := f.service.SetPaymentStatus(context.Background(), SetPaymentStatusRequest{
		OwnerID: testOwner, CardID: "card-c", Period: "2025-03", Status: status,
	})
	if err != nil {
		t.Fatalf("set %s: %v", status, err)
	}
	return result
}

func (f settlementFixture) invoiceEntries() []models.LedgerEntry {
	return f.ledger.entriesWhere(onInvoice(testOwner, "card-c", "2025-03"))
}

func TestSettlementPaidCreatesFundingEntry(t *testing.T) {
	f := newSettlementFixture(t)

	result := f.setStatus(t, models.PaymentPaid)

	if result.OwnerShare != 45000 || result.SkippedReason != "" || result.SettledEntries != 4 {
		t.Fatalf("unexpected result: %#v", result)
	}
	synthetic := f.ledger.syntheticEntries(testOwner)
	if len(synthetic) != 1 {
		t.Fatalf("expected one synthetic entry, got %d", len(synthetic))
	}
	entry := synthetic[0]
	if entry.ID != result.SyntheticEntryID || entry.Amount != -45000 || !entry.IsSettled {
		t.Fatalf("unexpected synthetic entry: %#v", entry)
	}
	if *entry.AccountID != "acc-checking" || entry.CardID != nil || *entry.CategoryID != "cat-pay" || *entry.PayerID != "payer-owner" {
		t.Fatalf("synthetic entry must hit the funding account: %#v", entry)
	}
	if entry.TransactionType != models.TransactionExpense || entry.Condition != models.ConditionSingle || !entry.PurchaseDate.Equal(f.now) {
		t.Fatalf("unexpected synthetic entry: %#v", entry)
	}
	for _, e := range f.invoiceEntries() {
		if !e.IsSettled {
			t.Fatalf("entry %s not settled", e.ID)
		}
	}
	if april := f.ledger.entries["april"]; april.IsSettled {
		t.Fatal("other periods must not be touched")
	}
	invoice := f.ledger.invoices[invoiceKey(testOwner, "card-c", "2025-03")]
	if invoice.PaymentStatus != models.PaymentPaid || invoice.PaidAt == nil {
		t.Fatalf("unexpected invoice: %#v", invoice)
	}
	if len(f.invalidator.events) != 1 {
		t.Fatalf("expected one invalidation, got %d", len(f.invalidator.events))
	}
}

func TestSettlementPaidTwiceKeepsOneEntry(t *testing.T) {
	f := newSettlementFixture(t)
	first := f.setStatus(t, models.PaymentPaid)
	second := f.setStatus(t, models.PaymentPaid)

	if first.SyntheticEntryID != second.SyntheticEntryID {
		t.Fatalf("expected the same synthetic entry, got %s and %s", first.SyntheticEntryID, second.SyntheticEntryID)
	}
	if first.InvoiceID != second.InvoiceID {
		t.Fatalf("invoice must be reused")
	}
	if n := len(f.ledger.syntheticEntries(testOwner)); n != 1 {
		t.Fatalf("expected one synthetic entry, got %d", n)
	}
}

func TestSettlementPendingRevertsEverything(t *testing.T) {
	f := newSettlementFixture(t)
	f.setStatus(t, models.PaymentPaid)

	result := f.setStatus(t, models.PaymentPending)

	if result.SyntheticEntryID != "" || result.OwnerShare != 0 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if n := len(f.ledger.syntheticEntries(testOwner)); n != 0 {
		t.Fatalf("expected synthetic entry removed, got %d", n)
	}
	for _, e := range f.invoiceEntries() {
		if e.IsSettled {
			t.Fatalf("entry %s still settled", e.ID)
		}
	}
	invoice := f.ledger.invoices[invoiceKey(testOwner, "card-c", "2025-03")]
	if invoice.PaymentStatus != models.PaymentPending || invoice.PaidAt != nil {
		t.Fatalf("unexpected invoice: %#v", invoice)
	}
}

func TestSettlementPaidPendingPaidLeavesOneEntry(t *testing.T) {
	f := newSettlementFixture(t)
	f.setStatus(t, models.PaymentPaid)
	f.setStatus(t, models.PaymentPending)
	f.setStatus(t, models.PaymentPaid)

	synthetic := f.ledger.syntheticEntries(testOwner)
	if len(synthetic) != 1 || synthetic[0].Amount != -45000 {
		t.Fatalf("expected one live synthetic entry, got %#v", synthetic)
	}
	if len(f.ledger.invoices) != 1 {
		t.Fatalf("expected one invoice row, got %d", len(f.ledger.invoices))
	}
}

func TestSettlementPaidAgainUpdatesInPlace(t *testing.T) {
	f := newSettlementFixture(t)
	first := f.setStatus(t, models.PaymentPaid)
	f.ledger.addEntry(models.LedgerEntry{
		ID: "late", OwnerID: testOwner, Amount: -2500, Period: "2025-03", TransactionType: models.TransactionExpense,
		Condition: models.ConditionSingle, CardID: stringPtr("card-c"), PayerID: stringPtr("payer-owner"),
	})
	paymentDate := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)

	result, err := f.service.SetPaymentStatus(context.Background(), SetPaymentStatusRequest{
		OwnerID: testOwner, CardID: "card-c", Period: "2025-03", Status: models.PaymentPaid, PaymentDate: &paymentDate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := f.ledger.entries[first.SyntheticEntryID]
	if result.SyntheticEntryID != first.SyntheticEntryID || entry.Amount != -47500 || !entry.PurchaseDate.Equal(paymentDate) {
		t.Fatalf("synthetic entry not updated in place: %#v", entry)
	}
}

func TestSettlementSkipsWhenDirectoryEntryMissing(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*memLedger)
		reason string
	}{
		{"payment category", func(l *memLedger) { l.categories = nil }, SkipPaymentCategoryMissing},
		{"owner payer", func(l *memLedger) { l.hideOwnerPayer = true }, SkipOwnerPayerMissing},
		{"funding account", func(l *memLedger) {
			c := l.cards["card-c"]
			c.FundingAccountID = nil
			l.cards["card-c"] = c
		}, SkipNoFundingAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSettlementFixture(t)
			tc.mutate(f.ledger)

			result := f.setStatus(t, models.PaymentPaid)

			if result.SkippedReason != tc.reason || result.SyntheticEntryID != "" {
				t.Fatalf("unexpected result: %#v", result)
			}
			if n := len(f.ledger.syntheticEntries(testOwner)); n != 0 {
				t.Fatalf("expected no synthetic entry, got %d", n)
			}
			if invoice := f.ledger.invoices[invoiceKey(testOwner, "card-c", "2025-03")]; invoice.PaymentStatus != models.PaymentPaid {
				t.Fatalf("status must still commit: %#v", invoice)
			}
			if groceries := f.ledger.entries["groceries"]; !groceries.IsSettled {
				t.Fatal("entries must still be settled")
			}
		})
	}
}

func TestSettlementSkipOnRepeatPaymentDropsEarlierEntry(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*memLedger)
		reason string
	}{
		{"payment category", func(l *memLedger) { l.categories = nil }, SkipPaymentCategoryMissing},
		{"owner payer", func(l *memLedger) { l.hideOwnerPayer = true }, SkipOwnerPayerMissing},
		{"funding account", func(l *memLedger) {
			c := l.cards["card-c"]
			c.FundingAccountID = nil
			l.cards["card-c"] = c
		}, SkipNoFundingAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSettlementFixture(t)
			first := f.setStatus(t, models.PaymentPaid)
			if first.SyntheticEntryID == "" {
				t.Fatalf("expected a funding entry, got %#v", first)
			}
			groceries := f.ledger.entries["groceries"]
			groceries.Amount = -50000
			f.ledger.entries["groceries"] = groceries
			tc.mutate(f.ledger)

			result := f.setStatus(t, models.PaymentPaid)

			if result.SkippedReason != tc.reason || result.SyntheticEntryID != "" {
				t.Fatalf("unexpected result: %#v", result)
			}
			if _, ok := f.ledger.entries[first.SyntheticEntryID]; ok {
				t.Fatal("funding entry with the old amount must not survive")
			}
			if n := len(f.ledger.syntheticEntries(testOwner)); n != 0 {
				t.Fatalf("expected no synthetic entry, got %d", n)
			}
		})
	}
}

func TestSettlementZeroShareRemovesStaleEntry(t *testing.T) {
	f := newSettlementFixture(t)
	f.setStatus(t, models.PaymentPaid)
	for _, id := range []string{"groceries", "fuel"} {
		e := f.ledger.entries[id]
		e.PayerID = stringPtr("payer-partner")
		f.ledger.entries[id] = e
	}

	result := f.setStatus(t, models.PaymentPaid)

	if result.SkippedReason != SkipNoOwnerShare || result.OwnerShare != 0 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if n := len(f.ledger.syntheticEntries(testOwner)); n != 0 {
		t.Fatalf("stale synthetic entry should be removed, got %d", n)
	}
}

func TestSettlementTogglesAnticipatedInstallments(t *testing.T) {
	f := newSettlementFixture(t)
	f.ledger.addEntry(models.LedgerEntry{
		ID: "anticipated", OwnerID: testOwner, Amount: 0, Period: "2025-03", TransactionType: models.TransactionExpense,
		Condition: models.ConditionInstallment, SeriesID: stringPtr("s"), InstallmentCount: intPtr(3), CurrentInstallment: intPtr(3),
		IsAnticipated: true, AnticipationID: stringPtr("ant-1"), CardID: stringPtr("card-c"), PayerID: stringPtr("payer-owner"),
	})

	result := f.setStatus(t, models.PaymentPaid)

	entry := f.ledger.entries["anticipated"]
	if !entry.IsSettled || !entry.IsAnticipated || entry.Amount != 0 {
		t.Fatalf("anticipated installment should be settled with zero amount: %#v", entry)
	}
	if result.OwnerShare != 45000 {
		t.Fatalf("zero amount rows must not change the share, got %d", result.OwnerShare)
	}
}

func TestSettlementValidationAndOwnership(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	if _, err := f.service.SetPaymentStatus(ctx, SetPaymentStatusRequest{OwnerID: testOwner, CardID: "card-c", Period: "03-2025", Status: models.PaymentPaid}); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	if _, err := f.service.SetPaymentStatus(ctx, SetPaymentStatusRequest{OwnerID: testOwner, CardID: "card-c", Period: "2025-03", Status: "void"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := f.service.SetPaymentStatus(ctx, SetPaymentStatusRequest{OwnerID: "owner-2", CardID: "card-c", Period: "2025-03", Status: models.PaymentPaid}); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("expected ErrCardNotFound, got %v", err)
	}
	if len(f.ledger.invoices) != 0 || len(f.invalidator.events) != 0 {
		t.Fatalf("failed calls must not write or invalidate")
	}
}

func TestSettlementUniqueViolationIsConflict(t *testing.T) {
	f := newSettlementFixture(t)
	f.ledger.insertErr = &pq.Error{Code: "23505"}

	_, err := f.service.SetPaymentStatus(context.Background(), SetPaymentStatusRequest{
		OwnerID: testOwner, CardID: "card-c", Period: "2025-03", Status: models.PaymentPaid,
	})
	if !errors.Is(err, ErrSettlementConflict) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected settlement conflict, got %v", err)
	}
	if len(f.ledger.invoices) != 0 {
		t.Fatal("invoice update must roll back with the failed insert")
	}
	if groceries := f.ledger.entries["groceries"]; groceries.IsSettled {
		t.Fatal("settled flags must roll back with the failed insert")
	}
}

func TestSetPaymentDate(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	newDate := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)

	if err := f.service.SetPaymentDate(ctx, testOwner, "card-c", "2025-03", newDate); !errors.Is(err, ErrSettlementEntryNotFound) {
		t.Fatalf("expected ErrSettlementEntryNotFound, got %v", err)
	}

	result := f.setStatus(t, models.PaymentPaid)
	if err := f.service.SetPaymentDate(ctx, testOwner, "card-c", "2025-03", newDate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := f.ledger.entries[result.SyntheticEntryID]
	if !entry.PurchaseDate.Equal(newDate) || entry.Amount != -45000 {
		t.Fatalf("only the date should change: %#v", entry)
	}
	if err := f.service.SetPaymentDate(ctx, "owner-2", "card-c", "2025-03", newDate); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("expected ErrCardNotFound, got %v", err)
	}
}

func TestSetPaymentDateKeepsInvoicePaidAtInStep(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	f.setStatus(t, models.PaymentPaid)
	newDate := time.Date(2025, 4, 22, 0, 0, 0, 0, time.UTC)

	if err := f.service.SetPaymentDate(ctx, testOwner, "card-c", "2025-03", newDate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary, err := f.service.InvoiceSummary(ctx, testOwner, "card-c", "2025-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.PaidAt == nil || !summary.PaidAt.Equal(newDate) {
		t.Fatalf("invoice paid_at not moved: %v", summary.PaidAt)
	}
	if summary.SyntheticEntry == nil || !summary.SyntheticEntry.PurchaseDate.Equal(*summary.PaidAt) {
		t.Fatalf("funding entry date and paid_at disagree: %#v", summary.SyntheticEntry)
	}
	last := f.invalidator.events[len(f.invalidator.events)-1]
	if len(last.Scopes) != 2 || last.Scopes[0] != invalidation.ScopeInvoices {
		t.Fatalf("date change must invalidate invoices too: %#v", last)
	}
}

func TestInvoiceSummary(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	summary, err := f.service.InvoiceSummary(ctx, testOwner, "card-c", "2025-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status != models.PaymentPending || summary.EntryCount != 4 || summary.Total != -52000 || summary.OwnerShare != 45000 || summary.SyntheticEntry != nil {
		t.Fatalf("unexpected summary: %#v", summary)
	}

	f.setStatus(t, models.PaymentPaid)
	summary, err = f.service.InvoiceSummary(ctx, testOwner, "card-c", "2025-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status != models.PaymentPaid || summary.SyntheticEntry == nil || summary.SyntheticEntry.Amount != -45000 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
	if _, err := f.service.InvoiceSummary(ctx, testOwner, "card-x", "2025-03"); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("expected ErrCardNotFound, got %v", err)
	}
}
