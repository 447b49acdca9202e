package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"ledger/internal/invalidation"
	"ledger/internal/models"
	"ledger/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// memLedger is an owner-scoped in-memory stand-in for the Postgres tables.
type memLedger struct {
	entries       map[string]models.LedgerEntry
	anticipations map[string]models.Anticipation
	invoices      map[string]models.Invoice
	accounts      map[string]models.Account
	cards         map[string]models.Card
	categories    []models.Category
	payers        []models.Payer

	seq            int64
	hideOwnerPayer bool
	inserts        int
	failInsertAt   int
	insertErr      error
}

func newMemLedger() *memLedger {
	return &memLedger{
		entries:       map[string]models.LedgerEntry{},
		anticipations: map[string]models.Anticipation{},
		invoices:      map[string]models.Invoice{},
		accounts:      map[string]models.Account{},
		cards:         map[string]models.Card{},
	}
}

type memSnapshot struct {
	entries       map[string]models.LedgerEntry
	anticipations map[string]models.Anticipation
	invoices      map[string]models.Invoice
}

func (l *memLedger) snapshot() memSnapshot {
	snap := memSnapshot{
		entries:       make(map[string]models.LedgerEntry, len(l.entries)),
		anticipations: make(map[string]models.Anticipation, len(l.anticipations)),
		invoices:      make(map[string]models.Invoice, len(l.invoices)),
	}
	for k, v := range l.entries {
		snap.entries[k] = v
	}
	for k, v := range l.anticipations {
		snap.anticipations[k] = v
	}
	for k, v := range l.invoices {
		snap.invoices[k] = v
	}
	return snap
}

func (l *memLedger) restore(snap memSnapshot) {
	l.entries = snap.entries
	l.anticipations = snap.anticipations
	l.invoices = snap.invoices
}

// memTxRunner rolls the ledger back when fn fails.
type memTxRunner struct {
	ledger *memLedger
	calls  int
}

func (r *memTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	r.calls++
	snap := r.ledger.snapshot()
	if err := fn(nil); err != nil {
		r.ledger.restore(snap)
		return err
	}
	return nil
}

type failingTxRunner struct {
	err error
}

func (f failingTxRunner) WithTx(context.Context, func(*sqlx.Tx) error) error {
	return f.err
}

type recordingInvalidator struct {
	events []invalidation.Event
	owners []string
}

func (r *recordingInvalidator) Invalidate(ownerID string, event invalidation.Event) {
	r.owners = append(r.owners, ownerID)
	r.events = append(r.events, event)
}

func intPtr(value int) *int {
	return &value
}

func (l *memLedger) addEntry(entry models.LedgerEntry) {
	l.entries[entry.ID] = entry
}

func (l *memLedger) seedSeries(ownerID, seriesID string, count int, amount int64, txType models.TransactionType) []string {
	ids := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		id := seriesID + "-" + string(rune('0'+i))
		l.addEntry(models.LedgerEntry{
			ID:                 id,
			OwnerID:            ownerID,
			Name:               "Laptop",
			Amount:             amount,
			PurchaseDate:       time.Date(2025, time.Month(i), 5, 0, 0, 0, 0, time.UTC),
			Period:             time.Date(2025, time.Month(i), 1, 0, 0, 0, 0, time.UTC).Format("2006-01"),
			TransactionType:    txType,
			Condition:          models.ConditionInstallment,
			PaymentMethod:      "credit_card",
			SeriesID:           stringPtr(seriesID),
			InstallmentCount:   intPtr(count),
			CurrentInstallment: intPtr(i),
			CardID:             stringPtr("card-1"),
			PayerID:            stringPtr("payer-owner"),
		})
		ids = append(ids, id)
	}
	return ids
}

func (l *memLedger) entriesWhere(match func(models.LedgerEntry) bool) []models.LedgerEntry {
	var out []models.LedgerEntry
	for _, entry := range l.entries {
		if match(entry) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *memLedger) syntheticEntries(ownerID string) []models.LedgerEntry {
	return l.entriesWhere(func(e models.LedgerEntry) bool {
		return e.OwnerID == ownerID && e.SyntheticKind != nil
	})
}

func (l *memLedger) payerRole(payerID *string) string {
	if payerID == nil {
		return ""
	}
	for _, payer := range l.payers {
		if payer.ID == *payerID {
			return payer.Role
		}
	}
	return ""
}

func (l *memLedger) Insert(_ context.Context, _ store.Execer, entry models.LedgerEntry) error {
	l.inserts++
	if l.failInsertAt > 0 && l.inserts == l.failInsertAt {
		return errors.New("connection reset")
	}
	if l.insertErr != nil {
		return l.insertErr
	}
	if _, exists := l.entries[entry.ID]; exists {
		return &pq.Error{Code: "23505"}
	}
	if entry.SyntheticKind != nil {
		for _, other := range l.entries {
			if other.OwnerID == entry.OwnerID && other.SyntheticKind != nil && *other.SyntheticKind == *entry.SyntheticKind &&
				*other.SyntheticCardID == *entry.SyntheticCardID && other.Period == entry.Period {
				return &pq.Error{Code: "23505"}
			}
		}
	}
	l.entries[entry.ID] = entry
	return nil
}

func (l *memLedger) InsertEntries(ctx context.Context, tx store.Execer, entries []models.LedgerEntry) error {
	for _, entry := range entries {
		if err := l.Insert(ctx, tx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (l *memLedger) GetByID(_ context.Context, _ store.Getter, ownerID, entryID string) (models.LedgerEntry, error) {
	entry, ok := l.entries[entryID]
	if !ok || entry.OwnerID != ownerID {
		return models.LedgerEntry{}, sql.ErrNoRows
	}
	return entry, nil
}

func (l *memLedger) SeriesExists(_ context.Context, ownerID, seriesID string) (bool, error) {
	for _, entry := range l.entries {
		if entry.OwnerID == ownerID && entry.SeriesID != nil && *entry.SeriesID == seriesID {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) ListEligibleInstallments(_ context.Context, ownerID, seriesID string) ([]models.LedgerEntry, error) {
	rows := l.entriesWhere(func(e models.LedgerEntry) bool {
		return e.OwnerID == ownerID && e.SeriesID != nil && *e.SeriesID == seriesID &&
			e.Condition == models.ConditionInstallment && !e.IsAnticipated && !e.IsSettled
	})
	sort.SliceStable(rows, func(i, j int) bool { return *rows[i].CurrentInstallment < *rows[j].CurrentInstallment })
	return rows, nil
}

func (l *memLedger) LockEligibleInstallments(ctx context.Context, _ store.Selecter, ownerID, seriesID string) ([]models.LedgerEntry, error) {
	return l.ListEligibleInstallments(ctx, ownerID, seriesID)
}

func (l *memLedger) MarkAnticipated(_ context.Context, _ store.Execer, ownerID, anticipationID string, entryIDs []string) (int64, error) {
	var n int64
	for _, id := range entryIDs {
		entry, ok := l.entries[id]
		if !ok || entry.OwnerID != ownerID || entry.IsAnticipated {
			continue
		}
		entry.IsAnticipated = true
		entry.AnticipationID = stringPtr(anticipationID)
		entry.Amount = 0
		l.entries[id] = entry
		n++
	}
	return n, nil
}

func (l *memLedger) RestoreInstallments(_ context.Context, _ store.Execer, ownerID, anticipationID string, entryIDs []string, amount int64) (int64, error) {
	var n int64
	for _, id := range entryIDs {
		entry, ok := l.entries[id]
		if !ok || entry.OwnerID != ownerID || entry.AnticipationID == nil || *entry.AnticipationID != anticipationID {
			continue
		}
		entry.IsAnticipated = false
		entry.AnticipationID = nil
		entry.Amount = amount
		l.entries[id] = entry
		n++
	}
	return n, nil
}

func (l *memLedger) Delete(_ context.Context, _ store.Execer, ownerID, entryID string) (int64, error) {
	entry, ok := l.entries[entryID]
	if !ok || entry.OwnerID != ownerID {
		return 0, nil
	}
	delete(l.entries, entryID)
	return 1, nil
}

func onInvoice(ownerID, cardID, period string) func(models.LedgerEntry) bool {
	return func(e models.LedgerEntry) bool {
		return e.OwnerID == ownerID && e.CardID != nil && *e.CardID == cardID && e.Period == period
	}
}

func (l *memLedger) SetSettledForInvoice(_ context.Context, _ store.Execer, ownerID, cardID, period string, settled bool) (int64, error) {
	rows := l.entriesWhere(onInvoice(ownerID, cardID, period))
	for _, entry := range rows {
		entry.IsSettled = settled
		l.entries[entry.ID] = entry
	}
	return int64(len(rows)), nil
}

func (l *memLedger) OwnerShare(_ context.Context, _ store.Getter, ownerID, cardID, period string) (int64, error) {
	var share int64
	for _, entry := range l.entriesWhere(onInvoice(ownerID, cardID, period)) {
		if entry.TransactionType != models.TransactionExpense || l.payerRole(entry.PayerID) != models.PayerRoleOwner {
			continue
		}
		if entry.Amount < 0 {
			share -= entry.Amount
		} else {
			share += entry.Amount
		}
	}
	return share, nil
}

func (l *memLedger) InvoiceTotals(_ context.Context, _ store.Getter, ownerID, cardID, period string) (store.InvoiceTotals, error) {
	var totals store.InvoiceTotals
	for _, entry := range l.entriesWhere(onInvoice(ownerID, cardID, period)) {
		totals.EntryCount++
		totals.Total += entry.Amount
	}
	return totals, nil
}

func (l *memLedger) FindSynthetic(_ context.Context, _ store.Getter, ownerID string, key store.SyntheticKey) (models.LedgerEntry, error) {
	for _, entry := range l.syntheticEntries(ownerID) {
		if *entry.SyntheticKind == key.Kind && *entry.SyntheticCardID == key.CardID && entry.Period == key.Period {
			return entry, nil
		}
	}
	return models.LedgerEntry{}, sql.ErrNoRows
}

func (l *memLedger) UpdateAmountAndDate(_ context.Context, _ store.Execer, ownerID, entryID string, amount int64, date time.Time) error {
	entry, ok := l.entries[entryID]
	if !ok || entry.OwnerID != ownerID {
		return nil
	}
	entry.Amount = amount
	entry.PurchaseDate = date
	entry.IsSettled = true
	l.entries[entryID] = entry
	return nil
}

func (l *memLedger) UpdateDate(_ context.Context, _ store.Execer, ownerID, entryID string, date time.Time) (int64, error) {
	entry, ok := l.entries[entryID]
	if !ok || entry.OwnerID != ownerID {
		return 0, nil
	}
	entry.PurchaseDate = date
	l.entries[entryID] = entry
	return 1, nil
}

type memAnticipations struct {
	ledger *memLedger
}

func (m memAnticipations) Create(_ context.Context, _ store.Execer, a models.Anticipation) error {
	if _, ok := m.ledger.entries[a.ConsolidatedEntryID]; !ok {
		return errors.New("foreign key violation: consolidated entry")
	}
	m.ledger.seq++
	a.CreatedAt = time.Unix(m.ledger.seq, 0)
	m.ledger.anticipations[a.ID] = a
	return nil
}

func (m memAnticipations) GetForUpdate(_ context.Context, _ store.Getter, ownerID, anticipationID string) (models.Anticipation, error) {
	a, ok := m.ledger.anticipations[anticipationID]
	if !ok || a.OwnerID != ownerID {
		return models.Anticipation{}, sql.ErrNoRows
	}
	return a, nil
}

func (m memAnticipations) ListBySeries(_ context.Context, ownerID, seriesID string) ([]models.Anticipation, error) {
	var out []models.Anticipation
	for _, a := range m.ledger.anticipations {
		if a.OwnerID == ownerID && a.SeriesID == seriesID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memAnticipations) Delete(_ context.Context, _ store.Execer, ownerID, anticipationID string) (int64, error) {
	a, ok := m.ledger.anticipations[anticipationID]
	if !ok || a.OwnerID != ownerID {
		return 0, nil
	}
	delete(m.ledger.anticipations, anticipationID)
	return 1, nil
}

type memInvoices struct {
	ledger *memLedger
}

func invoiceKey(ownerID, cardID, period string) string {
	return ownerID + "|" + cardID + "|" + period
}

func (m memInvoices) Upsert(_ context.Context, _ store.Getter, id, ownerID, cardID, period string, status models.PaymentStatus, paidAt *time.Time) (models.Invoice, error) {
	key := invoiceKey(ownerID, cardID, period)
	invoice, ok := m.ledger.invoices[key]
	if !ok {
		invoice = models.Invoice{ID: id, OwnerID: ownerID, CardID: cardID, Period: period}
	}
	invoice.PaymentStatus = status
	invoice.PaidAt = paidAt
	m.ledger.invoices[key] = invoice
	return invoice, nil
}

func (m memInvoices) Get(_ context.Context, _ store.Getter, ownerID, cardID, period string) (models.Invoice, error) {
	invoice, ok := m.ledger.invoices[invoiceKey(ownerID, cardID, period)]
	if !ok {
		return models.Invoice{}, sql.ErrNoRows
	}
	return invoice, nil
}

func (m memInvoices) SetPaidAt(_ context.Context, _ store.Execer, ownerID, cardID, period string, paidAt time.Time) (int64, error) {
	key := invoiceKey(ownerID, cardID, period)
	invoice, ok := m.ledger.invoices[key]
	if !ok || invoice.PaymentStatus != models.PaymentPaid {
		return 0, nil
	}
	invoice.PaidAt = &paidAt
	m.ledger.invoices[key] = invoice
	return 1, nil
}

type memDirectory struct {
	ledger *memLedger
}

func (m memDirectory) GetAccount(_ context.Context, _ store.Getter, ownerID, accountID string) (models.Account, error) {
	account, ok := m.ledger.accounts[accountID]
	if !ok || account.OwnerID != ownerID {
		return models.Account{}, sql.ErrNoRows
	}
	return account, nil
}

func (m memDirectory) GetCard(_ context.Context, _ store.Getter, ownerID, cardID string) (models.Card, error) {
	card, ok := m.ledger.cards[cardID]
	if !ok || card.OwnerID != ownerID {
		return models.Card{}, sql.ErrNoRows
	}
	return card, nil
}

func (m memDirectory) GetPayer(_ context.Context, _ store.Getter, ownerID, payerID string) (models.Payer, error) {
	for _, payer := range m.ledger.payers {
		if payer.ID == payerID && payer.OwnerID == ownerID {
			return payer, nil
		}
	}
	return models.Payer{}, sql.ErrNoRows
}

func (m memDirectory) GetCategory(_ context.Context, _ store.Getter, ownerID, categoryID string) (models.Category, error) {
	for _, category := range m.ledger.categories {
		if category.ID == categoryID && category.OwnerID == ownerID {
			return category, nil
		}
	}
	return models.Category{}, sql.ErrNoRows
}

func (m memDirectory) FindCategoryByName(_ context.Context, _ store.Getter, ownerID, name string) (models.Category, error) {
	for _, category := range m.ledger.categories {
		if category.OwnerID == ownerID && category.Name == name {
			return category, nil
		}
	}
	return models.Category{}, sql.ErrNoRows
}

func (m memDirectory) FindOwnerPayer(_ context.Context, _ store.Getter, ownerID string) (models.Payer, error) {
	if m.ledger.hideOwnerPayer {
		return models.Payer{}, sql.ErrNoRows
	}
	for _, payer := range m.ledger.payers {
		if payer.OwnerID == ownerID && payer.Role == models.PayerRoleOwner {
			return payer, nil
		}
	}
	return models.Payer{}, sql.ErrNoRows
}

var (
	_ EntryStore        = (*memLedger)(nil)
	_ AnticipationStore = memAnticipations{}
	_ InvoiceStore      = memInvoices{}
	_ DirectoryStore    = memDirectory{}
)
