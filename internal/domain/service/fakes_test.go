package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Badsnus/mediashare-bot/internal/domain/common/errorz"
	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
	"github.com/Badsnus/mediashare-bot/internal/domain/plans"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testLogger() *types.Logger {
	return &types.Logger{SugaredLogger: zap.NewNop().Sugar(), Name: "test"}
}

func testCatalog() *plans.Catalog {
	c, err := plans.New([]plans.Plan{
		{Name: "Basic", Price: 5, ConcurrentStreams: 1, RoleID: -101, OnetimePriceRef: "price_basic"},
		{Name: "Standard", Price: 10, ConcurrentStreams: 2, DownloadsEnabled: true, RoleID: -102, OnetimePriceRef: "price_standard"},
		{Name: "Extra", Price: 15, ConcurrentStreams: 4, DownloadsEnabled: true, Enabled4K: true, RoleID: -103, OnetimePriceRef: "price_extra"},
	})
	if err != nil {
		panic(err)
	}
	return c
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// memoryEntitlements is an in-memory entitlement store with the same semantics as the postgres one
type memoryEntitlements struct {
	mu      sync.Mutex
	records map[uint]*entity.Entitlement
	nextID  uint

	archiveErr error
	pushErr    error
}

func newMemoryEntitlements(records ...entity.Entitlement) *memoryEntitlements {
	m := &memoryEntitlements{records: map[uint]*entity.Entitlement{}}
	for _, r := range records {
		r := r
		m.nextID++
		if r.ID == 0 {
			r.ID = m.nextID
		}
		m.records[r.ID] = &r
	}
	return m
}

func (m *memoryEntitlements) snapshot() []entity.Entitlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.Entitlement, 0, len(m.records))
	for _, r := range m.records {
		c := *r
		c.SentNotifications = slices.Clone(r.SentNotifications)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryEntitlements) get(id uint) entity.Entitlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.records[id]
}

func (m *memoryEntitlements) GetActive(_ context.Context) ([]entity.Entitlement, error) {
	var out []entity.Entitlement
	for _, r := range m.snapshot() {
		if !r.Archived {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryEntitlements) GetByUserID(_ context.Context, userID int64) (*entity.Entitlement, error) {
	for _, r := range m.snapshot() {
		if r.UserID == userID && !r.Archived {
			return &r, nil
		}
	}
	return &entity.Entitlement{}, gorm.ErrRecordNotFound
}

func (m *memoryEntitlements) GetByEmail(_ context.Context, email string) (*entity.Entitlement, error) {
	for _, r := range m.snapshot() {
		if r.Email == email && !r.Archived {
			return &r, nil
		}
	}
	return &entity.Entitlement{}, gorm.ErrRecordNotFound
}

func (m *memoryEntitlements) CountActive(ctx context.Context) (int64, error) {
	active, _ := m.GetActive(ctx)
	return int64(len(active)), nil
}

func (m *memoryEntitlements) CreateWithinCapacity(ctx context.Context, e *entity.Entitlement, capacity int64) (*entity.Entitlement, error) {
	count, _ := m.CountActive(ctx)
	if count >= capacity {
		return e, errorz.ErrCapacityReached
	}
	if _, err := m.GetByUserID(ctx, e.UserID); err == nil {
		return e, errorz.ErrAlreadySubscribed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	c := *e
	m.records[e.ID] = &c
	return e, nil
}

func (m *memoryEntitlements) Update(_ context.Context, e *entity.Entitlement) (*entity.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *e
	c.SentNotifications = slices.Clone(e.SentNotifications)
	m.records[e.ID] = &c
	return e, nil
}

func (m *memoryEntitlements) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memoryEntitlements) Archive(_ context.Context, id uint, status entity.ShareStatus) error {
	if m.archiveErr != nil {
		return m.archiveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Archived = true
	r.ShareStatus = status
	return nil
}

func (m *memoryEntitlements) PushNotification(_ context.Context, id uint, day int) (bool, error) {
	if m.pushErr != nil {
		return false, m.pushErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if slices.Contains(r.SentNotifications, int64(day)) {
		return false, nil
	}
	r.SentNotifications = append(r.SentNotifications, int64(day))
	return true, nil
}

type fakeAccess struct {
	calls        []string
	removeErr    error
	cancelErr    error
	inviteErr    error
	invitedPlans map[string]string
}

func (f *fakeAccess) Remove(_ context.Context, email string) error {
	f.calls = append(f.calls, "remove:"+email)
	return f.removeErr
}

func (f *fakeAccess) CancelInvite(_ context.Context, email string) error {
	f.calls = append(f.calls, "cancel:"+email)
	return f.cancelErr
}

func (f *fakeAccess) InvitePlan(_ context.Context, email string, plan plans.Plan) error {
	f.calls = append(f.calls, "invite:"+email)
	if f.inviteErr != nil {
		return f.inviteErr
	}
	if f.invitedPlans == nil {
		f.invitedPlans = map[string]string{}
	}
	f.invitedPlans[email] = plan.Name
	return nil
}

type sentMessage struct {
	UserID int64
	Key    string
	Data   interface{}
}

type fakeNotifier struct {
	dms          []sentMessage
	operator     []sentMessage
	revokedRoles []int64
	grantedRoles []int64
	dmErr        error
	roleErr      error
}

func (f *fakeNotifier) DirectMessage(_ context.Context, userID int64, key string, data interface{}) error {
	f.dms = append(f.dms, sentMessage{UserID: userID, Key: key, Data: data})
	return f.dmErr
}

func (f *fakeNotifier) NotifyOperator(_ context.Context, key string, data interface{}) {
	f.operator = append(f.operator, sentMessage{Key: key, Data: data})
}

func (f *fakeNotifier) RevokeRole(_ context.Context, userID int64, roleID int64) error {
	f.revokedRoles = append(f.revokedRoles, roleID)
	return f.roleErr
}

func (f *fakeNotifier) GrantRole(_ context.Context, userID int64, roleID int64) error {
	f.grantedRoles = append(f.grantedRoles, roleID)
	return f.roleErr
}

func (f *fakeNotifier) operatorKeys() []string {
	keys := make([]string, 0, len(f.operator))
	for _, m := range f.operator {
		keys = append(keys, m.Key)
	}
	return keys
}

func (f *fakeNotifier) dmKeys() []string {
	keys := make([]string, 0, len(f.dms))
	for _, m := range f.dms {
		keys = append(keys, m.Key)
	}
	return keys
}

type fakeJournal struct {
	entries []entity.JournalEntry
}

func (f *fakeJournal) Record(_ context.Context, e entity.JournalEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeJournal) History(_ context.Context, userID int64, _ int64) ([]entity.JournalEntry, error) {
	var out []entity.JournalEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

var errExternal = errors.New("external service unavailable")

type memoryPayments struct {
	records []*entity.Payment
	nextID  uint

	markPaidErr error
}

func (m *memoryPayments) GetActiveUnpaid(_ context.Context, userID int64) (*entity.Payment, error) {
	for i := len(m.records) - 1; i >= 0; i-- {
		p := m.records[i]
		if p.UserID == userID && p.Active && !p.Paid {
			c := *p
			return &c, nil
		}
	}
	return &entity.Payment{}, gorm.ErrRecordNotFound
}

func (m *memoryPayments) Create(_ context.Context, p *entity.Payment) (*entity.Payment, error) {
	m.nextID++
	p.ID = m.nextID
	c := *p
	m.records = append(m.records, &c)
	return p, nil
}

func (m *memoryPayments) MarkPaid(_ context.Context, id uint) error {
	if m.markPaidErr != nil {
		return m.markPaidErr
	}
	for _, p := range m.records {
		if p.ID == id {
			p.Paid = true
			p.Active = false
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memoryPayments) DeleteByInvoice(_ context.Context, userID int64, invoiceID string) error {
	m.records = slices.DeleteFunc(m.records, func(p *entity.Payment) bool {
		return p.UserID == userID && p.InvoiceID == invoiceID
	})
	return nil
}

func (m *memoryPayments) DeleteActiveByUserID(_ context.Context, userID int64) (int64, error) {
	before := len(m.records)
	m.records = slices.DeleteFunc(m.records, func(p *entity.Payment) bool {
		return p.UserID == userID && p.Active && !p.Paid
	})
	return int64(before - len(m.records)), nil
}

// fakeGateway issues sequential invoices and reports the statuses set by the test
type fakeGateway struct {
	issued   int
	statuses map[string]entity.InvoiceStatus
	voided   []string
	items    []string

	createErr error
	statusErr error
	voidErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: map[string]entity.InvoiceStatus{}}
}

func (g *fakeGateway) CreateCustomer(_ context.Context, email string) (string, error) {
	if g.createErr != nil {
		return "", g.createErr
	}
	return "cus_" + email, nil
}

func (g *fakeGateway) CreateInvoiceItem(_ context.Context, customerID, priceRef string) error {
	g.items = append(g.items, customerID+"/"+priceRef)
	return nil
}

func (g *fakeGateway) FinalizeInvoice(_ context.Context, _ string) (entity.Invoice, error) {
	g.issued++
	id := fmt.Sprintf("in_%d", g.issued)
	g.statuses[id] = entity.InvoiceOpen
	return entity.Invoice{ID: id, HostedURL: "https://pay.example.com/" + id}, nil
}

func (g *fakeGateway) InvoiceStatus(_ context.Context, invoiceID string) (entity.InvoiceStatus, error) {
	if g.statusErr != nil {
		return "", g.statusErr
	}
	return g.statuses[invoiceID], nil
}

func (g *fakeGateway) VoidInvoice(_ context.Context, invoiceID string) error {
	if g.voidErr != nil {
		return g.voidErr
	}
	g.voided = append(g.voided, invoiceID)
	g.statuses[invoiceID] = entity.InvoiceVoid
	return nil
}
