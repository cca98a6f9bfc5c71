package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/model"
)

// memStore is a transactional in-memory Store. Transactions run one at a
// time on a copy of the state that replaces the committed state only when fn
// succeeds.
type memStore struct {
	mu    sync.Mutex
	state *memState

	// failOn makes the named Tx method fail once with the given error.
	failOn map[string]error
}

type memState struct {
	nextUserID int64
	users      map[int64]model.User
	usernames  map[string]int64
	orders     map[string]model.Order
	items      map[string][]model.OrderItem
	coupons    map[string]model.Coupon
	points     []model.PointTransaction
	logs       []model.AdminLog
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			users:     map[int64]model.User{},
			usernames: map[string]int64{},
			orders:    map[string]model.Order{},
			items:     map[string][]model.OrderItem{},
			coupons:   map[string]model.Coupon{},
		},
		failOn: map[string]error{},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		nextUserID: s.nextUserID,
		users:      make(map[int64]model.User, len(s.users)),
		usernames:  make(map[string]int64, len(s.usernames)),
		orders:     make(map[string]model.Order, len(s.orders)),
		items:      make(map[string][]model.OrderItem, len(s.items)),
		coupons:    make(map[string]model.Coupon, len(s.coupons)),
		points:     append([]model.PointTransaction(nil), s.points...),
		logs:       append([]model.AdminLog(nil), s.logs...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.usernames {
		c.usernames[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]model.OrderItem(nil), v...)
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	return c
}

func (m *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

// seedUser inserts a user with a balance backed by one earn transaction.
func (m *memStore) seedUser(name string, points int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.nextUserID++
	id := m.state.nextUserID
	m.state.users[id] = model.User{ID: id, Username: name, Points: points}
	m.state.usernames[name] = id
	if points != 0 {
		m.state.points = append(m.state.points, model.PointTransaction{UserID: id, Points: points, Type: model.Earn, Description: "seed"})
	}
	return id
}

func (m *memStore) balance(userID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.users[userID].Points
}

func (m *memStore) transactions(userID int64) []model.PointTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.PointTransaction
	for _, pt := range m.state.points {
		if pt.UserID == userID {
			out = append(out, pt)
		}
	}
	return out
}

func (m *memStore) ledgerSum(userID int64) int64 {
	var sum int64
	for _, pt := range m.transactions(userID) {
		sum += pt.Points
	}
	return sum
}

func (m *memStore) order(id string) (model.Order, []model.OrderItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	return o, m.state.items[id], ok
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

func (m *memStore) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, items := range m.state.items {
		n += len(items)
	}
	return n
}

func (m *memStore) coupon(code string) (model.Coupon, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.coupons[code]
	return c, ok
}

func (m *memStore) couponsOf(userID int64) []model.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Coupon
	for _, c := range m.state.coupons {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memTx struct {
	store *memStore
	state *memState
}

func (t *memTx) fail(op string) error {
	if err, ok := t.store.failOn[op]; ok {
		delete(t.store.failOn, op)
		return err
	}
	return nil
}

func (t *memTx) CreateUser(_ context.Context, username, passwordHash, phone string) (model.User, error) {
	if err := t.fail("CreateUser"); err != nil {
		return model.User{}, err
	}
	if _, ok := t.state.usernames[username]; ok {
		return model.User{}, errs.ErrLoginAlreadyExists
	}
	t.state.nextUserID++
	u := model.User{ID: t.state.nextUserID, Username: username, Phone: phone, CreatedAt: time.Now()}
	t.state.users[u.ID] = u
	t.state.usernames[username] = u.ID
	return u, nil
}

func (t *memTx) LockUserPoints(_ context.Context, userID int64) (int64, error) {
	if err := t.fail("LockUserPoints"); err != nil {
		return 0, err
	}
	u, ok := t.state.users[userID]
	if !ok {
		return 0, errs.ErrUserNotFound
	}
	return u.Points, nil
}

func (t *memTx) SetUserPoints(_ context.Context, userID int64, points int64) error {
	if err := t.fail("SetUserPoints"); err != nil {
		return err
	}
	if points < 0 {
		return errs.Storage(fmt.Errorf("check constraint users_points_check"), "update points")
	}
	u := t.state.users[userID]
	u.Points = points
	t.state.users[userID] = u
	return nil
}

func (t *memTx) InsertPointTransaction(_ context.Context, pt model.PointTransaction) error {
	if err := t.fail("InsertPointTransaction"); err != nil {
		return err
	}
	pt.ID = int64(len(t.state.points) + 1)
	t.state.points = append(t.state.points, pt)
	return nil
}

func (t *memTx) OrderPoints(_ context.Context, orderID string, kind model.TransactionType) (int64, error) {
	var sum int64
	for _, pt := range t.state.points {
		if pt.OrderID != nil && *pt.OrderID == orderID && pt.Type == kind {
			sum += pt.Points
		}
	}
	return sum, nil
}

func (t *memTx) InsertOrder(_ context.Context, order model.Order) error {
	if err := t.fail("InsertOrder"); err != nil {
		return err
	}
	if _, ok := t.state.orders[order.ID]; ok {
		return errs.Mark(fmt.Errorf("duplicate order id %s", order.ID), errs.ErrUniquenessConflict)
	}
	order.Items = nil
	t.state.orders[order.ID] = order
	return nil
}

func (t *memTx) InsertOrderItem(_ context.Context, orderID string, item model.OrderItem) error {
	if err := t.fail("InsertOrderItem"); err != nil {
		return err
	}
	if _, ok := t.state.orders[orderID]; !ok {
		return errs.Storage(fmt.Errorf("foreign key order_items_order_id_fkey"), "insert item")
	}
	t.state.items[orderID] = append(t.state.items[orderID], item)
	return nil
}

func (t *memTx) OrderItems(_ context.Context, orderID string) ([]model.OrderItem, error) {
	return append([]model.OrderItem(nil), t.state.items[orderID]...), nil
}

func (t *memTx) LockOrder(_ context.Context, orderID string) (model.Order, error) {
	o, ok := t.state.orders[orderID]
	if !ok {
		return model.Order{}, errs.ErrOrderNotFound
	}
	return o, nil
}

func (t *memTx) SetOrderPaid(_ context.Context, orderID string, ref *string) error {
	if err := t.fail("SetOrderPaid"); err != nil {
		return err
	}
	o := t.state.orders[orderID]
	o.Status = model.Paid
	o.PaymentReference = ref
	t.state.orders[orderID] = o
	return nil
}

func (t *memTx) SetOrderStatus(_ context.Context, orderID string, status model.OrderStatus) error {
	o := t.state.orders[orderID]
	o.Status = status
	t.state.orders[orderID] = o
	return nil
}

func (t *memTx) InsertCoupon(_ context.Context, c model.Coupon) (model.Coupon, error) {
	if err := t.fail("InsertCoupon"); err != nil {
		return model.Coupon{}, err
	}
	if _, ok := t.state.coupons[c.Code]; ok {
		return model.Coupon{}, errs.Mark(fmt.Errorf("duplicate coupon code %s", c.Code), errs.ErrUniquenessConflict)
	}
	c.ID = int64(len(t.state.coupons) + 1)
	t.state.coupons[c.Code] = c
	return c, nil
}

func (t *memTx) LockCoupon(_ context.Context, code string) (model.Coupon, error) {
	c, ok := t.state.coupons[code]
	if !ok {
		return model.Coupon{}, errs.ErrCouponNotFound
	}
	return c, nil
}

func (t *memTx) SetCouponUsed(_ context.Context, code string, usedAt *time.Time) error {
	c := t.state.coupons[code]
	c.IsUsed = usedAt != nil
	c.UsedAt = usedAt
	t.state.coupons[code] = c
	return nil
}

func (t *memTx) InsertAdminLog(_ context.Context, entry model.AdminLog) error {
	t.state.logs = append(t.state.logs, entry)
	return nil
}

// seqIDs hands out scripted identifiers, then numbered ones.
type seqIDs struct {
	mu      sync.Mutex
	orders  []string
	coupons []string
	n       int
}

func (g *seqIDs) OrderID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.orders) > 0 {
		id := g.orders[0]
		g.orders = g.orders[1:]
		return id
	}
	g.n++
	return fmt.Sprintf("ORD%d", g.n)
}

func (g *seqIDs) CouponCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.coupons) > 0 {
		code := g.coupons[0]
		g.coupons = g.coupons[1:]
		return code
	}
	g.n++
	return fmt.Sprintf("CPN%d", g.n)
}
