package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"loancollect/models"
)

// MemoryStore is an in-process Store used by tests and local tooling.
// Transactions are serialized and roll back by restoring a snapshot.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users         []models.User
	centers       []models.Center
	members       []models.Member
	loans         []models.Loan
	installments  []models.Installment
	denominations []models.Denomination
	markers       []models.ScheduleMarker
	nextID        uint

	// FailOn makes the named operation return the given error, for exercising failure paths.
	FailOn map[string]error
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{FailOn: map[string]error{}}
}

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) fail(op string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn[op]
}

// AddUser seeds a user and returns its id.
func (s *MemoryStore) AddUser(u models.User) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	u.Email = strings.ToLower(u.Email)
	s.users = append(s.users, u)
	return u.ID
}

// AddCenter seeds a center and returns its id.
func (s *MemoryStore) AddCenter(c models.Center) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.centers = append(s.centers, c)
	return c.ID
}

// AddMember seeds a member and returns its id.
func (s *MemoryStore) AddMember(m models.Member) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	s.members = append(s.members, m)
	return m.ID
}

// AddLoan seeds a loan and returns its id.
func (s *MemoryStore) AddLoan(l models.Loan) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.id()
	s.loans = append(s.loans, l)
	return l.ID
}

// AddInstallment seeds an installment and returns its id.
func (s *MemoryStore) AddInstallment(i models.Installment) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	i.ID = s.id()
	if i.Status == "" {
		i.Status = models.InstallmentStatusPending
	}
	s.installments = append(s.installments, i)
	return i.ID
}

// Installments returns a copy of a loan's installments ordered by week.
func (s *MemoryStore) Installments(loanID uint) []models.Installment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loanInstallments(loanID)
}

// Denominations returns a copy of the stored denomination rows.
func (s *MemoryStore) Denominations() []models.Denomination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Denomination(nil), s.denominations...)
}

// ScheduleMarkers returns a copy of the stored schedule markers.
func (s *MemoryStore) ScheduleMarkers() []models.ScheduleMarker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ScheduleMarker(nil), s.markers...)
}

func (s *MemoryStore) loanInstallments(loanID uint) []models.Installment {
	var out []models.Installment
	for _, inst := range s.installments {
		if inst.LoanID == loanID {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekNo < out[j].WeekNo })
	return out
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FindUserByEmail"); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListCenters(ctx context.Context, activeOnly bool) ([]models.Center, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListCenters"); err != nil {
		return nil, err
	}
	out := []models.Center{}
	for _, c := range s.centers {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetCenter(ctx context.Context, id uint) (*models.Center, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.centers {
		if c.ID == id {
			found := c
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) updateCenter(id uint, fn func(*models.Center)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateCenter"); err != nil {
		return err
	}
	for i := range s.centers {
		if s.centers[i].ID == id {
			fn(&s.centers[i])
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) SetCenterActive(ctx context.Context, id uint, active bool) error {
	return s.updateCenter(id, func(c *models.Center) { c.IsActive = active })
}

func (s *MemoryStore) SetCenterDayClosed(ctx context.Context, id uint, closed bool, at *time.Time) error {
	return s.updateCenter(id, func(c *models.Center) {
		c.DayClosed = closed
		c.DayClosedDate = at
	})
}

func (s *MemoryStore) ReopenCentersClosedBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ReopenCentersClosedBefore"); err != nil {
		return 0, err
	}
	var n int64
	for i := range s.centers {
		c := &s.centers[i]
		if c.DayClosed && c.DayClosedDate != nil && c.DayClosedDate.Before(before) {
			c.DayClosed = false
			c.DayClosedDate = nil
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListMembersWithLoans(ctx context.Context, centerID uint) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListMembersWithLoans"); err != nil {
		return nil, err
	}
	out := []models.Member{}
	for _, m := range s.members {
		if m.CenterID != centerID {
			continue
		}
		m.Loans = nil
		for _, l := range s.loans {
			if l.MemberID == m.ID {
				m.Loans = append(m.Loans, l)
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *MemoryStore) FindMemberLoanID(ctx context.Context, memberID uint) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FindMemberLoanID"); err != nil {
		return 0, err
	}
	for _, l := range s.loans {
		if l.MemberID == memberID {
			return l.ID, nil
		}
	}
	return 0, ErrNotFound
}

func (s *MemoryStore) NextPendingInstallment(ctx context.Context, loanID uint) (*models.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("NextPendingInstallment"); err != nil {
		return nil, err
	}
	for _, inst := range s.loanInstallments(loanID) {
		if inst.Status == models.InstallmentStatusPending {
			found := inst
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpsertInstallments(ctx context.Context, rows []models.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertInstallments"); err != nil {
		return err
	}
	for _, row := range rows {
		replaced := false
		for i := range s.installments {
			existing := &s.installments[i]
			if existing.LoanID == row.LoanID && existing.WeekNo == row.WeekNo {
				existing.ExpectedAmount = row.ExpectedAmount
				existing.CollectionDate = row.CollectionDate
				replaced = true
				break
			}
		}
		if !replaced {
			row.ID = s.id()
			s.installments = append(s.installments, row)
		}
	}
	return nil
}

func (s *MemoryStore) LockLoanInstallments(ctx context.Context, loanID uint) ([]models.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("LockLoanInstallments"); err != nil {
		return nil, err
	}
	return s.loanInstallments(loanID), nil
}

func (s *MemoryStore) SaveInstallment(ctx context.Context, inst *models.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SaveInstallment"); err != nil {
		return err
	}
	for i := range s.installments {
		if s.installments[i].ID == inst.ID {
			existing := &s.installments[i]
			existing.ExpectedAmount = inst.ExpectedAmount
			existing.PaidAmount = inst.PaidAmount
			existing.Status = inst.Status
			existing.PaidAt = inst.PaidAt
			existing.BatchID = inst.BatchID
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ListInstallmentsByDate(ctx context.Context, date models.Date, status models.InstallmentStatus) ([]models.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListInstallmentsByDate"); err != nil {
		return nil, err
	}
	out := []models.Installment{}
	for _, inst := range s.installments {
		if !inst.CollectionDate.Equal(date) {
			continue
		}
		if status != "" && inst.Status != status {
			continue
		}
		inst.Loan = s.loanWithMember(inst.LoanID)
		out = append(out, inst)
	}
	return out, nil
}

func (s *MemoryStore) loanWithMember(loanID uint) models.Loan {
	for _, l := range s.loans {
		if l.ID != loanID {
			continue
		}
		for _, m := range s.members {
			if m.ID != l.MemberID {
				continue
			}
			for _, c := range s.centers {
				if c.ID == m.CenterID {
					m.Center = c
				}
			}
			l.Member = m
		}
		return l
	}
	return models.Loan{}
}

func (s *MemoryStore) CreateDenomination(ctx context.Context, d *models.Denomination) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateDenomination"); err != nil {
		return err
	}
	d.ID = s.id()
	d.CreatedAt = time.Now()
	s.denominations = append(s.denominations, *d)
	return nil
}

func (s *MemoryStore) CreateScheduleMarker(ctx context.Context, m *models.ScheduleMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateScheduleMarker"); err != nil {
		return err
	}
	m.ID = s.id()
	m.CreatedAt = time.Now()
	s.markers = append(s.markers, *m)
	return nil
}

type memorySnapshot struct {
	centers       []models.Center
	installments  []models.Installment
	denominations []models.Denomination
	markers       []models.ScheduleMarker
	nextID        uint
}

func (s *MemoryStore) snapshot() memorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memorySnapshot{
		centers:       append([]models.Center(nil), s.centers...),
		installments:  append([]models.Installment(nil), s.installments...),
		denominations: append([]models.Denomination(nil), s.denominations...),
		markers:       append([]models.ScheduleMarker(nil), s.markers...),
		nextID:        s.nextID,
	}
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.centers = snap.centers
	s.installments = snap.installments
	s.denominations = snap.denominations
	s.markers = snap.markers
	s.nextID = snap.nextID
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}
