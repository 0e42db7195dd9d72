package services

import (
	"context"

	"loancollect/database"
	"loancollect/models"
)

// CreditedMember is a member whose loan has been disbursed.
type CreditedMember struct {
	MemberID uint              `json:"member_id"`
	Name     string            `json:"name"`
	LoanID   uint              `json:"loan_id"`
	Status   models.LoanStatus `json:"status"`
}

// MemberService lists members of a center
type MemberService struct {
	store database.Store
}

func NewMemberService(store database.Store) *MemberService {
	return &MemberService{store: store}
}

// ListCredited returns the members of a center holding a CREDITED loan,
// paired with the first such loan.
func (s *MemberService) ListCredited(ctx context.Context, centerID uint) ([]CreditedMember, error) {
	members, err := s.store.ListMembersWithLoans(ctx, centerID)
	if err != nil {
		return nil, newStoreError("list members", "Failed to fetch members", err)
	}

	result := []CreditedMember{}
	for _, m := range members {
		for _, loan := range m.Loans {
			if loan.Status != models.LoanStatusCredited {
				continue
			}
			result = append(result, CreditedMember{
				MemberID: m.ID,
				Name:     m.Name,
				LoanID:   loan.ID,
				Status:   loan.Status,
			})
			break
		}
	}
	return result, nil
}
