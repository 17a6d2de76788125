package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-payroll/meridian/internal/shared"
)

// maxBatchSize bounds one commit call.
const maxBatchSize = 100

// RepositoryPort defines the transactional batch store.
type RepositoryPort interface {
	CommitBatch(ctx context.Context, changes []Change, changedBy uuid.UUID, reason string) ([]Affected, error)
}

// Service implements the assignment commit operation.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds the assignment service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// CommitInput is a batch of reassignments applied as one atomic unit.
type CommitInput struct {
	Changes   []Change
	ChangedBy uuid.UUID
	Reason    string
}

// Commit applies every change or none. Validation failures and stale
// assignments surface in the structured result, never as a partial
// write: the caller observes either the full new state or the old one.
func (s *Service) Commit(ctx context.Context, input CommitInput) (*CommitResult, error) {
	if len(input.Changes) == 0 {
		return &CommitResult{Success: false, Message: "no changes supplied", Errors: []ChangeError{}}, nil
	}
	if len(input.Changes) > maxBatchSize {
		return &CommitResult{
			Success: false,
			Message: fmt.Sprintf("batch exceeds %d changes", maxBatchSize),
			Errors:  []ChangeError{},
		}, nil
	}
	for i, c := range input.Changes {
		if c.FromConsultantID == c.ToConsultantID {
			return rejected(input.Changes, i, "from and to consultant are identical"), nil
		}
	}

	affected, err := s.repo.CommitBatch(ctx, input.Changes, input.ChangedBy, input.Reason)
	if err != nil {
		var batchErr *BatchError
		if errors.As(err, &batchErr) {
			s.logger.Warn("assignment batch rejected",
				slog.Int("index", batchErr.Index),
				slog.Int("batch_size", len(input.Changes)),
				slog.Any("error", batchErr.Cause))
			return rejected(input.Changes, batchErr.Index, rejectionMessage(batchErr.Cause)), nil
		}
		return nil, err
	}

	s.logger.Info("assignments committed",
		slog.Int("count", len(affected)),
		slog.String("changed_by", input.ChangedBy.String()))
	return &CommitResult{
		Success:             true,
		Message:             fmt.Sprintf("%d assignments updated", len(affected)),
		Errors:              []ChangeError{},
		AffectedAssignments: affected,
	}, nil
}

func rejected(changes []Change, index int, message string) *CommitResult {
	c := changes[index]
	return &CommitResult{
		Success: false,
		Message: "no changes applied",
		Errors: []ChangeError{{
			Index:     index,
			PayrollID: c.PayrollID,
			Date:      c.Date,
			Message:   message,
		}},
	}
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, shared.ErrStaleAssignment):
		return "assignment changed since it was loaded"
	case errors.Is(err, shared.ErrNotFound):
		return "payroll date not found"
	case errors.Is(err, ErrNoAssignment):
		return "date has no assignment to change"
	default:
		return shared.UserSafeMessage(err)
	}
}
