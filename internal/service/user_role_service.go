package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"maplocate/api/internal/apperror"
	"maplocate/api/internal/models"
	"maplocate/api/internal/repository"
)

type UserRoleService struct {
	db  repository.DBTX
	tx  *repository.TxRunner
	log zerolog.Logger
}

func NewUserRoleService(db repository.DBTX, tx *repository.TxRunner, log zerolog.Logger) *UserRoleService {
	return &UserRoleService{db: db, tx: tx, log: log}
}

type ReconcileResult struct {
	Roles   []models.Role
	Added   int64
	Removed int64
}

// UpdateUserRoles makes the role set of userID equal to desired. Only the difference
// between the current and the desired set is written, inside one transaction that
// holds a row lock on the user for its duration.
func (s *UserRoleService) UpdateUserRoles(ctx context.Context, userID int64, desired []int64) (ReconcileResult, error) {
	if dups := findDuplicates(desired); len(dups) > 0 {
		roleReconcileTotal.WithLabelValues("rejected").Inc()
		return ReconcileResult{}, apperror.Validation("role_ids", "duplicate role ids: "+formatIDs(dups))
	}

	var result ReconcileResult
	err := s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := repository.NewUserRepository(tx).LockByID(ctx, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperror.NotFound()
			}
			return fmt.Errorf("lock user: %w", err)
		}

		links := repository.NewUserRoleRepository(tx)
		if err := links.StageDesired(ctx, userID, desired); err != nil {
			return err
		}

		unknown, err := links.UnknownRoleIDs(ctx)
		if err != nil {
			return err
		}
		if len(unknown) > 0 {
			return apperror.Validation("role_ids", "unknown role ids: "+formatIDs(unknown))
		}

		if result.Removed, err = links.RemoveUndesired(ctx, userID); err != nil {
			return err
		}
		if result.Added, err = links.AddMissing(ctx, userID); err != nil {
			return err
		}

		result.Roles, err = repository.NewRoleRepository(tx).ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		if _, ok := apperror.As(err); ok {
			roleReconcileTotal.WithLabelValues("rejected").Inc()
		} else {
			roleReconcileTotal.WithLabelValues("failed").Inc()
		}
		if repository.IsIntegrityViolation(err) {
			s.log.Warn().Err(err).Int64("uid", userID).Msg("role update rejected by constraint")
			return ReconcileResult{}, apperror.Validation("role_ids", "role assignment conflicts with stored data")
		}
		return ReconcileResult{}, err
	}

	roleReconcileTotal.WithLabelValues("ok").Inc()
	roleAssignmentChanges.WithLabelValues("add").Add(float64(result.Added))
	roleAssignmentChanges.WithLabelValues("remove").Add(float64(result.Removed))

	s.log.Debug().
		Int64("uid", userID).
		Int64("added", result.Added).
		Int64("removed", result.Removed).
		Msg("user roles reconciled")
	return result, nil
}

// GetUserRoles returns the roles of userID ordered by id.
func (s *UserRoleService) GetUserRoles(ctx context.Context, userID int64) ([]models.Role, error) {
	if _, err := repository.NewUserRepository(s.db).GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound()
		}
		return nil, err
	}
	return repository.NewRoleRepository(s.db).ListByUser(ctx, userID)
}

// findDuplicates returns every id occurring more than once, ascending.
func findDuplicates(ids []int64) []int64 {
	seen := make(map[int64]int, len(ids))
	var dups []int64
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	}
	slices.Sort(dups)
	return dups
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
