package repository

import (
	"context"
	"errors"
	"fmt"

	"predictor/database"
	"predictor/events"
	"predictor/service"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

const errNotStarted = "unit of work not started - call Begin() first"

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	predictionRepo   service.PredictionRepository
	betRepo          service.BetRepository
	resultRepo       service.ResultRepository
	statsRepo        service.UserStatisticsRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.predictionRepo = newPredictionRepositoryWithTx(tx)
	u.betRepo = newBetRepositoryWithTx(tx)
	u.resultRepo = newResultRepositoryWithTx(tx)
	u.statsRepo = newUserStatisticsRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and then publishes the events collected during it
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// The commit stands even if delivery fails
	if err := u.transactionalBus.Flush(u.ctx); err != nil {
		log.WithError(err).Warn("Failed to publish events after commit")
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil
	u.transactionalBus.Discard()

	return nil
}

// PredictionRepository returns the prediction repository for this unit of work
func (u *unitOfWork) PredictionRepository() service.PredictionRepository {
	if u.predictionRepo == nil {
		panic(errNotStarted)
	}
	return u.predictionRepo
}

// BetRepository returns the bet repository for this unit of work
func (u *unitOfWork) BetRepository() service.BetRepository {
	if u.betRepo == nil {
		panic(errNotStarted)
	}
	return u.betRepo
}

// ResultRepository returns the result repository for this unit of work
func (u *unitOfWork) ResultRepository() service.ResultRepository {
	if u.resultRepo == nil {
		panic(errNotStarted)
	}
	return u.resultRepo
}

// UserStatisticsRepository returns the statistics repository for this unit of work
func (u *unitOfWork) UserStatisticsRepository() service.UserStatisticsRepository {
	if u.statsRepo == nil {
		panic(errNotStarted)
	}
	return u.statsRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
