package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/internal/audit"
	"github.com/ledgercore/ledgercore/internal/inventory"
	"github.com/ledgercore/ledgercore/internal/masterdata"
	"github.com/ledgercore/ledgercore/internal/numbering"
	"github.com/ledgercore/ledgercore/internal/store"
)

// Step is a stage of an operation.
type Step string

const (
	StepValidating Step = "Validating"
	StepNumbering  Step = "Numbering"
	StepMutating   Step = "Mutating"
	StepPosting    Step = "Posting"
	StepAuditing   Step = "Auditing"
	StepCommitted  Step = "Committed"
	StepFailed     Step = "Failed"
)

// StepError reports the step an operation failed in. It unwraps to the
// underlying typed error.
type StepError struct {
	Operation string
	Step      Step
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed while %s: %v", e.Operation, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Config tunes business rules and limits.
type Config struct {
	OperationTimeout         time.Duration
	DefaultTaxRate           decimal.Decimal
	AllowNegativeAdjustments bool
	PostCostOfSales          bool
}

// Coordinator runs every value-moving operation in one atomic scope:
// numbering, stock, ledger and audit effects commit or roll back together.
type Coordinator struct {
	store     store.Store
	directory masterdata.Directory
	numbers   *numbering.Generator
	poster    *accounting.Poster
	chart     *accounting.Chart
	mutator   *inventory.Mutator
	recorder  *audit.Recorder
	validate  *validator.Validate
	metrics   *Metrics
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

// New constructs a Coordinator. metrics may be nil.
func New(st store.Store, directory masterdata.Directory, cfg Config, logger *slog.Logger, metrics *Metrics) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	numbers := numbering.NewGenerator()
	return &Coordinator{
		store:     st,
		directory: directory,
		numbers:   numbers,
		poster:    accounting.NewPoster(numbers),
		chart:     accounting.NewChart(),
		mutator:   inventory.NewMutator(),
		recorder:  audit.NewRecorder(),
		validate:  newValidator(),
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithNow overrides the clock of the coordinator and its components.
func (c *Coordinator) WithNow(now func() time.Time) {
	if now == nil {
		return
	}
	c.now = now
	c.numbers.WithNow(now)
	c.poster.WithNow(now)
	c.chart.WithNow(now)
	c.mutator.WithNow(now)
	c.recorder.WithNow(now)
}

// run carries the state of one operation through its steps.
type run struct {
	c     *Coordinator
	op    string
	step  Step
	ctx   context.Context
	scope store.Scope
}

// enter moves to step after checking for cancellation.
func (r *run) enter(step Step) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	r.step = step
	r.c.logger.Debug("operation step", slog.String("operation", r.op), slog.String("step", string(step)))
	return nil
}

// record writes the audit entry for the operation.
func (r *run) record(entry audit.Entry) error {
	if err := r.enter(StepAuditing); err != nil {
		return err
	}
	_, err := r.c.recorder.Record(r.ctx, r.scope.Audit, entry)
	return err
}

// execute runs fn inside one scope and drives the state machine around it.
func (c *Coordinator) execute(ctx context.Context, op string, fn func(r *run) error) error {
	if c.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.OperationTimeout)
		defer cancel()
	}
	start := time.Now()
	r := &run{c: c, op: op, step: StepValidating}
	err := c.store.WithTx(ctx, func(ctx context.Context, scope store.Scope) error {
		r.ctx = ctx
		r.scope = scope
		if err := r.enter(StepValidating); err != nil {
			return err
		}
		return fn(r)
	})
	if err != nil {
		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			stepErr = &StepError{Operation: op, Step: r.step, Err: err}
		}
		c.metrics.observe(op, StepFailed, stepErr.Step, time.Since(start))
		c.logger.Warn("operation failed",
			slog.String("operation", op),
			slog.String("step", string(stepErr.Step)),
			slog.Any("error", stepErr.Err))
		return stepErr
	}
	c.metrics.observe(op, StepCommitted, "", time.Since(start))
	c.logger.Debug("operation committed", slog.String("operation", op), slog.Duration("took", time.Since(start)))
	return nil
}

// read runs a query in a scope without the state machine.
func (c *Coordinator) read(ctx context.Context, op string, fn func(ctx context.Context, scope store.Scope) error) error {
	if err := c.store.WithTx(ctx, fn); err != nil {
		return &StepError{Operation: op, Step: StepValidating, Err: err}
	}
	return nil
}
