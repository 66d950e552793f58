// Package detect runs the fraud rule set over fuel transactions and
// aggregates fired rules into scored, banded anomaly results.
package detect

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/refdata"
	"github.com/fuelguard/fuelguard/internal/rules"
)

// Detector scores transactions against the rule set. It is stateless
// apart from configuration and safe for concurrent use.
type Detector struct {
	cfg    domain.DetectionConfig
	logger *slog.Logger
}

// New creates a detector with the given thresholds and banding.
func New(cfg domain.DetectionConfig, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg, logger: logger}
}

// Config returns the detector's detection configuration.
func (d *Detector) Config() domain.DetectionConfig {
	return d.cfg
}

// DetectBatch scores every transaction in the request. Results come
// back in input order, one per well-formed transaction; malformed
// transactions are reported in Errors and never fail the batch.
//
// Scoring a transaction depends only on the request contents, so
// re-running the same batch yields identical results, and reordering
// the input reorders the output without changing any verdict.
func (d *Detector) DetectBatch(ctx context.Context, req *domain.DetectRequest) (*domain.DetectResponse, error) {
	start := time.Now()
	now := start.UTC()

	resp := &domain.DetectResponse{}

	valid := make([]int, 0, len(req.Transactions))
	for i := range req.Transactions {
		if reason, ok := validate(&req.Transactions[i]); !ok {
			resp.Errors = append(resp.Errors, domain.EvaluationError{
				Index:         i,
				TransactionID: req.Transactions[i].ID,
				Reason:        reason,
			})
			continue
		}
		valid = append(valid, i)
	}

	idx := refdata.New(req.Vehicles, req.Projects, req.Workers)

	validTxs := make([]domain.Transaction, len(valid))
	for n, i := range valid {
		validTxs[n] = req.Transactions[i]
	}
	prices := rules.NewPriceStats(validTxs)

	// Group by vehicle; rules with history semantics only ever look at
	// the same vehicle's transactions.
	groups := make(map[string][]int)
	for _, i := range valid {
		vid := req.Transactions[i].VehicleID
		groups[vid] = append(groups[vid], i)
	}

	// slots is indexed by input position so the output preserves input
	// order regardless of per-vehicle scheduling.
	slots := make([]*domain.AnomalyResult, len(req.Transactions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, indices := range groups {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			history, positions := d.orderHistory(req.Transactions, indices)
			for pos, inputIdx := range positions {
				rc := &rules.Context{
					Index:   idx,
					History: history,
					Pos:     pos,
					Prices:  prices,
					Config:  d.cfg,
				}
				result := d.evaluate(&history[pos], rc, now)
				slots[inputIdx] = &result
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp.Results = make([]domain.AnomalyResult, 0, len(valid))
	for _, r := range slots {
		if r != nil {
			resp.Results = append(resp.Results, *r)
		}
	}

	d.logger.Info("batch detection complete",
		"transactions", len(req.Transactions),
		"scored", len(resp.Results),
		"rejected", len(resp.Errors),
		"duration_ms", time.Since(start).Milliseconds())

	return resp, nil
}

// Evaluate scores a single transaction against prior history for the
// same vehicle. History may be unsorted and need not contain tx; the
// detector appends tx and sorts before evaluation. Used by the stream
// worker where transactions arrive one at a time.
func (d *Detector) Evaluate(ctx context.Context, tx domain.Transaction, snapshot *domain.RefSnapshot, history []domain.Transaction) (domain.AnomalyResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.AnomalyResult{}, err
	}
	if reason, ok := validate(&tx); !ok {
		return domain.AnomalyResult{}, domain.EvaluationError{TransactionID: tx.ID, Reason: reason}
	}

	full := make([]domain.Transaction, 0, len(history)+1)
	for _, h := range history {
		if h.ID == tx.ID {
			continue
		}
		full = append(full, h)
	}
	full = append(full, tx)
	sortChronological(full)

	pos := 0
	for i := range full {
		if full[i].ID == tx.ID {
			pos = i
			break
		}
	}

	rc := &rules.Context{
		Index:   refdata.FromSnapshot(snapshot),
		History: full,
		Pos:     pos,
		Prices:  rules.NewPriceStats(full),
		Config:  d.cfg,
	}

	return d.evaluate(&full[pos], rc, time.Now().UTC()), nil
}

// evaluate runs every rule over one positioned transaction.
func (d *Detector) evaluate(tx *domain.Transaction, rc *rules.Context, now time.Time) domain.AnomalyResult {
	var flags []rules.Flag
	for _, rule := range rules.All() {
		if flag := rule.Evaluate(tx, rc); flag != nil {
			flags = append(flags, *flag)
		}
	}

	result := buildResult(tx, flags, d.cfg, now)
	if result.IsAnomalous {
		d.logger.Debug("anomaly detected",
			"transaction_id", tx.ID,
			"vehicle_id", tx.VehicleID,
			"risk_score", result.RiskScore,
			"severity", result.Severity,
			"rules", result.RuleIDs)
	}
	return result
}

// orderHistory extracts one vehicle's transactions in chronological
// order and maps each history position back to its input index.
func (d *Detector) orderHistory(txs []domain.Transaction, indices []int) ([]domain.Transaction, []int) {
	ordered := make([]int, len(indices))
	copy(ordered, indices)

	sort.SliceStable(ordered, func(a, b int) bool {
		ta, tb := txs[ordered[a]].Timestamp, txs[ordered[b]].Timestamp
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return txs[ordered[a]].ID < txs[ordered[b]].ID
	})

	history := make([]domain.Transaction, len(ordered))
	for pos, inputIdx := range ordered {
		history[pos] = txs[inputIdx]
	}
	return history, ordered
}

func sortChronological(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.Before(txs[j].Timestamp)
		}
		return txs[i].ID < txs[j].ID
	})
}

// validate rejects transactions the rule set cannot score.
func validate(tx *domain.Transaction) (string, bool) {
	switch {
	case tx.ID == "":
		return "missing transaction id", false
	case tx.Timestamp.IsZero():
		return "missing timestamp", false
	case tx.Liters <= 0:
		return "liters must be positive", false
	case tx.PricePerLiter <= 0:
		return "price per liter must be positive", false
	}
	return "", true
}
