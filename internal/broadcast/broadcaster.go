package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/filswan/go-swan-lib/logs"

	"github.com/lagrangedao/go-akash-deployer/constants"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
	"github.com/lagrangedao/go-akash-deployer/internal/metrics"
)

// TxResult is the winning endpoint's report of an included transaction.
type TxResult struct {
	TxHash   string
	Height   int64
	Code     uint32
	RawLog   string
	Endpoint string
}

type Config struct {
	ChainID       string
	Denom         string
	GasPrice      string
	GasAdjustment string
}

// Broadcaster signs transactions once and submits the same bytes to every
// ledger endpoint concurrently. The first endpoint that sees the transaction
// included with code 0 wins.
type Broadcaster struct {
	querier *ledger.Querier

	chainID         string
	denom           string
	gasPrice        math.LegacyDec
	gasAdjustment   math.LegacyDec
	confirmTimeout  time.Duration
	confirmInterval time.Duration

	// one transaction per account sequence at a time
	lk sync.Mutex
}

type Option func(*Broadcaster)

func WithConfirm(timeout, interval time.Duration) Option {
	return func(b *Broadcaster) {
		b.confirmTimeout = timeout
		b.confirmInterval = interval
	}
}

func NewBroadcaster(querier *ledger.Querier, cfg Config, opts ...Option) (*Broadcaster, error) {
	gasPrice, err := math.LegacyNewDecFromStr(valueOr(cfg.GasPrice, constants.DefaultGasPrice))
	if err != nil {
		return nil, fmt.Errorf("invalid gas price %q, error: %w", cfg.GasPrice, err)
	}
	gasAdjustment, err := math.LegacyNewDecFromStr(valueOr(cfg.GasAdjustment, constants.DefaultGasAdjustment))
	if err != nil {
		return nil, fmt.Errorf("invalid gas adjustment %q, error: %w", cfg.GasAdjustment, err)
	}

	b := &Broadcaster{
		querier:         querier,
		chainID:         valueOr(cfg.ChainID, constants.DefaultChainId),
		denom:           valueOr(cfg.Denom, constants.DefaultDenom),
		gasPrice:        gasPrice,
		gasAdjustment:   gasAdjustment,
		confirmTimeout:  constants.TxConfirmTimeout,
		confirmInterval: constants.TxConfirmInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Fee returns the gas limit and fee for a transaction that simulated at
// gasUsed: the gas is scaled by the adjustment and both are rounded up.
func (b *Broadcaster) Fee(gasUsed uint64) ledger.Fee {
	gas := math.LegacyNewDec(int64(gasUsed)).Mul(b.gasAdjustment).Ceil().TruncateInt64()
	amount := math.LegacyNewDec(gas).Mul(b.gasPrice).Ceil().TruncateInt64()
	return ledger.Fee{
		Amount:   ledger.Coin{Denom: b.denom, Amount: strconv.FormatInt(amount, 10)},
		GasLimit: uint64(gas),
	}
}

// Broadcast signs msgs for signer, estimates the fee through simulation and
// fans the transaction out to all endpoints. It returns the first successful
// inclusion, or NoEndpointSucceededError carrying every attempt.
func (b *Broadcaster) Broadcast(ctx context.Context, signer ledger.Signer, msgs []ledger.Msg, memo string) (*TxResult, error) {
	b.lk.Lock()
	defer b.lk.Unlock()

	account, err := b.querier.Account(ctx, signer.Address())
	if err != nil {
		return nil, fmt.Errorf("failed get account %s, error: %w", signer.Address(), err)
	}

	params := ledger.TxParams{
		ChainID:       b.chainID,
		AccountNumber: account.AccountNumber,
		Sequence:      account.Sequence,
		Memo:          memo,
	}
	simTx, err := ledger.SignTx(signer, msgs, params)
	if err != nil {
		return nil, err
	}
	gasUsed, err := b.querier.Simulate(ctx, simTx)
	if err != nil {
		return nil, fmt.Errorf("failed simulate %s, error: %w", memo, err)
	}

	params.Fee = b.Fee(gasUsed)
	txBytes, err := ledger.SignTx(signer, msgs, params)
	if err != nil {
		return nil, err
	}
	logs.GetLogger().Infof("broadcasting %s, sequence: %d, gas: %d, fee: %s", memo, params.Sequence, params.Fee.GasLimit, params.Fee.Amount)

	start := time.Now()
	result, err := b.fanOut(ctx, txBytes)
	if err != nil {
		return nil, err
	}
	metrics.BroadcastDuration.WithLabelValues(memo).Observe(time.Since(start).Seconds())
	logs.GetLogger().Infof("%s included, txhash: %s, height: %d, endpoint: %s", memo, result.TxHash, result.Height, result.Endpoint)
	return result, nil
}

type outcome struct {
	attempt Attempt
	result  *TxResult
}

func (b *Broadcaster) fanOut(ctx context.Context, txBytes []byte) (*TxResult, error) {
	endpoints := b.querier.Pool().Endpoints()
	fanCtx, cancel := context.WithCancel(ctx)

	outcomes := make(chan outcome, len(endpoints))
	for _, ep := range endpoints {
		go func(ep string) {
			outcomes <- b.submit(fanCtx, ep, txBytes)
		}(ep)
	}

	var attempts []Attempt
	for i := 0; i < len(endpoints); i++ {
		var o outcome
		select {
		case o = <-outcomes:
		case <-ctx.Done():
			cancel()
			go drain(outcomes, len(endpoints)-i)
			return nil, ctx.Err()
		}
		record(o)
		if o.result != nil {
			cancel()
			go drain(outcomes, len(endpoints)-i-1)
			return o.result, nil
		}
		attempts = append(attempts, o.attempt)
	}
	cancel()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, &NoEndpointSucceededError{Attempts: attempts}
}

// drain collects the outcomes of the endpoints still running after a winner
// was picked or the caller gave up, so that every attempt is logged.
func drain(outcomes <-chan outcome, remaining int) {
	for i := 0; i < remaining; i++ {
		record(<-outcomes)
	}
}

func record(o outcome) {
	if o.result != nil {
		metrics.BroadcastAttempts.WithLabelValues(o.attempt.Endpoint, "success").Inc()
		return
	}
	metrics.BroadcastAttempts.WithLabelValues(o.attempt.Endpoint, "failure").Inc()
	if errors.Is(o.attempt.Err, context.Canceled) {
		logs.GetLogger().Debugf("broadcast attempt cancelled, %s", o.attempt)
		return
	}
	logs.GetLogger().Warnf("broadcast attempt failed, %s", o.attempt)
}

func (b *Broadcaster) submit(ctx context.Context, ep string, txBytes []byte) outcome {
	client := b.querier.Dial(ep)
	failed := func(err error) outcome {
		if ledger.IsEndpointUnavailable(err) {
			b.querier.Pool().MarkFailed(ep)
		}
		return outcome{attempt: Attempt{Endpoint: ep, Code: constants.LocalFailureCode, Err: err}}
	}

	resp, err := client.BroadcastTx(ctx, txBytes)
	if err != nil {
		return failed(err)
	}
	if resp.Code != 0 {
		return outcome{attempt: Attempt{Endpoint: ep, Code: resp.Code, RawLog: resp.RawLog}}
	}

	included, err := b.awaitInclusion(ctx, client, resp.TxHash)
	if err != nil {
		return failed(err)
	}
	attempt := Attempt{Endpoint: ep, Code: included.Code, RawLog: included.RawLog}
	if included.Code != 0 {
		return outcome{attempt: attempt}
	}
	return outcome{
		attempt: attempt,
		result: &TxResult{
			TxHash:   included.TxHash,
			Height:   included.Height,
			Code:     included.Code,
			RawLog:   included.RawLog,
			Endpoint: ep,
		},
	}
}

func (b *Broadcaster) awaitInclusion(ctx context.Context, client ledger.Client, hash string) (*ledger.TxResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, b.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(b.confirmInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("tx %s not included after %s", hash, b.confirmTimeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
			resp, err := client.GetTx(ctx, hash)
			if err != nil {
				if errors.Is(err, ledger.ErrNotFound) || ledger.IsEndpointUnavailable(err) {
					continue
				}
				return nil, err
			}
			if resp.TxHash == "" {
				resp.TxHash = hash
			}
			return resp, nil
		}
	}
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
