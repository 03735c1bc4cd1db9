// Command sequencer runs the rollup sequencing core described in
// spec.md: mempool admission, the engine-mediated sequencing loop, batch
// building, ExecuteTx submission to L1, and L1 derivation of the safe
// head. Wiring follows the teacher's cmd/geth/config_rollup.go pattern of
// assembling collaborators from a urfave/cli.Context before handing off
// to the long-running service.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/prometheus"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/urfave/cli/v2"

	"github.com/blockblaz/rollup-sequencer/internal/batch"
	"github.com/blockblaz/rollup-sequencer/internal/config"
	"github.com/blockblaz/rollup-sequencer/internal/derivation"
	"github.com/blockblaz/rollup-sequencer/internal/engine"
	"github.com/blockblaz/rollup-sequencer/internal/executetx"
	"github.com/blockblaz/rollup-sequencer/internal/forkchoice"
	"github.com/blockblaz/rollup-sequencer/internal/l1client"
	"github.com/blockblaz/rollup-sequencer/internal/mempool"
	"github.com/blockblaz/rollup-sequencer/internal/seqtypes"
	"github.com/blockblaz/rollup-sequencer/internal/sequencer"
	"github.com/blockblaz/rollup-sequencer/internal/stateoracle"
	"github.com/blockblaz/rollup-sequencer/internal/validator"
)

func main() {
	app := &cli.App{
		Name:  "sequencer",
		Usage: "L2 rollup sequencing core",
		Flags: config.Flags,
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Crit("sequencer: fatal error", "err", err)
	}
}

func run(cliCtx *cli.Context) error {
	cfg, err := config.FromContext(cliCtx)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wal, err := mempool.OpenWAL(cfg.WALPath, mempool.DefaultWALSyncPolicy())
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	defer wal.Close()

	pool, err := mempool.Restore(cfg.WALPath, cfg.MempoolCapacity, wal, revalidateTx)
	if err != nil {
		return fmt.Errorf("restore mempool from wal: %w", err)
	}
	log.Info("sequencer: mempool restored", "size", pool.Size())

	l1, err := l1client.Dial(ctx, cfg.L1Endpoint)
	if err != nil {
		return fmt.Errorf("dial l1: %w", err)
	}
	defer l1.Close()

	var oracle *stateoracle.Oracle
	if cfg.ExecutionRPCEndpoint != "" {
		oracleRPC, err := rpc.DialContext(ctx, cfg.ExecutionRPCEndpoint)
		if err != nil {
			log.Warn("sequencer: state oracle dial failed, validator will rely on cache only", "err", err)
		} else {
			oracle = stateoracle.New(oracleRPC)
		}
	}
	v := validator.New(oracleOrNil(oracle))

	var eng *engine.Client
	if cfg.EngineEndpoint != "" && cfg.EngineSecret != nil {
		eng, err = engine.Dial(ctx, cfg.EngineEndpoint, cfg.EngineSecret)
		if err != nil {
			log.Warn("sequencer: engine dial failed, ticks will degrade to empty blocks", "err", err)
		}
	} else {
		log.Warn("sequencer: engine endpoint/secret not configured, engine calls will fail")
	}
	if eng != nil {
		defer eng.Close()
	}

	fc := forkchoice.New(seqtypes.BlockRef{})
	deriv := derivation.New(l1, nil, fc, 0, seqtypes.BlockRef{})
	batcher := batch.New(cfg.BatchSizeLimit, 0, 0)

	sequencerKey, err := cfg.SequencerSigningKey()
	if err != nil {
		return fmt.Errorf("sequencer key: %w", err)
	}
	exBuilder := executetx.New(executetx.Config{
		ChainID:    big.NewInt(cfg.L1ChainID),
		GasTipCap:  big.NewInt(1),
		GasFeeCap:  big.NewInt(1_000_000_000),
		Gas:        1_000_000,
		SigningKey: sequencerKey,
	}, l1, stateSourceOrNil(oracle))

	loopCfg := sequencer.Config{
		BlockGasLimit: cfg.BlockGasLimit,
		Coinbase:      cfg.SequencerAddress(),
		TxsPerPayload: 1000,
	}
	loop := sequencer.New(loopCfg, pool, engineClientOrNil(eng), fc, deriv, batcher, exBuilder, l1)
	orch := sequencer.NewOrchestrator(pool, v, fc, loop)

	if cfg.MetricsPort > 0 {
		go serveMetrics(cfg.MetricsPort)
	}

	if cfg.EmergencyHalt {
		log.Warn("sequencer: emergency halt flag set, sequencing loop will not start")
	} else {
		go tickLoop(ctx, orch, cfg.TickInterval)
	}

	waitForShutdown()
	log.Info("sequencer: shutting down")
	return nil
}

func tickLoop(ctx context.Context, orch *sequencer.Orchestrator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := orch.Tick(ctx); err != nil {
				log.Crit("sequencer: fatal error in sequencing tick", "err", err)
			}
		}
	}
}

func serveMetrics(port int) {
	addr := fmt.Sprintf(":%d", port)
	http.Handle("/metrics", prometheus.Handler(metrics.DefaultRegistry))
	log.Info("sequencer: metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error("sequencer: metrics server stopped", "err", err)
	}
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

// revalidateTx re-parses and validates a WAL-recovered raw transaction on
// startup, per spec section 4.3: "WAL entries that fail re-validation are
// dropped with a warning."
func revalidateTx(raw []byte) (*seqtypes.Transaction, common.Address, error) {
	tx, err := seqtypes.ParseTransaction(raw)
	if err != nil {
		return nil, common.Address{}, err
	}
	sender, err := tx.Sender()
	if err != nil {
		return nil, common.Address{}, err
	}
	return tx, sender, nil
}

func engineClientOrNil(c *engine.Client) sequencer.EngineClient {
	if c == nil {
		return nilEngineClient{}
	}
	return c
}

// nilEngineClient always reports a transient failure, driving the
// sequencing loop's empty-block degradation path (spec section 4.8) when
// no engine endpoint is configured at all.
type nilEngineClient struct{}

func (nilEngineClient) ForkchoiceUpdate(context.Context, engine.ForkchoiceState, *engine.PayloadAttributes) (engine.ForkchoiceUpdatedResult, error) {
	return engine.ForkchoiceUpdatedResult{}, engine.ErrTransient
}

func (nilEngineClient) GetPayload(context.Context, engine.PayloadID) (engine.ExecutionPayload, error) {
	return engine.ExecutionPayload{}, engine.ErrTransient
}

// oracleOrNil avoids wrapping a nil *stateoracle.Oracle in a non-nil
// validator.StateReader interface value when no execution RPC endpoint
// is configured; the validator's own fallback-cache/ErrNoStateSource
// path then applies from the very first call (spec section 4.4).
func oracleOrNil(o *stateoracle.Oracle) validator.StateReader {
	if o == nil {
		return noStateReader{}
	}
	return o
}

type noStateReader struct{}

func (noStateReader) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return nil, fmt.Errorf("sequencer: no execution rpc endpoint configured")
}

func (noStateReader) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	return 0, fmt.Errorf("sequencer: no execution rpc endpoint configured")
}

// stateSourceOrNil mirrors oracleOrNil for the ExecuteTx builder's
// pre-state commitment dependency; noStateCommitmentSource's error
// surfaces as a transport-class error if a flush is attempted with no
// oracle configured at all.
func stateSourceOrNil(o *stateoracle.Oracle) executetx.StateCommitmentSource {
	if o == nil {
		return noStateCommitmentSource{}
	}
	return o
}

type noStateCommitmentSource struct{}

func (noStateCommitmentSource) BlockRefByNumber(context.Context, *big.Int) (seqtypes.BlockRef, common.Hash, uint64, error) {
	return seqtypes.BlockRef{}, common.Hash{}, 0, fmt.Errorf("sequencer: no execution rpc endpoint configured for pre-state commitment")
}
