package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/interchainx/fusion-escrow/pkg/config"
	"github.com/interchainx/fusion-escrow/pkg/types"
)

// SwapStatus is the service-side view of a tracked swap.
type SwapStatus string

const (
	SwapStatusAwaitingReveal SwapStatus = "awaiting_reveal"
	SwapStatusClaimed        SwapStatus = "claimed"
	SwapStatusExpired        SwapStatus = "expired"
	SwapStatusFailed         SwapStatus = "failed"
)

// TrackedSwap is one deployed swap the service is watching.
type TrackedSwap struct {
	SrcID      common.Address `json:"src_id"`
	DstID      common.Address `json:"dst_id"`
	SecretHash common.Hash    `json:"secret_hash"`
	SrcExpiry  time.Time      `json:"src_expiry"`
	Status     SwapStatus     `json:"status"`
	LastError  string         `json:"last_error,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Service watches the destination chain for secret revelations and claims
// the matching source escrows, with retries. It also marks swaps whose
// source timelock lapses before a reveal.
type Service struct {
	resolver *Resolver
	cfg      config.ResolverConfig
	logger   *zap.Logger

	// Swap tracking, keyed by destination escrow id
	swaps      map[common.Address]*TrackedSwap
	swapsMutex sync.RWMutex

	stopChan chan struct{}
	wg       sync.WaitGroup

	events    <-chan types.Event
	cancelSub func()
}

// NewService creates a service around a resolver.
func NewService(r *Resolver, cfg config.ResolverConfig, logger *zap.Logger) *Service {
	return &Service{
		resolver: r,
		cfg:      cfg,
		logger:   logger,
		swaps:    make(map[common.Address]*TrackedSwap),
		stopChan: make(chan struct{}),
	}
}

// Start launches the reveal watcher and the expiry monitor.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("starting resolver service")

	s.events, s.cancelSub = s.resolver.Destination().Bus.Subscribe()

	s.wg.Add(2)
	go s.watchReveals(ctx)
	go s.monitorExpiry(ctx)

	return nil
}

// Stop stops the service and waits for its goroutines.
func (s *Service) Stop() error {
	s.logger.Info("stopping resolver service")

	close(s.stopChan)
	s.cancelSub()
	s.wg.Wait()

	return nil
}

// PlaceSwap deploys both legs through the resolver and tracks the swap.
func (s *Service) PlaceSwap(caller common.Address, swap Swap) (srcID, dstID common.Address, err error) {
	srcID, dstID, err = s.resolver.PlaceSwap(caller, swap)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}

	s.swapsMutex.Lock()
	s.swaps[dstID] = &TrackedSwap{
		SrcID:      srcID,
		DstID:      dstID,
		SecretHash: swap.SrcParams.SecretHash,
		SrcExpiry:  swap.SrcParams.Expiry,
		Status:     SwapStatusAwaitingReveal,
		UpdatedAt:  time.Now(),
	}
	s.swapsMutex.Unlock()

	return srcID, dstID, nil
}

// GetSwap returns the tracked swap for a destination escrow id.
func (s *Service) GetSwap(dstID common.Address) (TrackedSwap, bool) {
	s.swapsMutex.RLock()
	defer s.swapsMutex.RUnlock()

	sw, ok := s.swaps[dstID]
	if !ok {
		return TrackedSwap{}, false
	}
	return *sw, true
}

// Swaps returns all tracked swaps.
func (s *Service) Swaps() []TrackedSwap {
	s.swapsMutex.RLock()
	defer s.swapsMutex.RUnlock()

	out := make([]TrackedSwap, 0, len(s.swaps))
	for _, sw := range s.swaps {
		out = append(out, *sw)
	}
	return out
}

// Stats returns counters for the observability API.
func (s *Service) Stats() map[string]interface{} {
	s.swapsMutex.RLock()
	defer s.swapsMutex.RUnlock()

	statusCounts := make(map[SwapStatus]int)
	for _, sw := range s.swaps {
		statusCounts[sw.Status]++
	}

	return map[string]interface{}{
		"tracked_swaps": len(s.swaps),
		"status_counts": statusCounts,
	}
}

// watchReveals consumes destination-chain events and claims the source leg
// when a tracked escrow's secret is revealed.
func (s *Service) watchReveals(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			withdrawn, isReveal := ev.(types.EscrowWithdrawn)
			if !isReveal {
				continue
			}
			s.handleReveal(ctx, withdrawn)
		}
	}
}

func (s *Service) handleReveal(ctx context.Context, ev types.EscrowWithdrawn) {
	s.swapsMutex.RLock()
	sw, tracked := s.swaps[ev.ID]
	s.swapsMutex.RUnlock()
	if !tracked {
		return
	}

	s.logger.Info("secret revealed on destination leg",
		zap.String("dst_id", ev.ID.Hex()),
		zap.String("src_id", sw.SrcID.Hex()))

	claim := func() error {
		return s.resolver.WithdrawSrc(s.resolver.Owner(), sw.SrcID, ev.Secret)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.RetryInterval), s.cfg.ClaimRetries),
		ctx,
	)
	if err := backoff.Retry(claim, policy); err != nil {
		s.logger.Error("source leg claim failed",
			zap.String("src_id", sw.SrcID.Hex()),
			zap.Error(err))
		s.updateSwap(ev.ID, SwapStatusFailed, err.Error())
		return
	}

	s.logger.Info("source leg claimed",
		zap.String("src_id", sw.SrcID.Hex()))
	s.updateSwap(ev.ID, SwapStatusClaimed, "")
}

// monitorExpiry flags swaps whose source timelock lapsed without a reveal.
func (s *Service) monitorExpiry(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SwapPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.checkExpiries()
		}
	}
}

func (s *Service) checkExpiries() {
	now := s.resolver.Source().Clock.Now()

	s.swapsMutex.Lock()
	defer s.swapsMutex.Unlock()

	for _, sw := range s.swaps {
		if sw.Status == SwapStatusAwaitingReveal && !now.Before(sw.SrcExpiry) {
			sw.Status = SwapStatusExpired
			sw.UpdatedAt = time.Now()
			s.logger.Warn("swap expired without reveal",
				zap.String("src_id", sw.SrcID.Hex()),
				zap.String("dst_id", sw.DstID.Hex()))
		}
	}
}

func (s *Service) updateSwap(dstID common.Address, status SwapStatus, lastErr string) {
	s.swapsMutex.Lock()
	defer s.swapsMutex.Unlock()

	if sw, ok := s.swaps[dstID]; ok {
		sw.Status = status
		sw.LastError = lastErr
		sw.UpdatedAt = time.Now()
	}
}
