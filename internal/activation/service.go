// Package activation talks to the licensing service on behalf of one
// product: it activates and reads keys, verifies every answer and keeps the
// verified responses for offline use.
package activation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"winsbygroup.com/keyverify/internal/binding"
	"winsbygroup.com/keyverify/internal/canonical"
	"winsbygroup.com/keyverify/internal/keycheck"
	"winsbygroup.com/keyverify/internal/licerr"
	"winsbygroup.com/keyverify/internal/license"
	"winsbygroup.com/keyverify/internal/logging"
	"winsbygroup.com/keyverify/internal/machine"
	"winsbygroup.com/keyverify/internal/store"
	"winsbygroup.com/keyverify/internal/transport"
)

// ErrSignMethodChanged is returned by Offline when the stored response was
// requested with a sign method other than the configured one. The key must be
// read from the service again.
var ErrSignMethodChanged = errors.New("stored response uses another sign method")

type Service struct {
	cfg         Config
	client      *transport.Client
	checker     *keycheck.Checker
	store       *store.Service
	machineCode func(context.Context) (string, error)
	log         *zap.Logger
}

type Option func(*Service)

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMachineCode replaces the platform machine code source.
func WithMachineCode(fn func(context.Context) (string, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.machineCode = fn
		}
	}
}

// NewService wires the collaborators. st may be nil, in which case nothing
// is kept for offline use.
func NewService(cfg Config, client *transport.Client, checker *keycheck.Checker, st *store.Service, opts ...Option) *Service {
	if cfg.MachineCodeVersion == 0 {
		cfg.MachineCodeVersion = machine.V1
	}
	s := &Service{
		cfg:     cfg,
		client:  client,
		checker: checker,
		store:   st,
		log:     zap.NewNop(),
	}
	s.machineCode = func(ctx context.Context) (string, error) {
		return machine.Code(ctx, s.cfg.MachineCodeVersion)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MachineCode returns the code this device activates with.
func (s *Service) MachineCode(ctx context.Context) (string, error) {
	return s.machineCode(ctx)
}

// Activate binds req.Key to a machine. The outcome holds either the verified
// key or the message explaining why there is none; the error is set only
// when the machine code of this device cannot be read.
func (s *Service) Activate(ctx context.Context, req Request) (keycheck.Outcome, error) {
	code := req.MachineCode
	if code == "" {
		var err error
		if code, err = s.machineCode(ctx); err != nil {
			return keycheck.Outcome{}, fmt.Errorf("machine code: %w", err)
		}
	}

	body, err := s.client.Activate(ctx, transport.ActivateRequest{
		ProductID:            s.cfg.ProductID,
		Key:                  req.Key,
		MachineCode:          code,
		Metadata:             s.cfg.Metadata,
		FloatingTimeInterval: s.floatingInterval(),
		MaxOverdraft:         s.cfg.MaxOverdraft,
		FriendlyName:         req.FriendlyName,
	})
	return s.keep(ctx, body, err), nil
}

// GetKey reads key without activating it.
func (s *Service) GetKey(ctx context.Context, key string) keycheck.Outcome {
	body, err := s.client.GetKey(ctx, transport.GetKeyRequest{
		ProductID:            s.cfg.ProductID,
		Key:                  key,
		Metadata:             s.cfg.Metadata,
		FloatingTimeInterval: s.floatingInterval(),
	})
	return s.keep(ctx, body, err)
}

func (s *Service) floatingInterval() int {
	if !s.cfg.Floating {
		return 0
	}
	return s.cfg.FloatingTimeInterval
}

func (s *Service) keep(ctx context.Context, body []byte, transportErr error) keycheck.Outcome {
	var opts []keycheck.CheckOption
	if s.cfg.Metadata {
		opts = append(opts, keycheck.WithMetadata())
	}

	out := s.checker.Result(body, transportErr, opts...)
	if !out.OK() || s.store == nil {
		return out
	}

	// a failed save only costs offline availability
	if _, err := s.store.Save(ctx, int(s.checker.SignMethod()), body, out.Key); err != nil {
		s.log.Warn("could not keep license response",
			zap.Int64("product_id", out.Key.ProductID),
			logging.Key(out.Key.Key),
			zap.Error(err),
		)
	}
	return out
}

// Offline re-verifies the stored response for key.
func (s *Service) Offline(ctx context.Context, key string) (*license.LicenseKey, error) {
	if s.store == nil {
		return nil, store.ErrNotFound
	}
	rec, err := s.store.Get(ctx, s.cfg.ProductID, key)
	if err != nil {
		return nil, err
	}
	if stored := canonical.SignMethod(rec.SignMethod); stored != s.checker.SignMethod() {
		return nil, fmt.Errorf("%w: stored %s, configured %s", ErrSignMethodChanged, stored, s.checker.SignMethod())
	}

	var opts []keycheck.CheckOption
	if s.cfg.Metadata {
		opts = append(opts, keycheck.WithMetadata())
	}
	return s.checker.Check(rec.Body, opts...)
}

// Deactivate releases machineCode, or this device when empty, and forgets
// the stored response.
func (s *Service) Deactivate(ctx context.Context, key, machineCode string) error {
	if machineCode == "" {
		var err error
		if machineCode, err = s.machineCode(ctx); err != nil {
			return fmt.Errorf("machine code: %w", err)
		}
	}

	err := s.client.Deactivate(ctx, transport.DeactivateRequest{
		ProductID:   s.cfg.ProductID,
		Key:         key,
		MachineCode: machineCode,
		Floating:    s.cfg.Floating,
	})
	if err != nil {
		return err
	}

	if s.store != nil {
		if err := s.store.Delete(ctx, s.cfg.ProductID, key); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("forget license response: %w", err)
		}
	}
	return nil
}

// Authorize evaluates lic for this device with the configured binding rules.
func (s *Service) Authorize(ctx context.Context, lic *license.LicenseKey) (binding.Decision, error) {
	code, err := s.machineCode(ctx)
	if err != nil {
		return binding.Decision{}, fmt.Errorf("machine code: %w", err)
	}
	return binding.Evaluate(lic, code, s.cfg.Mode()), nil
}

// Verify reads key from the service and authorizes this device. When the
// service cannot be reached the stored response is used instead.
func (s *Service) Verify(ctx context.Context, key string) (*Verification, error) {
	out := s.GetKey(ctx, key)
	lic, offline := out.Key, false

	if !out.OK() {
		if out.Kind != licerr.KindTransport {
			return nil, outcomeError(out)
		}
		stored, err := s.Offline(ctx, key)
		if err != nil {
			s.log.Debug("no offline copy", logging.Key(key), zap.Error(err))
			return nil, outcomeError(out)
		}
		lic, offline = stored, true
	}

	decision, err := s.Authorize(ctx, lic)
	if err != nil {
		return nil, err
	}
	return &Verification{License: lic, Decision: decision, Offline: offline}, nil
}

func outcomeError(out keycheck.Outcome) error {
	return &licerr.Error{Kind: out.Kind, Message: out.Message}
}
