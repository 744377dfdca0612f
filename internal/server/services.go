package server

import (
	"os"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"winsbygroup.com/keyverify/internal/activation"
	"winsbygroup.com/keyverify/internal/canonical"
	"winsbygroup.com/keyverify/internal/config"
	"winsbygroup.com/keyverify/internal/keycheck"
	"winsbygroup.com/keyverify/internal/machine"
	"winsbygroup.com/keyverify/internal/metrics"
	"winsbygroup.com/keyverify/internal/sqlite"
	"winsbygroup.com/keyverify/internal/store"
	"winsbygroup.com/keyverify/internal/transport"
)

// Services are the collaborators shared by the HTTP server and the CLI.
type Services struct {
	DB         *sqlx.DB
	Store      *store.Service
	Checkers   []*keycheck.Checker // configured sign method first
	Client     *transport.Client
	Activation *activation.Service
	Metrics    *metrics.Metrics
}

// Close releases the database.
func (s *Services) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// NewServices opens the store and builds the verification pipeline from cfg.
func NewServices(cfg *config.Config, log *zap.Logger) (*Services, error) {
	if log == nil {
		log = zap.NewNop()
	}

	key, err := cfg.VerificationKey()
	if err != nil {
		return nil, err
	}

	db, err := OpenDB(cfg.DBPath, cfg.DBPathSource, log)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	method := canonical.SignMethod(cfg.SignMethod)

	// only the configured serialization is trusted
	checker, err := keycheck.NewChecker(keycheck.VerificationContext{
		PublicKey:  key,
		SignMethod: method,
		MidLayout:  cfg.Floating.MidLayout(),
	}, keycheck.WithLogger(log.Named("keycheck")), keycheck.WithMetrics(m))
	if err != nil {
		db.Close()
		return nil, err
	}
	checkers := []*keycheck.Checker{checker}

	client, err := transport.New(cfg.APIURL, cfg.Token,
		transport.WithTimeout(cfg.RequestTimeout),
		transport.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		transport.WithSignMethod(method),
		transport.WithLogger(log.Named("transport")),
		transport.WithMetrics(m),
	)
	if err != nil {
		db.Close()
		return nil, err
	}

	st := store.NewService(db, cfg.DBPath)

	act := activation.NewService(activation.Config{
		ProductID:            cfg.ProductID,
		Floating:             cfg.Floating.Enabled,
		AllowOverdraft:       cfg.Floating.AllowOverdraft,
		FloatingTimeInterval: cfg.Floating.TimeInterval,
		MaxOverdraft:         cfg.Floating.MaxOverdraft,
		MachineCodeVersion:   machine.Version(cfg.MachineCodeVersion),
	}, client, checkers[0], st, activation.WithLogger(log.Named("activation")))

	return &Services{
		DB:         db,
		Store:      st,
		Checkers:   checkers,
		Client:     client,
		Activation: act,
		Metrics:    m,
	}, nil
}

// OpenDB opens the sqlite store at path and brings its schema up to date.
func OpenDB(path, source string, log *zap.Logger) (*sqlx.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info("creating database", zap.String("path", path), zap.String("source", source))
	} else {
		log.Info("opening database", zap.String("path", path), zap.String("source", source))
	}
	return sqlite.Open(path, "WAL")
}
