package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	classifier "github.com/samuel/go-textclassifier"
	"github.com/samuel/go-textclassifier/internal/config"
	"github.com/samuel/go-textclassifier/internal/logging"
)

// options are the persistent flags shared by every command
type options struct {
	configPath string
	modelPath  string
	backend    string
	ngram      int
	verbose    bool
}

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	pp      *classifier.Preprocessor
	bc      *classifier.BayesianClassifier
	closers []func() error
}

// newApp loads the configuration, applies flag overrides and opens the model store
func newApp(opts *options) (*app, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.modelPath != "" {
		cfg.Model.Path = opts.modelPath
	}
	if opts.backend != "" {
		cfg.Store.Backend = opts.backend
	}
	if opts.ngram > 0 {
		cfg.Preprocess.NGram = opts.ngram
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	pp, err := classifier.NewPreprocessor(classifier.PreprocessorConfig{
		NGram:     cfg.Preprocess.NGram,
		StopWords: stopWords(cfg.Preprocess.StopWords),
		CacheSize: cfg.Preprocess.CacheSize,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pp = pp
	store, err := a.openStore()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.bc, err = classifier.NewBayesianClassifier(store, pp)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.bc.Logger = logging.Component(logger, "classifier")
	// only the model file carries the term index
	if cfg.Model.TermIndex && !a.persistent() {
		a.bc.Index = classifier.NewTermIndex()
	}
	return a, nil
}

func stopWords(words []string) []string {
	if len(words) == 0 {
		return nil
	}
	return words
}

func (a *app) openStore() (classifier.Store, error) {
	log := a.logger.With(zap.String("backend", a.cfg.Store.Backend))
	switch a.cfg.Store.Backend {
	case config.BackendSQLite:
		db, err := sql.Open("sqlite3", a.cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := classifier.InitSQLSchema(db); err != nil {
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
		log.Debug("opened store", zap.String("path", a.cfg.Store.SQLitePath))
		return classifier.NewSQLStore(db)
	case config.BackendRedis:
		opt, err := redis.ParseURL(a.cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opt)
		a.closers = append(a.closers, client.Close)
		log.Debug("opened store", zap.String("addr", opt.Addr))
		return classifier.NewRedisStore(context.Background(), client, a.cfg.Store.RedisPrefix)
	default:
		return classifier.NewLocalStore(), nil
	}
}

// persistent reports whether the store keeps its own data between runs
func (a *app) persistent() bool {
	return a.cfg.Store.Backend != config.BackendMemory
}

// loadModel reads the model file into an in-memory store. A missing file
// leaves the model empty.
func (a *app) loadModel() error {
	if a.persistent() {
		return nil
	}
	if _, err := os.Stat(a.cfg.Model.Path); errors.Is(err, os.ErrNotExist) {
		a.logger.Debug("no model file", zap.String("path", a.cfg.Model.Path))
		return nil
	}
	return a.bc.LoadModelFile(a.cfg.Model.Path)
}

// saveModel writes an in-memory model back to the model file
func (a *app) saveModel() error {
	if a.persistent() {
		return nil
	}
	return a.bc.SaveModelFile(a.cfg.Model.Path)
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.logger.Sync()
	return errors.Join(errs...)
}
