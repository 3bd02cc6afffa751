// storectl runs a single store command against the store configured in the
// environment:
//
//	storectl ping
//	storectl get <key>
//	storectl set <key> <value> <seconds>
//	storectl del <key>
//
// Exit status is 0 on success, 1 on a store or usage error and 2 when get
// finds no value.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/storeclient"
	"github.com/unkn0wn-root/storeclient/backend"
	boltb "github.com/unkn0wn-root/storeclient/backend/bolt"
	redisb "github.com/unkn0wn-root/storeclient/backend/redis"
	zaplog "github.com/unkn0wn-root/storeclient/log/zap"
)

var errNotFound = errors.New("not found")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	b, err := newBackend(cfg)
	if err != nil {
		logger.Error("failed to open backend", zap.String("backend", cfg.Backend), zap.Error(err))
		return 1
	}

	client, err := storeclient.New(storeclient.Options{
		Backend:        b,
		Logger:         zaplog.New(logger),
		ConnectTimeout: cfg.DialTimeout,
	})
	if err != nil {
		logger.Error("failed to create client", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	defer client.Close(context.Background())

	out, err := execute(ctx, client, args)
	switch {
	case errors.Is(err, errNotFound):
		return 2
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if out != "" {
		fmt.Println(out)
	}
	return 0
}

func execute(ctx context.Context, s storeclient.Store, args []string) (string, error) {
	if len(args) == 0 {
		return "", errUsage
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "ping":
		if len(rest) != 0 {
			return "", errUsage
		}
		if !s.IsAlive() {
			return "", errors.New("store is not reachable")
		}
		return "PONG", nil
	case "get":
		if len(rest) != 1 {
			return "", errUsage
		}
		v, ok, err := s.Get(ctx, rest[0])
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errNotFound
		}
		return v, nil
	case "set":
		if len(rest) != 3 {
			return "", errUsage
		}
		secs, err := strconv.Atoi(rest[2])
		if err != nil {
			return "", fmt.Errorf("seconds: %w", err)
		}
		if err := s.Set(ctx, rest[0], rest[1], time.Duration(secs)*time.Second); err != nil {
			return "", err
		}
		return "OK", nil
	case "del":
		if len(rest) != 1 {
			return "", errUsage
		}
		if err := s.Del(ctx, rest[0]); err != nil {
			return "", err
		}
		return "OK", nil
	}
	return "", errUsage
}

var errUsage = errors.New("usage: storectl ping | get <key> | set <key> <value> <seconds> | del <key>")

func newBackend(cfg *config) (backend.Backend, error) {
	switch cfg.Backend {
	case "bolt":
		return boltb.Open(boltb.Config{Path: cfg.Path})
	default:
		return redisb.New(redisb.Config{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			// one-shot process; no health check
			PingInterval: -1,
		}), nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("STORE_LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
