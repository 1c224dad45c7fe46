// Command mwquery runs one API call from the command line and prints the
// result as JSON lines.
//
//	MWAPI_ENDPOINT=https://en.wikipedia.org/w/api.php \
//	  mwquery action=query list=allpages aplimit=50
//
// Parameters are key=value pairs. A value starting with "@" is read from the
// named file and sent as a multipart upload. By default the continue protocol
// is followed and every page is printed on its own line; -legacy follows
// query-continue instead and prints one merged result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Sternrassler/mwapi-client/pkg/client"
	"github.com/Sternrassler/mwapi-client/pkg/config"
	"github.com/Sternrassler/mwapi-client/pkg/logging"
	"github.com/Sternrassler/mwapi-client/pkg/metrics"
	"github.com/Sternrassler/mwapi-client/pkg/request"
	"github.com/Sternrassler/mwapi-client/pkg/result"
	"github.com/Sternrassler/mwapi-client/pkg/throttle"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// options are the command line flags.
type options struct {
	legacy   bool
	write    bool
	maxPages int
	params   *request.Params
	upload   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "mwquery: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Setup(cfg.LoggingConfig())
	logger := logging.NewLogger(logging.ComponentCLI)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	store, closeStore := openLagStore(ctx, cfg, logger)
	defer closeStore()

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("cookie jar: %w", err)
	}

	clientCfg := cfg.ClientConfig(store)
	clientCfg.Jar = jar

	c, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer c.Close()

	var req *request.Request
	if opts.upload {
		req, err = c.NewMultipartRequest(opts.params, opts.write)
	} else {
		req, err = c.NewRequest(opts.params, opts.write)
	}
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("action", req.Action()).
		Bool("legacy", opts.legacy).
		Msg("Starting")

	enc := sonic.ConfigDefault.NewEncoder(stdout)

	if opts.legacy || opts.write {
		var res *result.Result
		if opts.legacy {
			res, err = c.Query(ctx, req)
		} else {
			res, err = c.Execute(ctx, req)
		}
		if err != nil {
			return err
		}
		return enc.Encode(res)
	}

	pages := 0
	for page, err := range c.Pages(ctx, req) {
		if err != nil {
			return err
		}
		if err := enc.Encode(page); err != nil {
			return fmt.Errorf("write page: %w", err)
		}
		pages++
		if opts.maxPages > 0 && pages >= opts.maxPages {
			break
		}
	}
	logger.Info().Int("pages", pages).Msg("Done")
	return nil
}

// parseArgs parses flags and key=value parameters.
func parseArgs(args []string) (*options, error) {
	fs := flag.NewFlagSet("mwquery", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	opts := &options{}
	fs.BoolVar(&opts.legacy, "legacy", false, "follow query-continue and print one merged result")
	fs.BoolVar(&opts.write, "write", false, "mark the call as a write (never retried, assert added)")
	fs.IntVar(&opts.maxPages, "pages", 0, "stop after this many pages (0 for all)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	if fs.NArg() == 0 {
		return nil, errors.New("no parameters given, expected key=value pairs")
	}

	opts.params = request.NewParams()
	for _, arg := range fs.Args() {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", arg)
		}

		if path, isFile := strings.CutPrefix(value, "@"); isFile {
			file, err := readFile(path)
			if err != nil {
				return nil, err
			}
			opts.params.Set(key, file)
			opts.upload = true
			continue
		}
		opts.params.Set(key, value)
	}
	return opts, nil
}

func readFile(path string) (request.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return request.File{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return request.FileFrom(filepath.Base(path), f)
}

// openLagStore connects the shared lag store if Redis is configured. A
// Redis that can not be reached is logged and skipped.
func openLagStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (throttle.Store, func()) {
	noop := func() {}

	opts, err := cfg.RedisOptions()
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid Redis configuration, running without lag store")
		return nil, noop
	}
	if opts == nil {
		return nil, noop
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis not reachable, running without lag store")
		redisClient.Close()
		return nil, noop
	}
	logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis lag store")

	return throttle.NewRedisStore(redisClient), func() { redisClient.Close() }
}
