// Command code-ingest bulk-loads promotional discount codes from
// gzip-compressed campaign exports. Every well-formed code becomes a one-time
// promo code; duplicates across files are dropped before hitting the
// database.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/ovenworks/pizzeria/internal/domain/discount"
	"github.com/ovenworks/pizzeria/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minCodeLen    = 6
	maxCodeLen    = 12
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing campaign export files")
	flag.StringVar(&pattern, "pattern", "codes*.gz", "glob pattern of export files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, pattern, databaseURL); err != nil {
		slog.Error("code ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("code ingest completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "expand file pattern")
	}
	if len(files) == 0 {
		return errors.Errorf("no files matching %s in %s", pattern, dataDir)
	}

	slog.Info("scanning campaign files", slog.Int("files", len(files)))

	perFile := make([][]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(collectCodesFromFile(gctx, i, f, perFile))
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Cross-file dedupe. The filter makes the membership test cheap; a rare
	// false positive only drops a code that ON CONFLICT would have dropped
	// anyway.
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	var codes []string
	for _, fileCodes := range perFile {
		for _, code := range fileCodes {
			if seen.TestString(code) {
				continue
			}
			seen.AddString(code)
			codes = append(codes, code)
		}
	}

	slog.Info("unique codes found", slog.Int("count", len(codes)))

	if len(codes) == 0 {
		slog.Info("no codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCodes(ctx, pool, codes); err != nil {
		return errors.Wrap(err, "write codes to database")
	}

	return nil
}

func collectCodesFromFile(ctx context.Context, idx int, path string, results [][]string) func() error {
	return func() error {
		var (
			codes []string
			count uint64
		)

		if err := streamGzFile(ctx, path, func(line string) {
			count++
			if count%progressEvery == 0 {
				slog.Info("scan progress",
					slog.Int("file", idx+1),
					slog.Uint64("lines", count),
				)
			}

			code := strings.ToUpper(strings.TrimSpace(line))
			if wellFormedCode(code) {
				codes = append(codes, code)
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %s", path)
		}

		slog.Info("scan complete",
			slog.Int("file", idx+1),
			slog.Uint64("lines", count),
			slog.Int("codes", len(codes)),
		)

		results[idx] = codes
		return nil
	}
}

// wellFormedCode accepts uppercase alphanumeric codes within the length
// bounds. Anything else in an export is noise.
func wellFormedCode(code string) bool {
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeCodes inserts the codes bound to the one-time promo type. Codes
// already present keep their existing binding.
func writeCodes(ctx context.Context, pool *pgxpool.Pool, codes []string) error {
	repo := repository.NewDiscountRepository(pool)

	promo, err := repo.FindTypeByName(ctx, discount.NameOneTimePromo)
	if err != nil {
		return errors.Wrapf(err, "look up discount type %q", discount.NameOneTimePromo)
	}

	slog.Info("writing codes to database", slog.Int("count", len(codes)))

	for i, code := range codes {
		if err := repo.CreateCode(ctx, &discount.Code{
			ID:   uuid.NewString(),
			Code: code,
			Type: *promo,
		}); err != nil {
			return errors.Wrapf(err, "insert code %s", code)
		}

		if (i+1)%1000 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
