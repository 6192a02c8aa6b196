// Command scrape-ct-log fetches every certificate entry in a window of a
// Certificate Transparency log and writes them as a single streamed JSON
// or CBOR document.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	sentry "github.com/getsentry/sentry-go"

	"ctscrape.dev/internal/ctscrape"
)

const sentryFlushTimeout = 2 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	formatFlag := flag.String("f", "json", "output format: json or cbor")
	flag.StringVar(formatFlag, "format", "json", "output format: json or cbor")
	outputFlag := flag.String("o", "", "write output to this path instead of stdout")
	flag.StringVar(outputFlag, "output", "", "write output to this path instead of stdout")
	includeChains := flag.Bool("include-chains", false, "emit the certificate chain for each entry")
	includePrecertData := flag.Bool("include-precert-data", false, "emit precertificate fields for precert entries")
	numberOfEntries := flag.Uint64("n", 0, "maximum number of entries to fetch (0 = unbounded)")
	flag.Uint64Var(numberOfEntries, "number-of-entries", 0, "maximum number of entries to fetch (0 = unbounded)")
	start := flag.Uint64("s", 0, "first entry id to fetch")
	flag.Uint64Var(start, "start", 0, "first entry id to fetch")
	userAgent := flag.String("user-agent", ctscrape.DefaultUserAgent, "User-Agent header sent on every request")
	initialFetchers := flag.Int("initial-fetchers", 1, "starting size of the fetcher pool")
	maxFetchers := flag.Int("max-fetchers", 0, "maximum size of the fetcher pool (0 = GOMAXPROCS)")
	s3Bucket := flag.String("s3-bucket", "", "write output to this S3 bucket instead of a local file")
	s3Region := flag.String("s3-region", "", "S3 region")
	s3Endpoint := flag.String("s3-endpoint", "", "S3-compatible endpoint URL")
	consulAddress := flag.String("consul-address", "", "Consul agent address for remote config overlay")
	consulKey := flag.String("consul-key", "", "Consul KV path holding a JSON config overlay")
	verbosity := flag.Int("v", 0, "verbosity: 0 discards log output, any higher number sends it to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: scrape-ct-log [flags] <log_url>")
		flag.Usage()
		return 2
	}

	if *verbosity <= 0 {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
	}

	format, err := ctscrape.ParseFormat(*formatFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scrape-ct-log: %v\n", err)
		return 2
	}

	cfg := ctscrape.Config{
		LogURL:             flag.Arg(0),
		Output:             *outputFlag,
		IncludeChains:      *includeChains,
		IncludePrecertData: *includePrecertData,
		NumberOfEntries:    *numberOfEntries,
		Start:              *start,
		UserAgent:          *userAgent,
		InitialFetchers:    *initialFetchers,
		MaxFetchers:        *maxFetchers,
		S3Bucket:           *s3Bucket,
		S3Region:           *s3Region,
		S3Endpoint:         *s3Endpoint,
		ConsulAddress:      *consulAddress,
		ConsulKVPath:       *consulKey,
	}
	cfg.Format = format
	flag.Visit(func(fl *flag.Flag) {
		if fl.Name == "f" || fl.Name == "format" {
			cfg.SetFormat(format)
		}
	})

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			log.Printf("sentry: failed to initialize: %v", err)
		} else {
			defer sentry.Flush(sentryFlushTimeout)
		}
	}

	ctx := context.Background()
	shutdownOtel := ctscrape.ConfigureOtel(ctx)
	defer shutdownOtel()

	if cfg.ConsulKVPath != "" {
		overlay, err := ctscrape.LoadRemoteOverlay(cfg.ConsulAddress, cfg.ConsulKVPath)
		if err != nil {
			log.Printf("remote config: %v", err)
		} else {
			overlay.Apply(&cfg)
		}
	}

	if err := scrape(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "scrape-ct-log: %v\n", err)
		sentry.CaptureException(err)
		return 1
	}
	return 0
}

func scrape(ctx context.Context, cfg ctscrape.Config) error {
	out, err := ctscrape.OpenOutput(ctx, cfg)
	if err != nil {
		return err
	}

	sink, err := ctscrape.NewSink(out, cfg.Format, cfg.LogURL, cfg.IncludeChains, cfg.IncludePrecertData)
	if err != nil {
		_ = out.Close()
		return err
	}

	stats, runErr := ctscrape.Run(ctx, cfg.ToRunConfig(nil, sink))

	closeErr := out.Close()

	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return closeErr
	}

	log.Printf("scraped %d entries (tree_size=%d)", stats.FetchedCount, stats.STHTreeSize)
	return nil
}
