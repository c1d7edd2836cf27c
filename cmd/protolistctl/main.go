package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/protolist/internal/observability"
)

const usage = `usage: protolistctl <command> [flags]

commands:
  infer      print the columns inferred from format_schema
  count      count rows without decoding them
  decode     decode rows as JSON lines or an Arrow IPC file
  configgen  write or validate a protolist.toml
`

func main() {
	observability.InitLogger("protolistctl")
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "protolistctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return flag.ErrHelp
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "infer":
		return runInfer(rest, stdout, stderr)
	case "count":
		return runCount(rest, stdout, stderr)
	case "decode":
		return runDecode(rest, stdout, stderr)
	case "configgen":
		return runConfigGen(rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// serveMetrics exposes the prometheus registry on addr for the life of the
// process.
func serveMetrics(addr string) {
	if addr == "" {
		return
	}
	observability.RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
}
