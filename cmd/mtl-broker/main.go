// Command mtl-broker is the broker process entry point (§6 CLI
// contract). Argument parsing and signal handling are explicitly out of
// scope per spec.md §1 ("trivially reimplementable, no novel design");
// this file implements only the documented interface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jabolina/mtl/pkg/mtl/broker"
	"github.com/jabolina/mtl/pkg/mtl/definition"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log := definition.NewLogrusLogger()

	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: mtl-broker <port> [<log_file> [<min_rate> <step> <max_rate> <period_ms>]]")
		return 1
	}

	port, err := strconv.Atoi(args[0])
	if err != nil {
		log.Errorf("invalid port %q: %v", args[0], err)
		return 1
	}

	cfg := broker.DefaultConfig()

	if len(args) >= 2 {
		f, err := os.Create(args[1])
		if err != nil {
			log.Errorf("failed opening log file %q: %v", args[1], err)
			return 1
		}
		defer f.Close()
		cfg.MetricsLog = f
	}

	if len(args) >= 6 {
		minRate, err1 := strconv.ParseFloat(args[2], 64)
		step, err2 := strconv.ParseFloat(args[3], 64)
		maxRate, err3 := strconv.ParseFloat(args[4], 64)
		periodMs, err4 := strconv.Atoi(args[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			log.Errorf("invalid rate limiter arguments: %v %v %v %v", err1, err2, err3, err4)
			return 1
		}
		cfg.RateLimiter = &broker.RateLimiterConfig{
			MinRate: minRate,
			Step:    step,
			MaxRate: maxRate,
			Period:  time.Duration(periodMs) * time.Millisecond,
		}
	}

	b := broker.New(cfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := b.Run(ctx, fmt.Sprintf(":%d", port)); err != nil {
		log.Errorf("broker exited with error: %v", err)
		return 1
	}
	return 0
}
