// Command discover is a standalone diagnostic CLI: it runs one
// WS-Discovery sweep and then one ONVIF credential-cascade probe against
// every match, printing what the gateway's Agent would add to its
// registry. Useful for checking network reachability (multicast routing,
// camera credentials) without running the whole gateway.
//
// Adapted from the teacher's cmd/test-onvif-discovery (scan-then-print
// shape) and cmd/test-all-cameras (summary-at-the-end shape), merged into
// one tool and repointed at internal/wsdiscovery + internal/probe instead
// of the teacher's USB/ONVIF discovery services.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jaofeng/cctvgw/internal/logger"
	"github.com/jaofeng/cctvgw/internal/probe"
	"github.com/jaofeng/cctvgw/internal/wsdiscovery"
)

func main() {
	var timeout time.Duration
	flag.DurationVar(&timeout, "timeout", 6*time.Second, "WS-Discovery response window")
	flag.Parse()

	log, err := logger.New(logger.LogConfig{Level: "info", Format: "text"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	fmt.Println("=== WS-Discovery sweep ===")
	ctx, cancel := context.WithTimeout(context.Background(), timeout+2*time.Second)
	defer cancel()

	matches, err := wsdiscovery.Discover(ctx, timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "discovery failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d device(s)\n\n", len(matches))
	if len(matches) == 0 {
		fmt.Println("No devices responded. Check that the gateway and cameras share a")
		fmt.Println("subnet and that multicast (239.255.255.250:3702) isn't firewalled.")
		return
	}

	fmt.Println("=== ONVIF probe ===")
	var wg sync.WaitGroup
	results := make([]string, len(matches))
	for i, m := range matches {
		i, m := i, m
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = probeOne(ctx, m)
		}()
	}
	wg.Wait()
	for _, r := range results {
		fmt.Println(r)
	}
}

func probeOne(ctx context.Context, m wsdiscovery.Match) string {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := probe.Probe(pctx, m.ServiceURL, probe.DefaultCredentials)
	if err != nil {
		return fmt.Sprintf("--- %s ---\n  probe failed: %v", m.ServiceURL, err)
	}

	out := fmt.Sprintf("--- %s ---\n  host: %s\n  credential: %q/%q\n  profiles: %d",
		result.ServiceURL, result.HostName, result.User, result.Password, len(result.Profiles))
	for _, p := range result.Profiles {
		out += fmt.Sprintf("\n    - %s [%s %dx%d q=%d fps=%d] %s",
			p.Name, p.Encoding, p.Resolution.Width, p.Resolution.Height, p.Quality, p.FrameRate, p.StreamURL)
	}
	return out
}
