//go:build ignore

// check-topology.go - Fetch the shared configuration and print the bridge topology
//
// Usage:
//   go run scripts/check-topology.go -config config.yaml
//
// Prints every domain with its resources, plus the routes the indexer would
// seed on startup. Useful to sanity-check a shared config URL before pointing
// the indexer at it.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/chainsafe/sygma-indexer/pkg/config"
)

var (
	ctConfigPath = flag.String("config", "config.yaml", "Path to config file")
	ctURL        = flag.String("url", "", "Shared config URL (overrides config)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*ctConfigPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	src := cfg.SharedConfig
	if *ctURL != "" {
		src.URL = *ctURL
	}

	fmt.Println("======================================================================")
	fmt.Println("CHECK TOPOLOGY - Fetch and print the shared bridge configuration")
	fmt.Println("======================================================================")
	fmt.Printf("URL: %s\n\n", src.URL)

	shared, err := config.FetchSharedConfig(context.Background(), src, zap.NewNop())
	if err != nil {
		fmt.Printf("Failed to fetch shared config: %v\n", err)
		os.Exit(1)
	}

	for _, domain := range shared.Domains {
		fmt.Printf("Domain %d: %s (%s)\n", domain.ID, domain.Name, domain.Type)
		fmt.Printf("  Bridge:        %s\n", domain.Bridge)
		if domain.FeeRouter != "" {
			fmt.Printf("  Fee router:    %s\n", domain.FeeRouter)
		}
		fmt.Printf("  Start block:   %d (confirmations: %d)\n", domain.StartBlock, domain.BlockConfirmations)
		fmt.Printf("  Native token:  %s (%d decimals)\n", domain.NativeTokenSymbol, domain.NativeTokenDecimals)
		if rpc := cfg.Indexer.RPC[fmt.Sprintf("%d", domain.ID)]; rpc != "" {
			fmt.Printf("  RPC:           %s\n", rpc)
		} else {
			fmt.Printf("  RPC:           (not configured - indexing disabled)\n")
		}
		for _, resource := range domain.Resources {
			fmt.Printf("  Resource %s: %s %s (%d decimals)\n",
				resource.ResourceID, resource.Type, resource.Symbol, resource.Decimals)
		}
		fmt.Println()
	}

	routes := 0
	for i := range shared.Domains {
		from := &shared.Domains[i]
		for _, resource := range from.Resources {
			for j := range shared.Domains {
				to := &shared.Domains[j]
				if to.ID == from.ID {
					continue
				}
				if _, ok := to.Resource(resource.ResourceID); !ok {
					continue
				}
				fmt.Printf("Route: %s -> %s  %s\n", from.Name, to.Name, resource.ResourceID)
				routes++
			}
		}
	}
	fmt.Printf("\n%d domains, %d routes\n", len(shared.Domains), routes)
}
