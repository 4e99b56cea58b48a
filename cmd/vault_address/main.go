// Package main provides an offline calculator for deterministic vault
// instance addresses. It needs no RPC or database access: given the same
// deployer, template, config and nonce it prints the address the factory
// would deploy to.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vault-router/internal/factory"
)

func main() {
	var (
		deployerFlag = flag.String("deployer", "", "Factory deployer address (required)")
		ownerFlag    = flag.String("owner", "", "Instance owner address (required)")
		adminFlag    = flag.String("admin", "", "Instance admin address (required)")
		revenueFlag  = flag.String("revenue", "", "Revenue recipient address (required)")
		assetsFlag   = flag.String("assets", "", "Comma-separated asset addresses")
		sourcesFlag  = flag.String("sources", "", "Comma-separated initial source addresses, parallel to -assets")
		templateFlag = flag.String("template", "", "Instance creation code as hex (required)")
		nonceFlag    = flag.Uint64("nonce", 0, "Deployment nonce for the owner")
	)
	flag.Parse()

	deployer := mustAddress(*deployerFlag, "deployer")
	cfg := &factory.InstanceConfig{
		Owner:   mustAddress(*ownerFlag, "owner"),
		Admin:   mustAddress(*adminFlag, "admin"),
		Revenue: mustAddress(*revenueFlag, "revenue"),
		Assets:  mustAddressList(*assetsFlag, "assets"),
		Sources: mustAddressList(*sourcesFlag, "sources"),
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid instance config: %v", err)
	}

	template, err := hex.DecodeString(strings.TrimPrefix(*templateFlag, "0x"))
	if err != nil || len(template) == 0 {
		log.Fatalf("Invalid -template: must be non-empty hex")
	}

	salt := factory.GenerateSalt(cfg.Owner, *nonceFlag)
	instance := factory.ComputeAddress(deployer, template, cfg, salt)

	fmt.Printf("owner:    %s\n", cfg.Owner.Hex())
	fmt.Printf("nonce:    %d\n", *nonceFlag)
	fmt.Printf("salt:     %s\n", salt.Hex())
	fmt.Printf("instance: %s\n", instance.Hex())
}

func mustAddress(value, name string) common.Address {
	if !common.IsHexAddress(value) {
		fmt.Fprintf(os.Stderr, "Invalid -%s: %q is not a hex address\n", name, value)
		os.Exit(1)
	}
	return common.HexToAddress(value)
}

func mustAddressList(value, name string) []common.Address {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]common.Address, 0, len(parts))
	for _, part := range parts {
		out = append(out, mustAddress(strings.TrimSpace(part), name))
	}
	return out
}
