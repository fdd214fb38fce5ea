// verify-agent sends a sample customer conversation to the extraction model
// and prints the resulting draft. It touches no database.
//
// Usage: go run ./cmd/verify-agent
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"shop-admin/internal/adapters/cli"
	"shop-admin/internal/ai"
	"shop-admin/internal/config"
	"shop-admin/internal/core"
	"shop-admin/internal/logger"
)

const conversation = `Customer: Hi! Do you still have the linen tote bags?
Shop: Yes, 18.00 each.
Customer: Great, I'll take 2, and one of the cedar candles please.
Customer: Name is Maria Lopez, phone +37060012345
Customer: Send to Gedimino pr. 9, Vilnius. Courier is fine, I'll pay the 4.50.`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{ServiceName: "verify-agent", Format: "console", Output: os.Stderr})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if !cfg.OpenAI.Enabled() {
		log.Error(ctx, "cannot verify agent", fmt.Errorf("OPENAI_API_KEY not set"))
		os.Exit(1)
	}

	catalog := []core.Product{
		{ID: 1, Name: "Ceramic Mug", Price: decimal.RequireFromString("12.50"), Quantity: 40},
		{ID: 2, Name: "Linen Tote Bag", Price: decimal.RequireFromString("18.00"), Quantity: 25},
		{ID: 3, Name: "Scented Candle", Price: decimal.RequireFromString("22.00"), Quantity: 30, Description: "Soy wax, cedar and amber"},
	}

	agent := ai.NewAgent(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	fmt.Printf("EXTRACTING FROM:\n%s\n\n", conversation)
	draft, err := agent.ExtractOrder(ctx, conversation, catalog)
	if err != nil {
		log.Error(ctx, "extraction failed", err)
		os.Exit(1)
	}

	cli.PrintDraft(os.Stdout, "verify", draft)

	if _, _, err := draft.OrderInput(); err != nil {
		log.Error(ctx, "draft is not a valid order input", err)
		os.Exit(1)
	}
}
