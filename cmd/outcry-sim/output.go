package main

import (
	"encoding/json"
	"fmt"
	"os"
)

func outputText(reports []*report) {
	fmt.Println("Outcry Auction Simulation")
	fmt.Println("=========================")

	for _, r := range reports {
		fmt.Println()
		fmt.Printf("Scenario: %s\n", r.Scenario)
		fmt.Println("-------------------")
		fmt.Printf("  Auction:          %s\n", r.Auction)
		if r.Winner != "" {
			fmt.Printf("  Winner:           %s\n", r.Winner)
			fmt.Printf("  Final Price:      %d\n", r.FinalPrice)
			fmt.Printf("  Bids:             %d\n", r.Bids)
			fmt.Printf("  End Time:         %d (extended: %v)\n", r.EndTime, r.Extended)
			fmt.Printf("  End Cranks Won:   %d\n", r.EndCranks)
			fmt.Printf("  Settle Cranks Won: %d\n", r.SettleCranks)
		}
		fmt.Printf("  Refunds:          %d\n", r.Refunds)
		fmt.Printf("  Reclaimed:        %d\n", r.Reclaimed)
		fmt.Printf("  Drained:          %d\n", r.Drained)
		fmt.Printf("  Events:           %d durable, %d fast\n", r.DurableEvents, r.FastEvents)

		fmt.Println()
		fmt.Println("  Checkpoints:")
		for _, c := range r.Checkpoints {
			fmt.Printf("    %-14s valid=%v\n", c.Name, c.Result.IsValid())
			for _, a := range c.Result.Auctions {
				for _, detail := range a.ValidationDetails {
					fmt.Printf("      - %s\n", detail)
				}
			}
			for _, orphan := range c.Result.OrphanDeposits {
				fmt.Printf("      - Unclaimed deposit entry %s\n", orphan)
			}
		}

		if r.IsValid() {
			fmt.Println("  RESULT: ✓ PASSED")
		} else {
			fmt.Println("  RESULT: ✗ FAILED")
		}
	}
}

func outputJSON(reports []*report) {
	output := make([]map[string]any, 0, len(reports))
	for _, r := range reports {
		output = append(output, map[string]any{
			"valid":  r.IsValid(),
			"report": r,
		})
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
