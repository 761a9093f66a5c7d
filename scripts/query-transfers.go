//go:build ignore

// query-transfers.go - Query the indexer read API and print transfers
//
// Usage:
//   go run scripts/query-transfers.go -url http://localhost:8080 -page 1 -limit 20
//   go run scripts/query-transfers.go -url http://localhost:8080 -sender 0x5c1f...
//   go run scripts/query-transfers.go -url http://localhost:8080 -id 5-1-2

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

var (
	qtBaseURL = flag.String("url", "http://localhost:8080", "Indexer base URL")
	qtSender  = flag.String("sender", "", "Filter transfers by sender address")
	qtID      = flag.String("id", "", "Fetch a single transfer by id (nonce-from-to)")
	qtPage    = flag.Int("page", 1, "Page number")
	qtLimit   = flag.Int("limit", 20, "Page size")
)

type transfer struct {
	ID           string  `json:"id"`
	DepositNonce uint64  `json:"deposit_nonce"`
	FromDomainID uint8   `json:"from_domain_id"`
	ToDomainID   *uint8  `json:"to_domain_id"`
	ResourceID   *string `json:"resource_id"`
	Destination  *string `json:"destination"`
	Amount       *string `json:"amount"`
	Status       string  `json:"status"`
	AccountID    *string `json:"account_id"`
}

func main() {
	flag.Parse()

	if *qtID != "" {
		body := qtGet(fmt.Sprintf("%s/api/v1/transfers/%s", *qtBaseURL, url.PathEscape(*qtID)))
		var pretty map[string]any
		if err := json.Unmarshal(body, &pretty); err != nil {
			fmt.Printf("Failed to decode response: %v\n", err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return
	}

	endpoint := fmt.Sprintf("%s/api/v1/transfers?page=%d&limit=%d", *qtBaseURL, *qtPage, *qtLimit)
	if *qtSender != "" {
		endpoint = fmt.Sprintf("%s/api/v1/transfers/sender/%s?page=%d&limit=%d",
			*qtBaseURL, url.PathEscape(*qtSender), *qtPage, *qtLimit)
	}

	body := qtGet(endpoint)
	var resp struct {
		Data  []transfer `json:"data"`
		Page  int        `json:"page"`
		Limit int        `json:"limit"`
		Total int        `json:"total"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		fmt.Printf("Failed to decode response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Page %d (limit %d, total %d)\n\n", resp.Page, resp.Limit, resp.Total)
	for _, t := range resp.Data {
		to := "?"
		if t.ToDomainID != nil {
			to = fmt.Sprintf("%d", *t.ToDomainID)
		}
		amount := "?"
		if t.Amount != nil {
			amount = *t.Amount
		}
		dest := ""
		if t.Destination != nil {
			dest = *t.Destination
		}
		fmt.Printf("%-16s %d -> %-3s %-10s amount=%-12s %s\n", t.ID, t.FromDomainID, to, t.Status, amount, dest)
	}
	if len(resp.Data) == 0 {
		fmt.Println("No transfers found.")
	}
}

func qtGet(endpoint string) []byte {
	resp, err := http.Get(endpoint)
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Failed to read response: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request returned %d: %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}
	return body
}
