package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/ignite/smartlead-sync/internal/apply"
	"github.com/ignite/smartlead-sync/internal/config"
	"github.com/ignite/smartlead-sync/internal/csvsource"
	"github.com/ignite/smartlead-sync/internal/pkg/logger"
	"github.com/ignite/smartlead-sync/internal/reconcile"
	"github.com/ignite/smartlead-sync/internal/smartlead"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	csvPath := flag.String("csv", "", "CSV file with the emails to sync (required)")
	campaignID := flag.Int64("campaign", 0, "target campaign ID (required)")
	batchSize := flag.Int("batch-size", 0, "accounts per batch (default from config)")
	yes := flag.Bool("yes", false, "apply without the confirmation prompt")
	flag.Parse()

	if *csvPath == "" || *campaignID <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}
	if *batchSize <= 0 {
		*batchSize = cfg.Sync.BatchSize
	}

	client, err := smartlead.NewClient(smartlead.Config{
		APIKey:  cfg.Smartlead.APIKey,
		BaseURL: cfg.Smartlead.BaseURL,
		Timeout: cfg.Smartlead.Timeout(),
	})
	if err != nil {
		log.Fatalf("Smartlead client: %v (set SMARTLEAD_API_KEY)", err)
	}

	ctx := context.Background()

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("Failed to open CSV: %v", err)
	}
	emails, err := csvsource.ExtractEmails(f)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to read CSV: %v", err)
	}
	if len(emails) == 0 {
		log.Fatal("The CSV contains no valid email addresses")
	}
	fmt.Printf("CSV: %d unique valid emails\n", len(emails))

	campaign, err := client.GetCampaignDetails(ctx, *campaignID)
	if err != nil {
		log.Fatalf("Failed to fetch campaign %d: %v", *campaignID, err)
	}
	fmt.Printf("Campaign: %s (id %d, status %s)\n", campaign.Name, campaign.ID, campaign.Status)

	fmt.Println("Fetching email account inventory...")
	accounts, err := client.FetchAllEmailAccounts(ctx, cfg.Smartlead.PageSize)
	if err != nil {
		log.Fatalf("Failed to fetch email accounts: %v", err)
	}
	fmt.Printf("Inventory: %d accounts\n", len(accounts))

	mappings := reconcile.MapEmailsToIDs(emails, accounts)
	notFound := reconcile.NotFound(emails, mappings)

	existingAccounts, err := client.FetchCampaignEmailAccounts(ctx, *campaignID)
	if err != nil {
		log.Fatalf("Failed to fetch campaign accounts: %v", err)
	}
	result := reconcile.Diff(reconcile.BuildLookup(existingAccounts), mappings)

	fmt.Println()
	fmt.Printf("To add:         %d\n", result.TotalToAdd)
	fmt.Printf("Already there:  %d\n", result.TotalAlreadyExists)
	fmt.Printf("Not in account: %d\n", len(notFound))
	if len(notFound) > 0 {
		sort.Strings(notFound)
		for _, email := range notFound {
			fmt.Printf("  missing: %s\n", email)
		}
	}

	if result.TotalToAdd == 0 {
		fmt.Println("Nothing to do.")
		return
	}

	if !*yes && !confirm(fmt.Sprintf("Add %d accounts to %q?", result.TotalToAdd, campaign.Name)) {
		fmt.Println("Aborted.")
		return
	}

	batches, err := reconcile.MakeBatches(result.AccountIDsToAdd(), *batchSize)
	if err != nil {
		log.Fatalf("Failed to build batches: %v", err)
	}

	applier := apply.NewApplier(client, apply.NewMemoryStore())
	run, err := applier.Start(ctx, *campaignID, batches)
	if err != nil {
		log.Fatalf("Failed to start run: %v", err)
	}
	if err := applier.Run(ctx, run); err != nil {
		log.Fatalf("Apply run %s failed: %v", run.ID, err)
	}

	fmt.Println()
	fmt.Printf("Done: %d accounts added across %d batches\n", run.AccountsAdded, run.TotalBatches())
	for _, e := range run.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	if len(run.Errors) > 0 {
		os.Exit(1)
	}
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
