package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/acquisitiond/pkg/spool"
)

var spoolCmd = &cobra.Command{
	Use:   "spool",
	Short: "Inspect the on-disk store-and-forward spool",
}

var spoolInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List spooled batches and their record counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		sp, err := spool.New(cfg.Resilience.StoreForwardPath, cfg.Resilience.MaxLocalStorageRecords)
		if err != nil {
			return fmt.Errorf("open spool: %w", err)
		}

		batches, err := sp.ListBatches()
		if err != nil {
			return fmt.Errorf("list batches: %w", err)
		}

		if len(batches) == 0 {
			fmt.Println("No spooled batches")
			return nil
		}

		total := 0
		fmt.Printf("%-36s %-25s %s\n", "BATCH ID", "CREATED AT", "RECORDS")
		for _, b := range batches {
			fmt.Printf("%-36s %-25s %d\n", b.BatchID, b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), len(b.Samples))
			total += len(b.Samples)
		}
		fmt.Printf("\n%d batches, %d records total\n", len(batches), total)
		return nil
	},
}

func init() {
	spoolCmd.AddCommand(spoolInspectCmd)
}
