package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <file.json>...",
	Short: "Import document JSON files into the store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if flagDBPath != "" {
			cfg.DBPath = flagDBPath
		}
		return importDocuments(cfg, args)
	},
}

func init() {
	importCmd.Flags().StringVar(&flagDBPath, "db", "", "path to the libSQL database file")
}

func importDocuments(cfg Config, paths []string) error {
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		// Decode first so malformed files are rejected before they land
		// in the store.
		doc, err := graph.DecodeDocument(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		err = st.SaveDocument(ctx, &store.DocumentRecord{
			ID:        doc.ID,
			Name:      doc.Name,
			Data:      data,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("imported %s (%s)\n", doc.ID, doc.Name)
	}
	return nil
}
