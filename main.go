package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"

	"github.com/Project-Sylos/Mirage/internal/config"
	"github.com/Project-Sylos/Mirage/internal/filter"
	"github.com/Project-Sylos/Mirage/internal/graph"
	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/Project-Sylos/Mirage/internal/upload"
	"github.com/Project-Sylos/Mirage/sdk"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path; empty runs fully in memory")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	fmt.Println("Mirage - SDK Demo")
	fmt.Println("=================")
	fmt.Println("This is a demonstration of the Mirage SDK functionality.")
	fmt.Println("For the API server, run: go run ./cmd/api")
	fmt.Println()

	runDemo(*configPath)
}

func showHelp() {
	fmt.Println("Mirage - Local cloud file and collaboration API emulator")
	fmt.Println("========================================================")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  go run . [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -config string")
	fmt.Println("        Configuration file path (default: in-memory stores)")
	fmt.Println("  -help")
	fmt.Println("        Show this help message")
	fmt.Println()
	fmt.Println("API Server:")
	fmt.Println("  go run ./cmd/api -config mirage.yaml")
}

func open(configPath string) (*sdk.Mirage, error) {
	if configPath != "" {
		return sdk.New(configPath)
	}
	cfg := config.DefaultConfig()
	cfg.Items = types.ItemStoreConfig{Type: "memory"}
	cfg.Blobs = types.BlobStoreConfig{Type: "memory"}
	return sdk.NewWithConfig(context.Background(), &cfg)
}

func runDemo(configPath string) {
	ctx := context.Background()

	m, err := open(configPath)
	if err != nil {
		log.Fatalf("Failed to initialize Mirage: %v", err)
	}
	defer m.Close()

	stats, err := m.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to get stats: %v", err)
	}
	fmt.Printf("Store holds %d items\n", stats.Total)
	for _, t := range types.AllItemTypes {
		fmt.Printf("  %-9s %d\n", t, stats.Counts[t])
	}

	sites, err := m.Graph().ListSites(ctx)
	if err != nil || len(sites) == 0 {
		log.Fatalf("No sites available (seed disabled?): %v", err)
	}
	site := sites[0]
	drives, err := m.Graph().SiteDrives(ctx, site.ID)
	if err != nil || len(drives) == 0 {
		log.Fatalf("No document library in site %s: %v", site.Name, err)
	}
	drive := drives[0]
	fmt.Printf("\nSite %q, library %q (%s)\n", site.Name, drive.Name, drive.ID)

	// Walk the library through the fs.FS view
	fmt.Println("\nLibrary contents:")
	err = fs.WalkDir(m.AsFS(drive.ID), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			fmt.Printf("  %s/\n", path)
		} else {
			fmt.Printf("  %s (%d bytes)\n", path, info.Size())
		}
		return nil
	})
	if err != nil {
		log.Printf("Failed to walk library: %v", err)
	}

	// Resumable upload in two out-of-order chunks
	fmt.Println("\nUploading report.txt in two chunks...")
	content := []byte("quarterly numbers: all good")
	status, err := m.Uploads().Create(ctx, upload.CreateRequest{DriveID: drive.ID, ParentID: drive.ID, FileName: "report.txt"})
	if err != nil {
		log.Fatalf("Failed to create upload session: %v", err)
	}
	half := len(content) / 2
	total := len(content)
	if _, err := m.Uploads().ReceiveChunk(ctx, status.SessionID, fmt.Sprintf("bytes %d-%d/%d", half, total-1, total), content[half:]); err != nil {
		log.Fatalf("Failed to upload second half: %v", err)
	}
	result, err := m.Uploads().ReceiveChunk(ctx, status.SessionID, fmt.Sprintf("bytes 0-%d/%d", half-1, total), content[:half])
	if err != nil {
		log.Fatalf("Failed to upload first half: %v", err)
	}
	fmt.Printf("Created %s (%d bytes, sha256 %s)\n", result.Item.Path, result.Item.Size, result.Item.Checksum)

	// $filter over list items
	lists, err := m.Graph().SiteLists(ctx, site.ID)
	if err == nil && len(lists) > 0 {
		items, err := m.Graph().ListItems(ctx, site.ID, lists[0].ID)
		if err != nil {
			log.Fatalf("Failed to list items: %v", err)
		}
		resources, err := m.Graph().RepresentAll(ctx, items)
		if err != nil {
			log.Fatalf("Failed to represent items: %v", err)
		}
		expr := "fields/Status ne 'Done'"
		f, err := filter.Compile(expr)
		if err != nil {
			log.Fatalf("Failed to compile filter: %v", err)
		}
		pending := (graph.Query{Filter: f}).Apply(resources)
		fmt.Printf("\n%d of %d tasks match %q\n", len(pending), len(resources), expr)
		for _, r := range pending {
			fmt.Printf("  %v [%v]\n", r.Fields["Title"], r.Fields["Status"])
		}
	}

	fmt.Println("\nResetting emulator...")
	if _, err := m.Reset(ctx); err != nil {
		log.Printf("Failed to reset: %v", err)
	} else {
		fmt.Println("Emulator reset completed!")
	}

	fmt.Println("\nMirage SDK demo completed successfully!")
}
