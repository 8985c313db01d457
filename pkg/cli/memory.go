package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

func cmdMemory() *cli.Command {
	return &cli.Command{
		Name:  "memory",
		Usage: "Create, search, and manage memory records",
		Commands: []*cli.Command{
			cmdMemoryCreate(),
			cmdMemorySearch(),
			cmdMemoryGet(),
			cmdMemoryDelete(),
		},
	}
}

func cmdMemoryCreate() *cli.Command {
	var id string
	var subjectID string
	var text string
	var memType string
	var status string
	var title string
	var meta []string
	var engineCfg engineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "text",
			Usage:       "Memory text (required)",
			Required:    true,
			Destination: &text,
		},
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Memory ID (omit to create with a generated ID)",
			Destination: &id,
		},
		&cli.StringFlag{
			Name:        "subject",
			Usage:       "Subject ID owning the memory",
			Destination: &subjectID,
		},
		&cli.StringFlag{
			Name:        "type",
			Usage:       "Memory type tag",
			Destination: &memType,
		},
		&cli.StringFlag{
			Name:        "status",
			Usage:       "Lifecycle status (defaults to active)",
			Destination: &status,
		},
		&cli.StringFlag{
			Name:        "title",
			Usage:       "Short title",
			Destination: &title,
		},
		&cli.StringSliceFlag{
			Name:        "meta",
			Usage:       "Metadata entry as key=value (repeatable)",
			Destination: &meta,
		},
	}
	flags = append(flags, engineCfg.flags()...)

	return &cli.Command{
		Name:  "create",
		Usage: "Create or upsert a memory record in both stores",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}

			uc, _, closer, err := engineCfg.configure(ctx)
			if err != nil {
				return err
			}
			defer closer()

			result, err := uc.CreateOrUpsert(ctx, &model.MemoryInput{
				ID:        types.MemoryID(id),
				SubjectID: types.SubjectID(subjectID),
				Text:      text,
				Type:      memType,
				Status:    types.MemoryStatus(status),
				Title:     title,
				Metadata:  metadata,
			})
			if err != nil {
				return err
			}

			fmt.Printf("id:        %s\n", result.Memory.ID)
			fmt.Printf("vector:    %s\n", renderSyncState(result.VectorState))
			fmt.Printf("warehouse: %s\n", renderSyncState(result.WarehouseState))
			if result.WarehouseError != "" {
				fmt.Printf("warehouse error: %s\n", color.RedString(result.WarehouseError))
			}
			return nil
		},
	}
}

func cmdMemorySearch() *cli.Command {
	var query string
	var limit int
	var memType string
	var subjectID string
	var status string
	var engineCfg engineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Usage:       "Search query text (required)",
			Required:    true,
			Destination: &query,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum results (0 uses the policy default)",
			Destination: &limit,
		},
		&cli.StringFlag{
			Name:        "type",
			Usage:       "Filter by memory type",
			Destination: &memType,
		},
		&cli.StringFlag{
			Name:        "subject",
			Usage:       "Filter by subject ID",
			Destination: &subjectID,
		},
		&cli.StringFlag{
			Name:        "status",
			Usage:       "Filter by status set, comma-separated (e.g. active,archived)",
			Destination: &status,
		},
	}
	flags = append(flags, engineCfg.flags()...)

	return &cli.Command{
		Name:  "search",
		Usage: "Search memories by semantic similarity",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, policy, closer, err := engineCfg.configure(ctx)
			if err != nil {
				return err
			}
			defer closer()

			if limit == 0 {
				limit = policy.Search.DefaultLimit
			}

			hits, err := uc.Search(ctx, &model.SearchQuery{
				Text:  query,
				Limit: limit,
				Filter: model.SearchFilter{
					Type:      memType,
					SubjectID: types.SubjectID(subjectID),
					Statuses:  types.ParseStatusSet(status),
				},
			})
			if err != nil {
				return err
			}

			if len(hits) == 0 {
				fmt.Println("no results")
				return nil
			}

			for i, hit := range hits {
				printHit(i+1, hit)
			}
			return nil
		},
	}
}

func cmdMemoryGet() *cli.Command {
	var id string
	var engineCfg engineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Memory ID (required)",
			Required:    true,
			Destination: &id,
		},
	}
	flags = append(flags, engineCfg.flags()...)

	return &cli.Command{
		Name:  "get",
		Usage: "Show a memory record",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, _, closer, err := engineCfg.configure(ctx)
			if err != nil {
				return err
			}
			defer closer()

			mem, err := uc.GetMemory(ctx, types.MemoryID(id))
			if err != nil {
				return err
			}

			printMemory(mem)
			return nil
		},
	}
}

func cmdMemoryDelete() *cli.Command {
	var id string
	var engineCfg engineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Memory ID (required)",
			Required:    true,
			Destination: &id,
		},
	}
	flags = append(flags, engineCfg.flags()...)

	return &cli.Command{
		Name:  "delete",
		Usage: "Delete a memory record from the search index",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, _, closer, err := engineCfg.configure(ctx)
			if err != nil {
				return err
			}
			defer closer()

			if err := uc.DeleteMemory(ctx, types.MemoryID(id)); err != nil {
				return err
			}

			fmt.Printf("deleted %s\n", id)
			return nil
		},
	}
}

func parseMetadata(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	metadata := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, goerr.New("metadata entry must be key=value", goerr.V("entry", entry))
		}
		metadata[key] = value
	}
	return metadata, nil
}

func renderSyncState(state model.SyncState) string {
	switch state {
	case model.SyncStateOK:
		return color.GreenString(string(state))
	case model.SyncStateFailed:
		return color.RedString(string(state))
	default:
		return color.YellowString(string(state))
	}
}

func printHit(rank int, hit *model.ScoredMemory) {
	score := color.CyanString("%.4f", hit.Score)
	id := color.New(color.Bold).Sprint(hit.Memory.ID)
	fmt.Printf("%2d. [%s] %s\n", rank, score, id)

	if hit.Memory.Title != "" {
		fmt.Printf("    %s\n", hit.Memory.Title)
	}
	fmt.Printf("    %s\n", snippet(hit.Memory.Text, 120))
}

func printMemory(mem *model.Memory) {
	fmt.Printf("id:         %s\n", mem.ID)
	if mem.SubjectID != "" {
		fmt.Printf("subject:    %s\n", mem.SubjectID)
	}
	fmt.Printf("type:       %s\n", mem.Type)
	fmt.Printf("status:     %s\n", mem.Status)
	if mem.Title != "" {
		fmt.Printf("title:      %s\n", mem.Title)
	}
	fmt.Printf("text:       %s\n", mem.Text)
	for k, v := range mem.Metadata {
		fmt.Printf("meta:       %s=%s\n", k, v)
	}
	fmt.Printf("created at: %s\n", mem.CreatedAt)
	fmt.Printf("updated at: %s\n", mem.UpdatedAt)
}

func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
