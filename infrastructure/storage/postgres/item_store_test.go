package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/felixgeelhaar/dynamic-mcp/domain/item"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/itemtest"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/postgres"
)

// TestItemStore runs against the database named by DMCP_POSTGRES_URL. Each
// subtest gets its own schema.
func TestItemStore(t *testing.T) {
	url := os.Getenv("DMCP_POSTGRES_URL")
	if url == "" {
		t.Skip("DMCP_POSTGRES_URL not set")
	}

	n := 0
	itemtest.Run(t, func(t *testing.T) item.Store {
		n++
		ctx := context.Background()
		schema := fmt.Sprintf("itemtest_%d_%d", os.Getpid(), n)

		s, err := postgres.NewItemStore(ctx, postgres.DefaultConfig(),
			postgres.WithURL(url),
			postgres.WithSchema(schema),
		)
		if err != nil {
			t.Fatalf("NewItemStore(%s) failed: %v", schema, err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
