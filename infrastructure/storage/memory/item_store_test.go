package memory_test

import (
	"testing"

	"github.com/felixgeelhaar/dynamic-mcp/domain/item"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/itemtest"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/memory"
)

func TestItemStore(t *testing.T) {
	itemtest.Run(t, func(t *testing.T) item.Store {
		return memory.NewItemStore()
	})
}
