package memory

import (
	"testing"

	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/store/storetest"
)

func TestItemStore(t *testing.T) {
	suite := &storetest.ItemStoreSuite{
		NewStore: func(t *testing.T) store.ItemStore { return NewItemStore() },
	}
	suite.Run(t)
}

func TestBlobStore(t *testing.T) {
	suite := &storetest.BlobStoreSuite{
		NewStore: func(t *testing.T) store.BlobStore { return NewBlobStore() },
	}
	suite.Run(t)
}
