package memory

import (
	"testing"

	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/store/storetest"
)

// Interface compliance (compile-time assertion)
var _ core.ReviewStore = (*Store)(nil)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) core.ReviewStore { return New() })
}
