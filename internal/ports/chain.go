package ports

import (
	"context"

	"github.com/ulixee/payments-sub000/internal/domain"
)

type ChainBridge interface {
	CurrentBlock(ctx context.Context) (domain.Block, error)
}
