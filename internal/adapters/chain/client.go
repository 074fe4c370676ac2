package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/ulixee/payments-sub000/internal/domain"
)

const latestBlockKey = "latest"

// Client reads the main-chain tip from the bridge's HTTP endpoint. The tip is
// cached briefly so bursts of note creation share one request.
type Client struct {
	base   string
	client *http.Client
	cache  *expirable.LRU[string, domain.Block]
}

func NewClient(base string, httpClient *http.Client, cacheTTL time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		client: httpClient,
		cache:  expirable.NewLRU[string, domain.Block](1, nil, cacheTTL),
	}
}

// CurrentBlock returns the latest block height and hash.
func (c *Client) CurrentBlock(ctx context.Context) (domain.Block, error) {
	if block, ok := c.cache.Get(latestBlockKey); ok {
		return block, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/blocks/latest", nil)
	if err != nil {
		return domain.Block{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Block{}, fmt.Errorf("chain latest block: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return domain.Block{}, fmt.Errorf("chain latest block: %s", string(b))
	}
	var out struct {
		Height json.Number `json:"height"`
		Hash   string      `json:"hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Block{}, err
	}
	height, err := strconv.ParseInt(out.Height.String(), 10, 64)
	if err != nil {
		return domain.Block{}, fmt.Errorf("chain latest block height: %w", err)
	}
	block := domain.Block{Height: height, Hash: out.Hash}
	c.cache.Add(latestBlockKey, block)
	return block, nil
}

// StaticBridge serves a fixed tip for development and tests.
type StaticBridge struct {
	height atomic.Int64
	hash   string
}

func NewStaticBridge(height int64, hash string) *StaticBridge {
	b := &StaticBridge{hash: hash}
	b.height.Store(height)
	return b
}

func (b *StaticBridge) CurrentBlock(context.Context) (domain.Block, error) {
	return domain.Block{Height: b.height.Load(), Hash: b.hash}, nil
}

// Advance moves the tip forward by n blocks.
func (b *StaticBridge) Advance(n int64) {
	b.height.Add(n)
}
