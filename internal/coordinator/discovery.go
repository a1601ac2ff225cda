package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Leadrive/eventql/internal/errs"
	"github.com/Leadrive/eventql/internal/metadata"
)

// DiscoverPartition iterates a table's metadata servers in order, skipping
// any that fail to respond, and returns the first response whose txnseq
// meets req.MinTxnSeq. If every server responds but none meets the bar, it
// returns ConcurrentModification; if none respond at all, it returns
// IOError.
func (c *Coordinator) DiscoverPartition(req metadata.DiscoveryRequest) (*metadata.DiscoveryResponse, error) {
	cfg, err := c.dir.GetTableConfig(req.Namespace, req.Table)
	if err != nil {
		return nil, err
	}

	sawStale := false
	for _, addr := range cfg.MetadataServers {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		resp, err := c.discoverOne(ctx, addr, req)
		cancel()
		if err != nil {
			c.logger.Warn("discovery rpc to %s failed: %v", addr, err)
			continue
		}
		if resp.TxnSeq < req.MinTxnSeq {
			sawStale = true
			continue
		}
		return resp, nil
	}

	if sawStale {
		return nil, errs.ConcurrentModification("no metadata server has reached txnseq %d", req.MinTxnSeq)
	}
	return nil, errs.IOError("no metadata server could serve the discovery request")
}

func (c *Coordinator) discoverOne(ctx context.Context, addr string, req metadata.DiscoveryRequest) (*metadata.DiscoveryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/rpc/discover_partition_metadata", bytes.NewReader(body))
	if err != nil {
		return nil, errs.IOError("build discovery request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errs.WrapIO(err, "discovery rpc request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.IOError("discovery rpc returned %d", resp.StatusCode)
	}
	var out metadata.DiscoveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
