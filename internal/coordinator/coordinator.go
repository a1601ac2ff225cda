// Package coordinator is the metadata-coordination client: it applies
// metadata operations with quorum across a table's metadata-server set,
// and resolves partition discovery requests against the same set. RPCs
// fan out concurrently via golang.org/x/sync/errgroup, the same
// parallel-fan-out-then-join idiom this cluster's other services
// use for multi-target calls.
package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Leadrive/eventql/internal/directory"
	"github.com/Leadrive/eventql/internal/errs"
	"github.com/Leadrive/eventql/internal/logger"
	"github.com/Leadrive/eventql/internal/metadata"
)

// Coordinator is a client against a table's metadata servers.
type Coordinator struct {
	dir        directory.ConfigDirectory
	httpClient *http.Client
	classifier *errs.Classifier
	retry      *errs.RetryController
	tracker    *errs.ErrorTracker
	logger     *logger.Logger
}

func New(dir directory.ConfigDirectory, log *logger.Logger) *Coordinator {
	return &Coordinator{
		dir:        dir,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		classifier: errs.NewClassifier(),
		retry:      errs.NewRetryController(),
		tracker:    errs.NewErrorTracker(),
		logger:     log,
	}
}

// ErrorStats exposes per-category RPC failure counts for an operator
// dashboard, and the most recent critical-category failures (quorum
// failures and checksum divergence) for alerting.
func (c *Coordinator) ErrorStats() (transient, permanent, critical uint64, alerts []errs.CriticalAlert) {
	return c.tracker.Count(errs.CategoryTransient),
		c.tracker.Count(errs.CategoryPermanent),
		c.tracker.Count(errs.CategoryCritical),
		c.tracker.CriticalAlerts()
}

// PerformAndCommitOperation implements the four-step quorum algorithm: load
// the table config, check the operation's input_txnid, broadcast to every
// metadata server, require checksum agreement, require at most
// (n-1)/2 failures, then advance the table's txnid/txnseq.
func (c *Coordinator) PerformAndCommitOperation(namespace, table string, op metadata.Operation) error {
	cfg, err := c.dir.GetTableConfig(namespace, table)
	if err != nil {
		return err
	}
	if op.InputTxnID != cfg.MetadataTxnID {
		return errs.ConcurrentModification("operation input_txnid does not match table's current metadata_txnid")
	}

	results, failures := c.broadcast(cfg.MetadataServers, func(ctx context.Context, addr string) (metadata.Result, error) {
		return c.postOperation(ctx, addr, namespace, table, op)
	})

	checksums := make(map[uint32]struct{})
	for _, r := range results {
		checksums[r.MetadataFileChecksum] = struct{}{}
	}
	if len(checksums) > 1 {
		err := errs.Runtime("metadata servers diverged: operation would corrupt the metadata file")
		c.tracker.RecordError(err, errs.CategoryCritical)
		return err
	}

	if failures > maxFailures(len(cfg.MetadataServers)) {
		err := errs.Runtime("error while performing metadata operation: too many metadata servers failed")
		c.tracker.RecordError(err, errs.CategoryCritical)
		return err
	}

	cfg.MetadataTxnID = op.OutputTxnID
	cfg.MetadataTxnSeq++
	return c.dir.UpdateTableConfig(cfg)
}

// CreateFile bootstraps a table's metadata file across its servers, subject
// to the same quorum rule as PerformAndCommitOperation but without a
// checksum-divergence check, since there is no prior state to diverge from.
func (c *Coordinator) CreateFile(namespace, table string, file *metadata.File, servers []string) error {
	_, failures := c.broadcast(servers, func(ctx context.Context, addr string) (metadata.Result, error) {
		return metadata.Result{}, c.postCreateFile(ctx, addr, namespace, table, file)
	})

	if failures > maxFailures(len(servers)) {
		return errs.Runtime("error while creating metadata file: too many metadata servers failed")
	}
	return nil
}

func maxFailures(n int) int {
	if n <= 1 {
		return 0
	}
	return (n - 1) / 2
}

// broadcast fans call out to every server concurrently and returns the
// successful results plus a count of failures.
func (c *Coordinator) broadcast(servers []string, call func(context.Context, string) (metadata.Result, error)) ([]metadata.Result, int) {
	results := make([]metadata.Result, len(servers))
	ok := make([]bool, len(servers))

	var g errgroup.Group
	for i, addr := range servers {
		i, addr := i, addr
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			res, err := call(ctx, addr)
			if err != nil {
				c.tracker.RecordError(err, c.classifier.Classify(err))
				c.logger.Warn("metadata rpc to %s failed: %v", addr, err)
				return nil
			}
			results[i] = res
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var out []metadata.Result
	failures := 0
	for i := range servers {
		if ok[i] {
			out = append(out, results[i])
		} else {
			failures++
		}
	}
	return out, failures
}

func (c *Coordinator) postOperation(ctx context.Context, addr, namespace, table string, op metadata.Operation) (metadata.Result, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return metadata.Result{}, err
	}
	url := fmt.Sprintf("%s/rpc/perform_metadata_operation?namespace=%s&table=%s", addr, namespace, table)
	var result metadata.Result
	err = c.retry.Retry(func() error {
		return c.postJSON(ctx, url, body, http.StatusCreated, &result)
	}, c.classifier)
	return result, err
}

func (c *Coordinator) postCreateFile(ctx context.Context, addr, namespace, table string, file *metadata.File) error {
	body, err := json.Marshal(file)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/rpc/create_metadata_file?namespace=%s&table=%s", addr, namespace, table)
	return c.retry.Retry(func() error {
		return c.postJSON(ctx, url, body, http.StatusCreated, nil)
	}, c.classifier)
}

func (c *Coordinator) postJSON(ctx context.Context, url string, body []byte, wantStatus int, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errs.IOError("build metadata rpc request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.WrapIO(err, "metadata rpc request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var msg bytes.Buffer
		msg.ReadFrom(resp.Body)
		return errs.IOError("metadata rpc returned %d: %s", resp.StatusCode, msg.String())
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
