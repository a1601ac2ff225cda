package coordinator_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/Leadrive/eventql/internal/config"
	"github.com/Leadrive/eventql/internal/coordinator"
	"github.com/Leadrive/eventql/internal/directory"
	"github.com/Leadrive/eventql/internal/logger"
	"github.com/Leadrive/eventql/internal/metadata"
	"github.com/Leadrive/eventql/internal/metadatasrv"
)

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelError, "[test] ")
}

// liveServer starts one metadatasrv instance seeded with a single-entry
// metadata file for (namespace, table).
func liveServer(t *testing.T, namespace, table string, partitionID metadata.PartitionID) (url string, closeFn func()) {
	t.Helper()
	srv := metadatasrv.New(testLogger())
	httpSrv := httptest.NewServer(srv.Handler())

	file := &metadata.File{
		Entries: []metadata.Entry{{PartitionID: partitionID, ServerSet: []string{"node-a"}}},
	}
	seed := coordinator.New(directory.NewInMemory("seed"), testLogger())
	if err := seed.CreateFile(namespace, table, file, []string{httpSrv.URL}); err != nil {
		httpSrv.Close()
		t.Fatalf("seed metadata file: %v", err)
	}
	return httpSrv.URL, httpSrv.Close
}

// deadServer returns a URL that reliably refuses connections: a real
// listener that was immediately closed.
func deadServer() string {
	httpSrv := httptest.NewServer(metadatasrv.New(testLogger()).Handler())
	httpSrv.Close()
	return httpSrv.URL
}

func buildDirectory(namespace, table string, servers []string) (*directory.InMemory, *config.TableConfig) {
	dir := directory.NewInMemory("node-a")
	cfg := config.DefaultTableConfig(namespace, table)
	cfg.MetadataTxnID = metadata.TxnID{}
	cfg.MetadataServers = servers
	dir.PutTableConfig(cfg)
	return dir, cfg
}

func splitOp(namespace, table string, partitionID metadata.PartitionID) metadata.Operation {
	return metadata.Operation{
		Namespace:   namespace,
		Table:       table,
		InputTxnID:  metadata.TxnID{},
		OutputTxnID: metadata.NewTxnID(),
		OpType:      metadata.OpSplitPartition,
		SplitPartition: &metadata.SplitPartitionOp{
			PartitionID:          partitionID,
			SplitPoint:           []byte("m"),
			SplitServersLow:      []string{"node-a"},
			SplitServersHigh:     []string{"node-b"},
			SplitPartitionIDLow:  metadata.NewPartitionID(),
			SplitPartitionIDHigh: metadata.NewPartitionID(),
			PlacementID:          metadata.NewPlacementID(),
		},
	}
}

// 3 metadata servers, 1 unreachable: failures (1) stay within
// max_failures = (n-1)/2 = 1, so the operation commits and the table's
// txnseq advances by exactly 1.
func TestPerformAndCommitOperationToleratesOneFailureOfThree(t *testing.T) {
	const namespace, table = "ns", "quorum-tolerate"
	partitionID := metadata.NewPartitionID()

	url1, close1 := liveServer(t, namespace, table, partitionID)
	defer close1()
	url2, close2 := liveServer(t, namespace, table, partitionID)
	defer close2()

	dir, _ := buildDirectory(namespace, table, []string{url1, url2, deadServer()})
	coord := coordinator.New(dir, testLogger())

	op := splitOp(namespace, table, partitionID)
	if err := coord.PerformAndCommitOperation(namespace, table, op); err != nil {
		t.Fatalf("PerformAndCommitOperation: %v", err)
	}

	updated, err := dir.GetTableConfig(namespace, table)
	if err != nil {
		t.Fatalf("GetTableConfig: %v", err)
	}
	if updated.MetadataTxnSeq != 1 {
		t.Fatalf("txnseq = %d, want 1", updated.MetadataTxnSeq)
	}
	if updated.MetadataTxnID != op.OutputTxnID {
		t.Fatalf("txnid = %s, want %s", updated.MetadataTxnID, op.OutputTxnID)
	}
}

// 3 metadata servers, 2 unreachable: failures (2) exceed max_failures
// ((n-1)/2 = 1), so the operation fails and the table config is left
// exactly as it was.
func TestPerformAndCommitOperationFailsWhenQuorumLost(t *testing.T) {
	const namespace, table = "ns", "quorum-lost"
	partitionID := metadata.NewPartitionID()

	url1, close1 := liveServer(t, namespace, table, partitionID)
	defer close1()

	dir, _ := buildDirectory(namespace, table, []string{url1, deadServer(), deadServer()})
	coord := coordinator.New(dir, testLogger())

	before, err := dir.GetTableConfig(namespace, table)
	if err != nil {
		t.Fatalf("GetTableConfig: %v", err)
	}

	op := splitOp(namespace, table, partitionID)
	if err := coord.PerformAndCommitOperation(namespace, table, op); err == nil {
		t.Fatal("PerformAndCommitOperation succeeded despite losing quorum, want error")
	}

	after, err := dir.GetTableConfig(namespace, table)
	if err != nil {
		t.Fatalf("GetTableConfig: %v", err)
	}
	if after.MetadataTxnSeq != before.MetadataTxnSeq || after.MetadataTxnID != before.MetadataTxnID {
		t.Fatal("table config changed despite a failed quorum commit")
	}
}

// All configured servers respond, but none has reached the requested
// MinTxnSeq: DiscoverPartition reports ConcurrentModification and returns
// no response, rather than serving stale data.
func TestDiscoverPartitionReportsStalenessAcrossAllServers(t *testing.T) {
	const namespace, table = "ns", "discover-stale"
	partitionID := metadata.NewPartitionID()

	url1, close1 := liveServer(t, namespace, table, partitionID)
	defer close1()
	url2, close2 := liveServer(t, namespace, table, partitionID)
	defer close2()

	dir, _ := buildDirectory(namespace, table, []string{url1, url2})
	coord := coordinator.New(dir, testLogger())

	resp, err := coord.DiscoverPartition(metadata.DiscoveryRequest{
		Namespace:   namespace,
		Table:       table,
		PartitionID: partitionID,
		MinTxnSeq:   5,
	})
	if err == nil {
		t.Fatalf("DiscoverPartition returned %+v, want ConcurrentModification", resp)
	}
	if resp != nil {
		t.Fatal("DiscoverPartition returned a non-nil response alongside an error")
	}
}
