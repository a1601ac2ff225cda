package metadatasrv

import (
	"github.com/Leadrive/eventql/internal/errs"
	"github.com/Leadrive/eventql/internal/metadata"
)

// applyOperation computes the next metadata file state for op, validating
// that OpType matches the populated payload and that the file hasn't moved
// on since the operation was built.
func applyOperation(file *metadata.File, op metadata.Operation) (*metadata.File, error) {
	if op.InputTxnID != file.TxnID {
		return nil, errs.ConcurrentModification("operation input_txnid does not match metadata file's current txnid")
	}

	switch op.OpType {
	case metadata.OpSplitPartition:
		if op.SplitPartition == nil {
			return nil, errs.IllegalArgument("SPLIT_PARTITION operation missing split payload")
		}
		return applySplit(file, op)
	default:
		return nil, errs.IllegalArgument("unsupported metadata operation type %s", op.OpType)
	}
}

func applySplit(file *metadata.File, op metadata.Operation) (*metadata.File, error) {
	payload := op.SplitPartition
	entries := make([]metadata.Entry, 0, len(file.Entries)+1)
	found := false
	for _, e := range file.Entries {
		if e.PartitionID == payload.PartitionID {
			found = true
			entries = append(entries,
				metadata.Entry{PartitionID: payload.SplitPartitionIDLow, KeyrangeBegin: e.KeyrangeBegin, ServerSet: payload.SplitServersLow},
				metadata.Entry{PartitionID: payload.SplitPartitionIDHigh, KeyrangeBegin: payload.SplitPoint, ServerSet: payload.SplitServersHigh},
			)
			continue
		}
		entries = append(entries, e)
	}
	if !found {
		return nil, errs.IllegalArgument("split references unknown partition")
	}

	return &metadata.File{TxnID: op.OutputTxnID, Entries: entries}, nil
}
