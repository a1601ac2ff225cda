package metadatasrv

import "github.com/Leadrive/eventql/internal/metadata"

func buildDiscoveryResponse(state *tableState, partitionID metadata.PartitionID) metadata.DiscoveryResponse {
	resp := metadata.DiscoveryResponse{
		TxnID:  state.file.TxnID,
		TxnSeq: state.txnSeq,
	}
	for _, e := range state.file.Entries {
		if e.PartitionID != partitionID {
			continue
		}
		resp.KeyrangeBegin = e.KeyrangeBegin
		for _, s := range e.ServerSet {
			resp.ReplicationTargets = append(resp.ReplicationTargets, metadata.DiscoveredTarget{
				ServerID:    s,
				PartitionID: partitionID,
			})
		}
	}
	return resp
}
