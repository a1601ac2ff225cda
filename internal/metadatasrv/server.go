// Package metadatasrv hosts the metadata server's three RPC endpoints over
// HTTP using gin, the transport this monorepo's sibling platform service
// serves its own RPC surface with.
package metadatasrv

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/Leadrive/eventql/internal/errs"
	"github.com/Leadrive/eventql/internal/logger"
	"github.com/Leadrive/eventql/internal/metadata"
)

type tableState struct {
	file   *metadata.File
	txnSeq uint64
}

// Server holds one process's view of every table's metadata file. A real
// cluster runs several of these behind the coordinator's quorum logic;
// this type only needs to be internally consistent, not cluster-aware.
type Server struct {
	mu     sync.Mutex
	tables map[string]*tableState
	router *gin.Engine
	logger *logger.Logger
}

func tableKey(namespace, table string) string { return namespace + "/" + table }

func New(log *logger.Logger) *Server {
	s := &Server{
		tables: make(map[string]*tableState),
		logger: log,
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/rpc/create_metadata_file", s.handleCreateFile)
	r.POST("/rpc/perform_metadata_operation", s.handlePerformOperation)
	r.POST("/rpc/discover_partition_metadata", s.handleDiscoverPartition)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleCreateFile(c *gin.Context) {
	namespace := c.Query("namespace")
	table := c.Query("table")
	if namespace == "" || table == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.IllegalArgument("missing namespace/table query params").Error()})
		return
	}

	var file metadata.File
	if err := c.ShouldBindJSON(&file); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.tables[tableKey(namespace, table)] = &tableState{file: &file}
	s.mu.Unlock()

	s.logger.Info("metadata server: created file for %s/%s at txnid=%s", namespace, table, file.TxnID)
	c.Status(http.StatusCreated)
}

func (s *Server) handlePerformOperation(c *gin.Context) {
	namespace := c.Query("namespace")
	table := c.Query("table")
	if namespace == "" || table == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.IllegalArgument("missing namespace/table query params").Error()})
		return
	}

	var op metadata.Operation
	if err := c.ShouldBindJSON(&op); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tableKey(namespace, table)
	state, ok := s.tables[key]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no metadata file for table"})
		return
	}

	next, err := applyOperation(state.file, op)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	state.file = next
	state.txnSeq++

	checksum, err := next.Checksum()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info("metadata server: applied %s to %s/%s, new txnid=%s", op.OpType, namespace, table, next.TxnID)
	c.JSON(http.StatusCreated, metadata.Result{MetadataFileChecksum: checksum})
}

func (s *Server) handleDiscoverPartition(c *gin.Context) {
	var req metadata.DiscoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	state, ok := s.tables[tableKey(req.Namespace, req.Table)]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no metadata file for table"})
		return
	}

	resp := buildDiscoveryResponse(state, req.PartitionID)
	c.JSON(http.StatusOK, resp)
}
