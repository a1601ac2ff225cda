// Package directory is the cluster's in-memory view of server and table
// configuration: who the known servers are, and the current
// metadata_txnid/txnseq/server-set for each table. It is grounded on the
// a small, mutex-protected,
// clone-on-read registry) rather than its binary-log persistence, since
// this registry is config state a cluster distributes out-of-band, not a
// data-plane log.
package directory

import (
	"sync"

	"github.com/Leadrive/eventql/internal/config"
	"github.com/Leadrive/eventql/internal/errs"
)

// ServerConfig is one known server in the cluster.
type ServerConfig struct {
	ServerID string
	Addr     string
	Up       bool
}

// ClusterConfig is a snapshot of every known server.
type ClusterConfig struct {
	Servers []ServerConfig
}

// ConfigDirectory is the read/write interface partitions and the
// coordinator use to resolve server and table configuration.
type ConfigDirectory interface {
	GetServerConfig(id string) (ServerConfig, error)
	GetTableConfig(namespace, table string) (*config.TableConfig, error)
	UpdateTableConfig(cfg *config.TableConfig) error
	GetClusterConfig() ClusterConfig
	GetServerID() string
}

func tableKey(namespace, table string) string { return namespace + "/" + table }

// InMemory is a single-process ConfigDirectory, the concrete directory a
// standalone node or test harness uses in place of a real distributed
// config service.
type InMemory struct {
	mu       sync.RWMutex
	serverID string
	servers  map[string]ServerConfig
	tables   map[string]*config.TableConfig
}

func NewInMemory(serverID string) *InMemory {
	return &InMemory{
		serverID: serverID,
		servers:  make(map[string]ServerConfig),
		tables:   make(map[string]*config.TableConfig),
	}
}

func (d *InMemory) AddServer(s ServerConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.servers[s.ServerID] = s
}

func (d *InMemory) PutTableConfig(cfg *config.TableConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	clone := *cfg
	d.tables[tableKey(cfg.Namespace, cfg.Table)] = &clone
}

func (d *InMemory) GetServerConfig(id string) (ServerConfig, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.servers[id]
	if !ok {
		return ServerConfig{}, errs.IllegalArgument("unknown server %q", id)
	}
	return s, nil
}

func (d *InMemory) GetTableConfig(namespace, table string) (*config.TableConfig, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cfg, ok := d.tables[tableKey(namespace, table)]
	if !ok {
		return nil, errs.IllegalArgument("unknown table %s/%s", namespace, table)
	}
	clone := *cfg
	return &clone, nil
}

func (d *InMemory) UpdateTableConfig(cfg *config.TableConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := tableKey(cfg.Namespace, cfg.Table)
	if _, ok := d.tables[key]; !ok {
		return errs.IllegalArgument("unknown table %s/%s", cfg.Namespace, cfg.Table)
	}
	clone := *cfg
	d.tables[key] = &clone
	return nil
}

func (d *InMemory) GetClusterConfig() ClusterConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := ClusterConfig{}
	for _, s := range d.servers {
		out.Servers = append(out.Servers, s)
	}
	return out
}

func (d *InMemory) GetServerID() string { return d.serverID }
