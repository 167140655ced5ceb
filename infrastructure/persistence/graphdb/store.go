// Package graphdb implements the graph store on the official Neo4j driver.
package graphdb

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/domain/graph"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
)

// ResultKey is the column every traversal returns its {nodes, relationships}
// map under.
const ResultKey = "result"

// Config holds Neo4j connection configuration
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// GraphStore runs read-only traversals in managed read transactions.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewDriver creates a driver without contacting the server. Connectivity is
// checked by Ping so that the API can start while the database is still
// coming up.
func NewDriver(cfg Config) (neo4j.DriverWithContext, error) {
	if cfg.URI == "" {
		return nil, errors.NewConfigurationError("NEO4J_URI")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, errors.Wrap(err, "creating neo4j driver")
	}
	return driver, nil
}

// NewGraphStore creates a graph store on driver.
func NewGraphStore(driver neo4j.DriverWithContext, database string, logger *zap.Logger) *GraphStore {
	return &GraphStore{driver: driver, database: database, logger: logger}
}

// QueryContext runs cypher with params and decodes the "result" column of
// every returned row.
func (s *GraphStore) QueryContext(ctx context.Context, cypher string, params map[string]interface{}) ([]graph.RawResult, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	start := time.Now()
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		var rows []graph.RawResult
		for res.Next(ctx) {
			value, ok := res.Record().Get(ResultKey)
			if !ok {
				continue
			}
			row, err := DecodeResult(value)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return rows, res.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, "neo4j read transaction")
	}

	rows, _ := out.([]graph.RawResult)
	s.logger.Debug("graph query completed",
		zap.Int("rows", len(rows)),
		zap.Duration("duration", time.Since(start)),
	)
	return rows, nil
}

// Ping verifies that the server is reachable.
func (s *GraphStore) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close closes the underlying driver.
func (s *GraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
