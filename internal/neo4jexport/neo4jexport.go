// Package neo4jexport writes a built graph to a Neo4j database.
package neo4jexport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/logger"
)

// ErrNoURI is returned by Connect when no server URI is configured.
var ErrNoURI = errors.New("neo4j URI not configured (set neo4j_uri or NEO4J_URI)")

// DefaultBatchSize bounds the rows sent in one UNWIND statement.
const DefaultBatchSize = 500

// wgs84 is the Neo4j spatial reference id for geographic points.
const wgs84 = 4326

// Config holds connection settings.
type Config struct {
	URI       string
	User      string
	Password  string
	Database  string
	BatchSize int
	Timeout   time.Duration
}

// Client is a connected exporter.
type Client struct {
	driver    neo4j.DriverWithContext
	database  string
	batchSize int
}

// Connect opens a driver and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, ErrNoURI
	}
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}
	return &Client{driver: driver, database: cfg.Database, batchSize: cfg.BatchSize}, nil
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}

// Stats reports what Export wrote.
type Stats struct {
	Nodes    int    `json:"nodes"`
	Edges    int    `json:"edges"`
	Duration string `json:"duration"`
}

// Export merges every node and edge of g. With clear set, existing nodes
// carrying one of the graph's labels are deleted first. Nodes are merged
// by id, so repeated exports update in place.
func (c *Client) Export(ctx context.Context, g *graph.Graph, clear bool) (Stats, error) {
	start := time.Now()
	var stats Stats

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.database,
	})
	defer session.Close(ctx)

	for _, q := range SchemaStatements() {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			logger.Warn("neo4j schema statement failed", "statement", q, "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}

	if clear {
		for _, t := range graph.NodeTypes {
			if err := c.write(ctx, session, fmt.Sprintf("MATCH (n:%s) DETACH DELETE n", t), nil); err != nil {
				return stats, fmt.Errorf("clearing %s nodes: %w", t, err)
			}
		}
	}

	nodes := NodeRows(g)
	for _, t := range graph.NodeTypes {
		rows := nodes[t]
		for _, batch := range chunk(rows, c.batchSize) {
			if err := c.write(ctx, session, NodeQuery(t), map[string]any{"rows": batch}); err != nil {
				return stats, fmt.Errorf("writing %s nodes: %w", t, err)
			}
		}
		stats.Nodes += len(rows)
		logger.Debug("neo4j nodes written", "label", t, "count", len(rows))
	}

	edges := EdgeRows(g)
	for _, t := range graph.EdgeTypes {
		rows := edges[t]
		for _, batch := range chunk(rows, c.batchSize) {
			if err := c.write(ctx, session, EdgeQuery(t), map[string]any{"rows": batch}); err != nil {
				return stats, fmt.Errorf("writing %s edges: %w", t, err)
			}
		}
		stats.Edges += len(rows)
		logger.Debug("neo4j edges written", "type", t, "count", len(rows))
	}

	stats.Duration = time.Since(start).Round(time.Millisecond).String()
	logger.Info("neo4j export complete", "nodes", stats.Nodes, "edges", stats.Edges, "duration", stats.Duration)
	return stats, nil
}

func (c *Client) write(ctx context.Context, session neo4j.SessionWithContext, query string, params map[string]any) error {
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

func chunk(rows []map[string]any, size int) [][]map[string]any {
	var out [][]map[string]any
	for len(rows) > 0 {
		n := min(size, len(rows))
		out = append(out, rows[:n])
		rows = rows[n:]
	}
	return out
}

// SchemaStatements returns the uniqueness constraints for node ids.
func SchemaStatements() []string {
	out := make([]string, 0, len(graph.NodeTypes))
	for _, t := range graph.NodeTypes {
		out = append(out, fmt.Sprintf(
			"CREATE CONSTRAINT %s_id_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE",
			snake(string(t)), t))
	}
	return out
}

func snake(s string) string {
	out := make([]byte, 0, len(s)+2)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch >= 'A' && ch <= 'Z' {
			if i > 0 && s[i-1] >= 'a' && s[i-1] <= 'z' {
				out = append(out, '_')
			}
			ch += 'a' - 'A'
		}
		out = append(out, ch)
	}
	return string(out)
}

// NodeQuery returns the UNWIND statement merging nodes of one type.
func NodeQuery(t graph.NodeType) string {
	return fmt.Sprintf("UNWIND $rows AS r\nMERGE (n:%s {id: r.id})\nSET n += r", t)
}

// endpoints maps each edge type to its source and target labels.
var endpoints = map[graph.EdgeType][2]graph.NodeType{
	graph.LocatedIn:     {graph.NodeFacility, graph.NodeRegion},
	graph.OperatesIn:    {graph.NodeNGO, graph.NodeRegion},
	graph.HasSpecialty:  {graph.NodeFacility, graph.NodeSpecialty},
	graph.HasCapability: {graph.NodeFacility, graph.NodeCapability},
	graph.HasEquipment:  {graph.NodeFacility, graph.NodeEquipment},
	graph.Lacks:         {graph.NodeFacility, graph.NodeEquipment},
	graph.CouldSupport:  {graph.NodeFacility, graph.NodeCapability},
	graph.DesertFor:     {graph.NodeRegion, graph.NodeSpecialty},
}

// EdgeQuery returns the UNWIND statement merging edges of one type. Edges
// are keyed by their graph id so parallel edges of one type survive.
func EdgeQuery(t graph.EdgeType) string {
	var from, to string
	if ep, ok := endpoints[t]; ok {
		from, to = ":"+string(ep[0]), ":"+string(ep[1])
	}
	return fmt.Sprintf("UNWIND $rows AS r\n"+
		"MATCH (a%s {id: r.from})\n"+
		"MATCH (b%s {id: r.to})\n"+
		"MERGE (a)-[e:%s {edge_id: r.edge_id}]->(b)\n"+
		"SET e += r.props", from, to, t)
}

// NodeRows flattens every node into property maps grouped by type. Only
// values Neo4j can store are emitted; unset optional values are omitted.
func NodeRows(g *graph.Graph) map[graph.NodeType][]map[string]any {
	out := make(map[graph.NodeType][]map[string]any)
	for _, n := range g.Nodes("") {
		row := map[string]any{
			"id":   n.ID,
			"key":  graph.KeyOf(n.ID),
			"name": n.Name(),
		}
		switch {
		case n.Region != nil:
			r := n.Region
			row["population"] = int64(r.Population)
			setString(row, "capital", r.Capital)
			row["location"] = neo4j.Point2D{X: r.Lng, Y: r.Lat, SpatialRefId: wgs84}
		case n.Facility != nil:
			facilityProps(row, n.Facility)
		case n.NGO != nil:
			a := n.NGO
			setString(row, "region", a.Region)
			setString(row, "mission_summary", a.MissionSummary)
			setString(row, "description", a.Description)
			setString(row, "email", a.Email)
			setStrings(row, "countries", a.Countries)
			setStrings(row, "phone_numbers", a.PhoneNumbers)
			setStrings(row, "websites", a.Websites)
			row["source_count"] = int64(a.SourceCount)
		case n.Vocab != nil:
			setString(row, "category", n.Vocab.Category)
			setString(row, "complexity", n.Vocab.Complexity)
		}
		out[n.Type] = append(out[n.Type], row)
	}
	return out
}

func facilityProps(row map[string]any, f *graph.FacilityAttrs) {
	setString(row, "facility_type", f.FacilityType)
	setString(row, "operator_type", f.OperatorType)
	setString(row, "city", f.City)
	setString(row, "region", f.Region)
	setString(row, "email", f.Email)
	setString(row, "description", f.Description)
	setInt(row, "capacity", f.Capacity)
	setInt(row, "number_doctors", f.NumberDoctors)
	setInt(row, "year_established", f.YearEstablished)
	if f.Area != nil {
		row["area"] = *f.Area
	}
	if f.HasLocation() {
		row["location"] = neo4j.Point2D{X: *f.Lng, Y: *f.Lat, SpatialRefId: wgs84}
	}
	setStrings(row, "phone_numbers", f.PhoneNumbers)
	setStrings(row, "websites", f.Websites)
	setStrings(row, "raw_procedures", f.RawProcedures)
	setStrings(row, "raw_equipment", f.RawEquipment)
	setStrings(row, "raw_capabilities", f.RawCapabilities)
	setStrings(row, "quality_flags", f.QualityFlags)
	row["source_count"] = int64(f.SourceCount)
}

// EdgeRows flattens every edge into {edge_id, from, to, props} rows
// grouped by type.
func EdgeRows(g *graph.Graph) map[graph.EdgeType][]map[string]any {
	out := make(map[graph.EdgeType][]map[string]any)
	for _, e := range g.Edges("") {
		props := map[string]any{}
		if e.Confidence > 0 {
			props["confidence"] = e.Confidence
		}
		setString(props, "source", e.Source)
		setString(props, "source_field", e.SourceField)
		setString(props, "raw_text", e.RawText)
		setString(props, "city", e.City)
		if l := e.Lacks; l != nil {
			setStrings(props, "required_by", l.RequiredBy)
			setString(props, "evidence_status", l.EvidenceStatus)
			setString(props, "reason", l.Reason)
		}
		if s := e.Support; s != nil {
			props["readiness_score"] = s.Readiness
			setStrings(props, "existing_equipment", s.Existing)
			setStrings(props, "missing_equipment", s.Missing)
		}
		if d := e.Desert; d != nil {
			props["facility_count"] = int64(d.FacilityCount)
			props["population"] = int64(d.Population)
			props["severity"] = d.Severity
			setString(props, "nearest_region_with_service", d.NearestRegion)
		}
		out[e.Type] = append(out[e.Type], map[string]any{
			"edge_id": int64(e.ID),
			"from":    e.From,
			"to":      e.To,
			"props":   props,
		})
	}
	return out
}

func setString(m map[string]any, k, v string) {
	if v != "" {
		m[k] = v
	}
}

func setStrings(m map[string]any, k string, v []string) {
	if len(v) > 0 {
		m[k] = v
	}
}

func setInt(m map[string]any, k string, v *int) {
	if v != nil {
		m[k] = int64(*v)
	}
}
