package depgraph

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"
)

// Export formats write the built graph out as a debugging artifact. The
// selection pipeline never reads these back: every run rebuilds the graph
// from the working tree.

const exportSchema = `
CREATE TABLE IF NOT EXISTS files (
	id   BLOB PRIMARY KEY,
	path TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS imports (
	from_id BLOB NOT NULL,
	to_id   BLOB NOT NULL,
	PRIMARY KEY (from_id, to_id)
);
`

// nodeID derives a stable file identifier from its path.
func nodeID(path string) []byte {
	sum := blake3.Sum256([]byte(path))
	return sum[:]
}

// ExportSQLite writes the graph to a SQLite database at dbPath, replacing
// any previous contents.
func ExportSQLite(g *Graph, dbPath string) error {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := conn.Exec(exportSchema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM imports"); err != nil {
		return fmt.Errorf("clearing imports: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM files"); err != nil {
		return fmt.Errorf("clearing files: %w", err)
	}

	for _, node := range g.Nodes() {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO files (id, path) VALUES (?, ?)",
			nodeID(node), node,
		); err != nil {
			return fmt.Errorf("inserting file %s: %w", node, err)
		}
	}
	for _, e := range g.Edges() {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO imports (from_id, to_id) VALUES (?, ?)",
			nodeID(e.From), nodeID(e.To),
		); err != nil {
			return fmt.Errorf("inserting edge %s -> %s: %w", e.From, e.To, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing export: %w", err)
	}
	return nil
}

// jsonExport is the on-disk JSON shape.
type jsonExport struct {
	Nodes []jsonNode `json:"nodes"`
	Edges []Edge     `json:"edges"`
}

type jsonNode struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// ExportJSON writes the graph as JSON to outPath. A path ending in .zst
// is zstd-compressed.
func ExportJSON(g *Graph, outPath string) error {
	doc := jsonExport{Edges: g.Edges()}
	for _, node := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, jsonNode{
			ID:   hex.EncodeToString(nodeID(node)),
			Path: node,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling graph: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer f.Close()

	if strings.HasSuffix(outPath, ".zst") {
		encoder, err := zstd.NewWriter(f)
		if err != nil {
			return fmt.Errorf("creating encoder: %w", err)
		}
		if _, err := encoder.Write(data); err != nil {
			encoder.Close()
			return fmt.Errorf("compressing: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("flushing encoder: %w", err)
		}
		return f.Close()
	}

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	return f.Close()
}
