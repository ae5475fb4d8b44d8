// Package export writes graph snapshots to disk as JSON or Cypher
// files, for downloads and for the pre-clear backup.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nicozefrench/diveteacher/internal/graphstore"
)

// Formats accepted by Write.
const (
	FormatJSON   = "json"
	FormatCypher = "cypher"
)

// Dumper produces a bounded graph snapshot. Satisfied by the graph
// store.
type Dumper interface {
	DumpGraph(ctx context.Context) (*graphstore.Dump, error)
}

// Info describes one written export file.
type Info struct {
	Filename      string `json:"filename"`
	Format        string `json:"format"`
	DownloadPath  string `json:"download_path"`
	Episodes      int    `json:"episodes"`
	Entities      int    `json:"entities"`
	Relationships int    `json:"relationships"`
	Truncated     bool   `json:"truncated,omitempty"`
}

// Exporter writes graph dumps into a directory.
type Exporter struct {
	dir    string
	dumper Dumper
	logger *slog.Logger
}

// New creates an Exporter writing into dir.
func New(dir string, dumper Dumper, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{dir: dir, dumper: dumper, logger: logger}
}

// Write dumps the graph and writes it in the given format. The file
// gets a uuid name so exports never collide.
func (e *Exporter) Write(ctx context.Context, format string) (*Info, error) {
	if format != FormatJSON && format != FormatCypher {
		return nil, fmt.Errorf("unknown export format %q", format)
	}

	dump, err := e.dumper.DumpGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to dump graph; %w", err)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory; %w", err)
	}

	ext := "json"
	if format == FormatCypher {
		ext = "cypher"
	}
	filename := fmt.Sprintf("export_%s.%s", uuid.NewString(), ext)
	path := filepath.Join(e.dir, filename)

	var data []byte
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(dump, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode export; %w", err)
		}
	case FormatCypher:
		data = []byte(cypherScript(dump))
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write export file; %w", err)
	}

	e.logger.Info("graph exported",
		"file", filename,
		"format", format,
		"episodes", len(dump.Episodes),
		"entities", len(dump.Entities),
		"relationships", len(dump.Relations))

	return &Info{
		Filename:      filename,
		Format:        format,
		DownloadPath:  "/api/graphdb/export/" + filename,
		Episodes:      len(dump.Episodes),
		Entities:      len(dump.Entities),
		Relationships: len(dump.Relations),
		Truncated:     dump.Truncated,
	}, nil
}

// Backup writes a JSON snapshot named for the occasion, used before
// destructive operations.
func (e *Exporter) Backup(ctx context.Context) (*Info, error) {
	info, err := e.Write(ctx, FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to write backup; %w", err)
	}
	return info, nil
}

// Open returns the export file for download. The name is restricted to
// files this package wrote, so path traversal cannot escape the
// export directory.
func (e *Exporter) Open(name string) (*os.File, error) {
	if !validExportName(name) {
		return nil, fmt.Errorf("invalid export filename %q", name)
	}
	return os.Open(filepath.Join(e.dir, name))
}

// validExportName accepts only names of the shape this package
// generates.
func validExportName(name string) bool {
	if name != filepath.Base(name) {
		return false
	}
	if !strings.HasPrefix(name, "export_") {
		return false
	}
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".cypher")
}

// cypherScript renders a dump as CREATE statements that rebuild the
// graph when replayed in order: entities, episodes, then edges.
func cypherScript(dump *graphstore.Dump) string {
	var b strings.Builder

	b.WriteString("// Knowledge graph export " + time.Now().UTC().Format(time.RFC3339) + "\n\n")

	for _, e := range dump.Entities {
		fmt.Fprintf(&b, "CREATE (:Entity {name: '%s', normalized_name: '%s', type: '%s'});\n",
			esc(e.Name), esc(e.NormalizedName), esc(e.Type))
	}

	for _, ep := range dump.Episodes {
		fmt.Fprintf(&b, "CREATE (:Episode {uuid: '%s', filename: '%s', upload_id: '%s', chunk_index: %d, valid_at: %d, content: '%s'});\n",
			esc(ep.UUID), esc(ep.Filename), esc(ep.UploadID), ep.ChunkIndex, ep.ValidAt.Unix(), esc(ep.Content))
	}

	for _, r := range dump.Relations {
		fmt.Fprintf(&b, "MATCH (a:Entity {normalized_name: '%s'}), (b:Entity {normalized_name: '%s'}) CREATE (a)-[:RELATES_TO {uuid: '%s', fact: '%s', upload_id: '%s', filename: '%s', valid_at: %d}]->(b);\n",
			esc(r.Source), esc(r.Target), esc(r.UUID), esc(r.Fact), esc(r.UploadID), esc(r.Filename), r.ValidAt.Unix())
	}

	for _, m := range dump.Mentions {
		fmt.Fprintf(&b, "MATCH (ep:Episode {uuid: '%s'}), (e:Entity {normalized_name: '%s'}) CREATE (ep)-[:MENTIONS]->(e);\n",
			esc(m.EpisodeUUID), esc(m.Entity))
	}

	return b.String()
}

// esc escapes quotes, backslashes, and newlines for Cypher string
// literals in the export script.
func esc(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
