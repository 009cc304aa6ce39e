package lut

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Catalog is the ordered set of color tables available for cycling.
// Insertion order is significant: built-ins first, then synthesized
// gradients, then external tables in discovery order.
//
// The catalog is built once on the render thread before the loop starts
// and is read-only afterwards; it needs no locking.
type Catalog struct {
	tables []Table
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// RegisterBuiltin appends a builtin colormap entry. The id is passed through
// to the external color-mapping primitive unvalidated.
func (c *Catalog) RegisterBuiltin(name string, id int) {
	c.tables = append(c.tables, Table{Name: name, Kind: KindBuiltin, ID: id})
}

// AddGradient synthesizes a channel gradient table and appends it.
func (c *Catalog) AddGradient(name string, ch Channel, step int) error {
	data, err := BuildGradient(ch, step)
	if err != nil {
		return fmt.Errorf("gradient %s: %w", name, err)
	}
	return c.add(Table{Name: name, Kind: KindCustom, Data: data})
}

// add validates and appends a custom table.
func (c *Catalog) add(t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	c.tables = append(c.tables, t)
	return nil
}

// LoadDir scans dir for *.lut files and appends every table that parses and
// normalizes cleanly. Failures are isolated per file: they are logged and
// skipped, and never abort the catalog build. Returns the number of tables
// loaded.
func (c *Catalog) LoadDir(dir string) int {
	ents, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("cannot scan lut directory", "dir", dir, "error", err)
		return 0
	}

	loaded := 0
	for _, ent := range ents {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".lut") {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		name := strings.ToUpper(strings.TrimSuffix(ent.Name(), ".lut"))

		data, err := loadFile(path)
		if err != nil {
			slog.Warn("skipping lut file", "file", ent.Name(), "error", err)
			continue
		}
		if err := c.add(Table{Name: name, Kind: KindCustom, Data: data}); err != nil {
			slog.Warn("skipping lut file", "file", ent.Name(), "error", err)
			continue
		}
		slog.Info("loaded custom lut", "name", name, "entries", EntryCount)
		loaded++
	}

	slog.Info("lut scan finished", "dir", dir, "loaded", loaded)
	return loaded
}

func loadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := ParseTable(f)
	if err != nil {
		return nil, err
	}
	return Normalize(entries)
}

// Len returns the number of tables in the catalog.
func (c *Catalog) Len() int {
	return len(c.tables)
}

// At returns the table at index i modulo the catalog size.
func (c *Catalog) At(i int) Table {
	return c.tables[i%len(c.tables)]
}
