// Package storage provides table sources for joins: a badger-backed table
// store, parquet and CSV loaders, and a synthetic test-data builder.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-join/relation"
)

// ErrTableNotFound is returned for names that have no stored table.
var ErrTableNotFound = errors.New("table not found")

// Key layout:
//
//	t/<name>                    catalog entry: row count and column names
//	r/<name>\x00<offset:uint64> one encoded row, big-endian offset
const (
	catalogPrefix = "t/"
	rowPrefix     = "r/"
)

// TableStore persists tables in BadgerDB. Stored tables are scanned straight
// from the database, so they can be joined without loading them in memory.
type TableStore struct {
	db *badger.DB
}

// NewTableStore opens or creates a store at path. An empty path opens an
// in-memory store.
func NewTableStore(path string) (*TableStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable BadgerDB logs

	// Tables are written once and scanned sequentially
	opts.DetectConflicts = false
	opts.ValueThreshold = 1 << 10 // 1KB - keep typical rows in the LSM tree

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &TableStore{db: db}, nil
}

// Close closes the store. Iterators of its tables must be closed first.
func (s *TableStore) Close() error {
	return s.db.Close()
}

func catalogKey(name string) []byte {
	return []byte(catalogPrefix + name)
}

func rowsPrefix(name string) []byte {
	return []byte(rowPrefix + name + "\x00")
}

func rowKey(name string, offset uint64) []byte {
	return binary.BigEndian.AppendUint64(rowsPrefix(name), offset)
}

func validName(name string) error {
	if name == "" || strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// PutTable stores all rows of t under name, replacing a previous table of
// that name.
func (s *TableStore) PutTable(name string, t relation.Table) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := s.DropTable(name); err != nil && !errors.Is(err, ErrTableNotFound) {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	it := t.Iterator()
	defer it.Close()

	var count uint64
	var buf []byte
	for it.Next() {
		var err error
		buf, err = relation.AppendRow(buf[:0], it.Row())
		if err != nil {
			return fmt.Errorf("failed to encode row %d of %s: %w", count, name, err)
		}
		// the batch keeps the value until it is flushed
		value := append([]byte(nil), buf...)
		if err := wb.Set(rowKey(name, count), value); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", count, name, err)
		}
		count++
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("failed to read table %s: %w", name, err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to write table %s: %w", name, err)
	}

	// the catalog entry makes the table visible
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(catalogKey(name), encodeCatalog(count, t.Columns()))
	})
}

// Table returns the stored table called name.
func (s *TableStore) Table(name string) (*StoredTable, error) {
	var table *StoredTable
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(catalogKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			size, columns, err := decodeCatalog(val)
			if err != nil {
				return fmt.Errorf("corrupt catalog entry for %s: %w", name, err)
			}
			table = &StoredTable{store: s, name: name, columns: columns, size: size}
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return table, nil
}

// Tables lists the stored table names in lexical order.
func (s *TableStore) Tables() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // KEY ONLY
		opts.Prefix = []byte(catalogPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), catalogPrefix))
		}
		return nil
	})
	return names, err
}

// DropTable removes a stored table.
func (s *TableStore) DropTable(name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(catalogKey(name)); err != nil {
			return err
		}
		return txn.Delete(catalogKey(name))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to drop %s: %w", name, err)
	}
	if err := s.db.DropPrefix(rowsPrefix(name)); err != nil {
		return fmt.Errorf("failed to drop rows of %s: %w", name, err)
	}
	return nil
}

func encodeCatalog(size uint64, columns []string) []byte {
	buf := binary.AppendUvarint(nil, size)
	buf = binary.AppendUvarint(buf, uint64(len(columns)))
	for _, c := range columns {
		buf = binary.AppendUvarint(buf, uint64(len(c)))
		buf = append(buf, c...)
	}
	return buf
}

func decodeCatalog(data []byte) (int64, []string, error) {
	size, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, fmt.Errorf("truncated row count")
	}
	data = data[n:]
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, fmt.Errorf("truncated column count")
	}
	data = data[n:]

	columns := make([]string, count)
	for i := range columns {
		l, n := binary.Uvarint(data)
		if n <= 0 || uint64(len(data)-n) < l {
			return 0, nil, fmt.Errorf("truncated column %d", i)
		}
		columns[i] = string(data[n : n+int(l)])
		data = data[n+int(l):]
	}
	return int64(size), columns, nil
}

// StoredTable is a relation.Table scanned from a TableStore.
type StoredTable struct {
	store   *TableStore
	name    string
	columns []string
	size    int64
}

var _ relation.Table = (*StoredTable)(nil)

// Name returns the name the table is stored under.
func (t *StoredTable) Name() string { return t.name }

func (t *StoredTable) Columns() []string { return t.columns }

func (t *StoredTable) Size() int64 { return t.size }

// Iterator scans the rows in insertion order within a read transaction.
func (t *StoredTable) Iterator() relation.RowIterator {
	txn := t.store.db.NewTransaction(false)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 1000
	opts.Prefix = rowsPrefix(t.name)

	return &storedIterator{
		txn:    txn,
		it:     txn.NewIterator(opts),
		prefix: opts.Prefix,
	}
}

type storedIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	started bool
	row     relation.Row
	err     error
}

func (i *storedIterator) Next() bool {
	if i.err != nil {
		return false
	}
	if !i.started {
		// First call - seek to the table
		i.it.Seek(i.prefix)
		i.started = true
	} else {
		i.it.Next()
	}
	if !i.it.ValidForPrefix(i.prefix) {
		return false
	}

	item := i.it.Item()
	i.err = item.Value(func(val []byte) error {
		row, err := relation.DecodeRow(val)
		if err != nil {
			return fmt.Errorf("corrupt row %x: %w", item.Key(), err)
		}
		i.row = row
		return nil
	})
	return i.err == nil
}

func (i *storedIterator) Row() relation.Row { return i.row }

func (i *storedIterator) Err() error { return i.err }

func (i *storedIterator) Close() error {
	i.it.Close()
	i.txn.Discard()
	return nil
}
