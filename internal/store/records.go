package store

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/export"
	"github.com/wakala/divrecon/internal/logging"
)

// RecordStore holds the two views of the latest pairing run.
type RecordStore struct {
	MatrixPath string
	NestedPath string
	Labels     export.Labels

	mu sync.RWMutex
}

// NewRecordStore creates a store writing the matrix CSV and nested JSON to the
// given paths.
func NewRecordStore(matrixPath, nestedPath string, labels export.Labels) *RecordStore {
	return &RecordStore{MatrixPath: matrixPath, NestedPath: nestedPath, Labels: labels}
}

// Save overwrites both artifacts.
func (s *RecordStore) Save(v export.Views) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(v)
}

// Update runs fn on the current matrix and saves the views it returns, all
// under the store's write lock so concurrent updates are applied in turn.
// When fn returns an error nothing is written.
func (s *RecordStore) Update(fn func(export.Matrix) (export.Views, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readMatrix()
	if err != nil {
		return err
	}
	v, err := fn(m)
	if err != nil {
		return err
	}
	return s.write(v)
}

// write renders both views and replaces the matrix, then the nested file.
// The nested file is the commit point: readers derive the matrix from it,
// and a failed nested write restores the prior matrix.
func (s *RecordStore) write(v export.Views) error {
	matrix, err := v.Matrix.CSV()
	if err != nil {
		return fmt.Errorf("render matrix: %w", err)
	}
	nested, err := v.Nested.JSON()
	if err != nil {
		return fmt.Errorf("render nested: %w", err)
	}

	prior, priorErr := os.ReadFile(s.MatrixPath)
	if err := WriteFileAtomic(s.MatrixPath, matrix, 0o644); err != nil {
		return err
	}
	if err := WriteFileAtomic(s.NestedPath, nested, 0o644); err != nil {
		if priorErr == nil {
			_ = WriteFileAtomic(s.MatrixPath, prior, 0o644)
		} else if errors.Is(priorErr, os.ErrNotExist) {
			_ = os.Remove(s.MatrixPath)
		}
		return err
	}

	log := logging.Component("store")
	log.Info().
		Int("pairs", len(v.Nested.Pairs)).
		Str("matrix", s.MatrixPath).
		Str("nested", s.NestedPath).
		Msg("Saved record store")
	return nil
}

// Nested loads the nested view.
func (s *RecordStore) Nested() (export.Nested, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readNested()
}

// Matrix returns the matrix view, derived from the committed nested file so
// it always agrees with Nested.
func (s *RecordStore) Matrix() (export.Matrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMatrix()
}

func (s *RecordStore) readNested() (export.Nested, error) {
	data, err := os.ReadFile(s.NestedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return export.Nested{}, &domain.NotFoundError{Resource: "record store", ID: s.NestedPath}
		}
		return export.Nested{}, fmt.Errorf("read nested: %w", err)
	}
	return export.DecodeNested(data, s.Labels)
}

func (s *RecordStore) readMatrix() (export.Matrix, error) {
	n, err := s.readNested()
	if err != nil {
		return export.Matrix{}, err
	}
	m, err := export.NestedToMatrix(n, s.Labels)
	if err != nil {
		return export.Matrix{}, fmt.Errorf("derive matrix: %w", err)
	}
	return m, nil
}

// Pair returns one pair of the nested view by display id ("#001" or "No.001").
func (s *RecordStore) Pair(id string) (export.NestedPair, error) {
	ord, err := domain.ParseDisplayID(id)
	if err != nil {
		return export.NestedPair{}, &domain.NotFoundError{Resource: "pair", ID: id}
	}
	n, err := s.Nested()
	if err != nil {
		return export.NestedPair{}, err
	}
	for _, p := range n.Pairs {
		if o, err := domain.ParseDisplayID(p.ID); err == nil && o == ord {
			return p, nil
		}
	}
	return export.NestedPair{}, &domain.NotFoundError{Resource: "pair", ID: id}
}

// IDs lists the display ids of the stored pairs.
func (s *RecordStore) IDs() ([]string, error) {
	n, err := s.Nested()
	if err != nil {
		return nil, err
	}
	return n.IDs(), nil
}
