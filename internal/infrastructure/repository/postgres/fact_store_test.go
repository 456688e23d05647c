package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
)

func newStoreWithMock(t *testing.T, minMatchScore float64) (*FactStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	store := NewFactStore(db, nil, FactStoreConfig{MinMatchScore: minMatchScore}, nil)
	return store, mock, func() { _ = db.Close() }
}

func factColumns() []string {
	return []string{"doc_id", "page", "row_index", "section", "content", "match_score"}
}

func TestSearchStructuredMapsRowsToCandidates(t *testing.T) {
	store, mock, done := newStoreWithMock(t, 0)
	defer done()

	rows := sqlmock.NewRows(factColumns()).
		AddRow("doc-1", 3, 0, "income statement", "revenue 2023: 4.2B", 1.0).
		AddRow("doc-2", 7, 2, "balance sheet", "total assets 2023: 11B", 0.6)
	mock.ExpectQuery("SELECT doc_id").WithArgs("revenue", "2023").WillReturnRows(rows)

	compiled := domain.CompiledQuery{
		SQL:  "SELECT doc_id, page, row_index, section, content, match_score FROM facts WHERE metric = $1 AND period = $2",
		Args: []any{"revenue", "2023"},
	}
	got := store.SearchStructured(context.Background(), compiled, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	first := got[0]
	if first.DocumentID != "doc-1" || first.Page != 3 || first.ChunkIndex != 0 {
		t.Fatalf("unexpected identity mapping: %+v", first)
	}
	if first.Source != domain.SourceStructured {
		t.Fatalf("expected structured source tag, got %s", first.Source)
	}
	if first.RawScore != 1.0 || got[1].RawScore != 0.6 {
		t.Fatalf("unexpected raw scores: %f, %f", first.RawScore, got[1].RawScore)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchStructuredSkipsRowsBelowThreshold(t *testing.T) {
	store, mock, done := newStoreWithMock(t, 0.5)
	defer done()

	rows := sqlmock.NewRows(factColumns()).
		AddRow("doc-1", 1, 0, "", "strong match", 0.9).
		AddRow("doc-2", 1, 1, "", "weak match", 0.2)
	mock.ExpectQuery("SELECT doc_id").WillReturnRows(rows)

	got := store.SearchStructured(context.Background(), domain.CompiledQuery{SQL: "SELECT doc_id FROM facts"}, 10)
	if len(got) != 1 || got[0].DocumentID != "doc-1" {
		t.Fatalf("expected the weak row to be filtered, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchStructuredTruncatesToTopK(t *testing.T) {
	store, mock, done := newStoreWithMock(t, 0)
	defer done()

	rows := sqlmock.NewRows(factColumns()).
		AddRow("doc-1", 1, 0, "", "a", 1.0).
		AddRow("doc-2", 1, 1, "", "b", 0.9).
		AddRow("doc-3", 1, 2, "", "c", 0.8)
	mock.ExpectQuery("SELECT doc_id").WillReturnRows(rows)

	got := store.SearchStructured(context.Background(), domain.CompiledQuery{SQL: "SELECT doc_id FROM facts"}, 2)
	if len(got) != 2 {
		t.Fatalf("expected topK=2 candidates, got %d", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchStructuredAbsorbsQueryErrors(t *testing.T) {
	store, mock, done := newStoreWithMock(t, 0)
	defer done()

	mock.ExpectQuery("SELECT doc_id").WillReturnError(errors.New("connection refused"))

	got := store.SearchStructured(context.Background(), domain.CompiledQuery{SQL: "SELECT doc_id FROM facts"}, 10)
	if got != nil {
		t.Fatalf("expected nil result on query failure, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchStructuredEmptyCompiledQuery(t *testing.T) {
	store, _, done := newStoreWithMock(t, 0)
	defer done()

	if got := store.SearchStructured(context.Background(), domain.CompiledQuery{}, 10); got != nil {
		t.Fatalf("expected nil result for an empty compiled query, got %+v", got)
	}
}
