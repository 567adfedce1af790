package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDiagnoseNilError(t *testing.T) {
	d := Diagnose(nil)
	if d.Message != "" || d.Chain != nil || d.PG != nil {
		t.Fatalf("expected empty diagnosis, got %+v", d)
	}
}

func TestDiagnoseExtractsCodeAndChain(t *testing.T) {
	err := Wrap(CodeStateConflict, fmt.Errorf("inner"), "outer")
	d := Diagnose(err)
	if d.Code != CodeStateConflict {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected the full chain, got %v", d.Chain)
	}
	if d.PG != nil {
		t.Fatalf("no database layer expected, got %+v", d.PG)
	}
	if _, ok := d.LogFields()["pg_code"]; ok {
		t.Fatal("pg fields must be absent without a database error")
	}
}

func TestDiagnoseExtractsPgxError(t *testing.T) {
	cause := &pgconn.PgError{Code: "23505", ConstraintName: "ux_shipments_order", TableName: "shipments"}
	d := Diagnose(Wrap(CodeConflict, cause, "insert shipment"))
	if d.PG == nil || d.PG.Code != "23505" || d.PG.Constraint != "ux_shipments_order" {
		t.Fatalf("unexpected pg detail %+v", d.PG)
	}
	fields := d.LogFields()
	if fields["pg_table"] != "shipments" {
		t.Fatalf("unexpected log fields %+v", fields)
	}
}

func TestDiagnoseExtractsPqError(t *testing.T) {
	cause := &pq.Error{Code: "42P01", Table: "outbox_events"}
	d := Diagnose(fmt.Errorf("migrate: %w", cause))
	if d.PG == nil || d.PG.Code != "42P01" || d.PG.Table != "outbox_events" {
		t.Fatalf("unexpected pg detail %+v", d.PG)
	}
}
