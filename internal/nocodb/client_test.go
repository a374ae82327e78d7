package nocodb_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"registrar/internal/failures"
	"registrar/internal/logging"
	"registrar/internal/nocodb"
	"registrar/internal/testsupport"
)

const table = "student_details"

func studentKey(regNo, year string) nocodb.Key {
	return nocodb.Key{{Column: "REGN_NO", Value: regNo}, {Column: "YEAR_FLAG", Value: year}}
}

func newClient(t *testing.T, fake *testsupport.NocoDB) *nocodb.Client {
	t.Helper()
	return nocodb.New(fake.URL(), fake.Token, time.Second, logging.NewNop(), nocodb.WithHTTPClient(fake.Server.Client()))
}

func TestLookupCreateUpdate(t *testing.T) {
	fake := testsupport.NewNocoDB(t, "secret")
	client := newClient(t, fake)
	ctx := context.Background()

	if _, found, err := client.Lookup(ctx, table, studentKey("AU21UG-006", "1")); err != nil || found {
		t.Fatalf("expected empty lookup, got found=%v err=%v", found, err)
	}
	created, err := client.Create(ctx, table, nocodb.Fields{"REGN_NO": "AU21UG-006", "YEAR_FLAG": 1, "CGPA": "8.57"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" || created.Version == "" {
		t.Fatalf("created record missing id or version: %+v", created)
	}

	found, ok, err := client.Lookup(ctx, table, studentKey("AU21UG-006", "1"))
	if err != nil || !ok {
		t.Fatalf("Lookup: found=%v err=%v", ok, err)
	}
	if found.ID != created.ID || found.Version != created.Version {
		t.Fatalf("lookup returned %+v, want %+v", found, created)
	}

	updated, err := client.Update(ctx, table, found, nocodb.Fields{"CGPA": "8.60"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version == found.Version {
		t.Fatal("expected version to change on update")
	}
	rows := fake.Rows(table)
	if len(rows) != 1 || rows[0]["CGPA"] != "8.60" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestUpdateDetectsConcurrentWriter(t *testing.T) {
	fake := testsupport.NewNocoDB(t, "secret")
	client := newClient(t, fake)
	ctx := context.Background()

	rec, err := client.Create(ctx, table, nocodb.Fields{"REGN_NO": "R1", "YEAR_FLAG": 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fake.Touch(table, 1)

	_, err = client.Update(ctx, table, rec, nocodb.Fields{"CGPA": "9.00"})
	if !errors.Is(err, nocodb.ErrConcurrentModification) {
		t.Fatalf("expected concurrent modification, got %v", err)
	}
	if nocodb.IsTransient(err) {
		t.Fatal("conflicts must not be retried")
	}
	if _, ok := fake.Rows(table)[0]["CGPA"]; ok {
		t.Fatal("row was overwritten despite the conflict")
	}
}

func TestErrorClassification(t *testing.T) {
	fake := testsupport.NewNocoDB(t, "secret")
	client := newClient(t, fake)
	ctx := context.Background()

	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"server error", http.StatusBadGateway, true},
		{"rate limited", http.StatusTooManyRequests, true},
		{"bad request", http.StatusBadRequest, false},
		{"forbidden", http.StatusForbidden, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake.FailNext(tt.status)
			_, _, err := client.Lookup(ctx, table, studentKey("R1", "1"))
			var storeErr *nocodb.StoreError
			if !errors.As(err, &storeErr) {
				t.Fatalf("expected StoreError, got %v", err)
			}
			if storeErr.Status != tt.status || nocodb.IsTransient(err) != tt.transient {
				t.Fatalf("status %d transient %v, want %d %v", storeErr.Status, nocodb.IsTransient(err), tt.status, tt.transient)
			}
			if failures.KindOf(err) != failures.KindStore {
				t.Fatalf("unexpected kind %q", failures.KindOf(err))
			}
		})
	}
}

func TestMalformedKeyFailsBeforeRequest(t *testing.T) {
	fake := testsupport.NewNocoDB(t, "secret")
	client := newClient(t, fake)

	for _, key := range []nocodb.Key{
		nil,
		studentKey("", "1"),
		studentKey("R1),(x", "1"),
	} {
		_, _, err := client.Lookup(context.Background(), table, key)
		if err == nil || nocodb.IsTransient(err) {
			t.Fatalf("expected permanent error for %v, got %v", key, err)
		}
	}
	if fake.Requests() != 0 {
		t.Fatalf("malformed keys must not reach the server, got %d requests", fake.Requests())
	}
}

func TestUnreachableServerIsTransient(t *testing.T) {
	fake := testsupport.NewNocoDB(t, "secret")
	url := fake.URL()
	fake.Server.Close()

	client := nocodb.New(url, "secret", time.Second, logging.NewNop())
	err := client.Ping(context.Background(), table)
	if !nocodb.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if failures.KindOf(err) != failures.KindConnectivity {
		t.Fatalf("unexpected kind %q", failures.KindOf(err))
	}
}

func TestWrongTokenIsPermanent(t *testing.T) {
	fake := testsupport.NewNocoDB(t, "secret")
	client := nocodb.New(fake.URL(), "wrong", time.Second, logging.NewNop())
	err := client.Ping(context.Background(), table)
	var storeErr *nocodb.StoreError
	if !errors.As(err, &storeErr) || storeErr.Status != http.StatusUnauthorized || storeErr.Transient {
		t.Fatalf("expected permanent 401, got %v", err)
	}
}
