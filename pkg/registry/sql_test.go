package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/stormsure/marketplace/pkg/model"
)

func TestSQLStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer func() { _ = db.Close() }()

	store := NewSQLStore(db)
	ctx := context.Background()

	body, _ := json.Marshal(model.PlatformUser{ID: "BROKER", Role: model.RoleBroker})
	mock.ExpectQuery("SELECT body FROM records").
		WithArgs("PlatformUser", "BROKER").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(body))

	raw, err := store.Get(ctx, model.KindPlatformUser, "BROKER")
	if err != nil {
		t.Fatal(err)
	}
	var u model.PlatformUser
	if err := json.Unmarshal(raw, &u); err != nil {
		t.Fatal(err)
	}
	if u.Role != model.RoleBroker {
		t.Fatalf("unexpected record: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %s", err)
	}
}

func TestSQLStoreGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT body FROM records").
		WithArgs("Policy", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	_, err = NewSQLStore(db).Get(context.Background(), model.KindPolicy, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLStoreApplyCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	store := NewSQLStore(db).WithClock(func() time.Time { return now })

	payment := model.Payment{ID: "P1", Amount: 40, Approved: true}
	data, _ := json.Marshal(payment)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(1\\) FROM records").
		WithArgs("Payment", "P1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO records").
		WithArgs("Payment", "P1", data, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var set WriteSet
	if err := set.Add(payment); err != nil {
		t.Fatal(err)
	}
	if err := store.Apply(context.Background(), &set); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %s", err)
	}
}

func TestSQLStoreApplyRollsBackOnConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(1\\) FROM records").
		WithArgs("Payment", "P1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	var set WriteSet
	if err := set.Add(model.Payment{ID: "P1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Apply(context.Background(), &set); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %s", err)
	}
}

func TestSQLStoreApplyUpdateMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE records SET body").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	var set WriteSet
	if err := set.Update(model.Policy{ID: "POLICY_GHOST"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Apply(context.Background(), &set); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %s", err)
	}
}
