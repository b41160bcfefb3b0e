package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"portal.koudaisai.jp/internal/forms"
	"portal.koudaisai.jp/internal/portal"
	"portal.koudaisai.jp/internal/token"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestFindUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	id := uuid.New()
	mock.ExpectQuery("select .* from users where id=").WithArgs(id).WillReturnError(sql.ErrNoRows)

	if _, err := store.FindUser(context.Background(), id); !errors.Is(err, portal.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindUserByEmailNullableHash(t *testing.T) {
	store, mock := newMockStore(t)

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "first_name", "last_name", "m_address",
		"password_hash", "password_salt", "exhibition_id",
	}).AddRow(id.String(), now, now, "Taro", "Yamada", "taro.yamada.2026@m.isct.ac.jp", nil, "salt", "booth-1")
	mock.ExpectQuery("select .* from users where m_address=").
		WithArgs("taro.yamada.2026@m.isct.ac.jp").
		WillReturnRows(rows)

	u, err := store.FindUserByEmail(context.Background(), "taro.yamada.2026@m.isct.ac.jp")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if u.PasswordHash != nil {
		t.Fatalf("null hash must scan as nil, got %q", *u.PasswordHash)
	}
	if u.Activated() {
		t.Fatal("user without a hash is not activated")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetUserPasswordMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	id := uuid.New()
	mock.ExpectExec("update users set password_hash=").
		WithArgs(id, "digest").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.SetUserPassword(context.Background(), id, "digest"); !errors.Is(err, portal.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterDuplicateExhibitor(t *testing.T) {
	store, mock := newMockStore(t)

	ex := &portal.Exhibitor{ID: "booth-1", Name: "Robots", Type: portal.CategoryBooth}
	reps := []*portal.User{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}

	mock.ExpectBegin()
	mock.ExpectQuery("insert into exhibitors_root").
		WithArgs(ex.ID, ex.Name, "booth", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	if err := store.Register(context.Background(), ex, reps); !errors.Is(err, portal.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterRejectsUnknownCategory(t *testing.T) {
	store, _ := newMockStore(t)

	ex := &portal.Exhibitor{ID: "x", Type: portal.Category("garage")}
	reps := []*portal.User{{}, {}, {}}
	if err := store.Register(context.Background(), ex, reps); err == nil {
		t.Fatal("unknown category must not reach SQL")
	}
}

func TestUpdateExhibitorNoFields(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select 1 from exhibitors_root where id=").
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)

	err := store.UpdateExhibitor(context.Background(), "gone", portal.ExhibitorUpdate{})
	if !errors.Is(err, portal.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFormRoundTrip(t *testing.T) {
	store, mock := newMockStore(t)

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at", "info", "items", "access_control_roles"}).
		AddRow(id.String(), now, now,
			[]byte(`{"title":"Booth survey","document_title":"","description":""}`),
			[]byte(`[]`),
			[]byte(`["booth"]`))
	mock.ExpectQuery("select .* from forms where id=").WithArgs(id).WillReturnRows(rows)

	f, err := store.FindForm(context.Background(), id)
	if err != nil {
		t.Fatalf("FindForm: %v", err)
	}
	if f.Info.Title != "Booth survey" {
		t.Fatalf("info lost: %+v", f.Info)
	}
	if !f.AccessControl.AllowsAny([]string{"booth"}) {
		t.Fatalf("roles lost: %+v", f.AccessControl)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteFormMissing(t *testing.T) {
	store, mock := newMockStore(t)

	id := uuid.New()
	mock.ExpectExec("delete from forms where id=").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.DeleteForm(context.Background(), id); !errors.Is(err, forms.ErrNotFound) {
		t.Fatalf("expected forms.ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRevocationInsertDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into revoked_refresh_tokens").
		WithArgs("raw-token", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.Insert(context.Background(), "raw-token", time.Now().Add(time.Hour))
	if !errors.Is(err, token.ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRevocationContains(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select 1 from revoked_refresh_tokens").
		WithArgs("revoked").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("select 1 from revoked_refresh_tokens").
		WithArgs("live").
		WillReturnError(sql.ErrNoRows)

	if ok, err := store.Contains(context.Background(), "revoked"); err != nil || !ok {
		t.Fatalf("revoked token: %v/%v", ok, err)
	}
	if ok, err := store.Contains(context.Background(), "live"); err != nil || ok {
		t.Fatalf("live token: %v/%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
