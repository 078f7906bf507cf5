package session

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarter-sh/smarter-sub001/core"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func setupMockStore(t *testing.T, driver string) (*SQLStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s, err := NewSQLStore(db, func(o *SQLOptions) {
		o.Driver = driver
		o.Now = func() time.Time { return fixedNow }
	})
	require.NoError(t, err)
	return s, mock
}

func TestNewSQLStore_Validation(t *testing.T) {
	_, err := NewSQLStore(nil)
	assert.ErrorIs(t, err, core.ErrConfiguration)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	_, err = NewSQLStore(db, func(o *SQLOptions) { o.Table = "history; DROP TABLE x" })
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestSQLStore_Bind(t *testing.T) {
	pg, _ := setupMockStore(t, "postgres")
	assert.Equal(t, "SELECT message FROM chat_history WHERE session_key = $1 ORDER BY seq", pg.selectThread)
	assert.Contains(t, pg.insertRow, "VALUES ($1, $2, $3, $4, $5)")

	lite, _ := setupMockStore(t, "sqlite")
	assert.Contains(t, lite.insertRow, "VALUES (?, ?, ?, ?, ?)")
}

func TestSQLStore_Migrate(t *testing.T) {
	s, mock := setupMockStore(t, "sqlite")
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS chat_history").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_LatestMessages(t *testing.T) {
	query := regexp.QuoteMeta("SELECT message FROM chat_history WHERE session_key = ? ORDER BY seq")

	tests := []struct {
		name      string
		setupMock func(sqlmock.Sqlmock)
		wantLen   int
		wantFound bool
		wantErr   bool
	}{
		{
			name: "decodes stored thread",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WithArgs("k1").WillReturnRows(sqlmock.NewRows([]string{"message"}).
					AddRow(`{"role":"system","content":"be brief"}`).
					AddRow(`{"role":"assistant","tool_calls":[{"id":"c1","function_name":"f","arguments":"{}"}]}`).
					AddRow(`{"role":"tool","content":"ok","tool_call_id":"c1"}`))
			},
			wantLen:   3,
			wantFound: true,
		},
		{
			name: "no history",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WithArgs("k1").WillReturnRows(sqlmock.NewRows([]string{"message"}))
			},
		},
		{
			name: "corrupt row",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WithArgs("k1").WillReturnRows(sqlmock.NewRows([]string{"message"}).AddRow("{"))
			},
			wantErr: true,
		},
		{
			name: "query error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WithArgs("k1").WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := setupMockStore(t, "sqlite")
			tt.setupMock(mock)

			got, found, err := s.LatestMessages(context.Background(), "k1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Len(t, got, tt.wantLen)
			if tt.wantFound {
				assert.NoError(t, core.CheckToolCallSequence(got))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLStore_Append(t *testing.T) {
	user := core.UserMessage("hi")
	user.IsNew = true
	reply := core.AssistantMessage("hello")

	t.Run("writes rows after the current max seq", func(t *testing.T) {
		s, mock := setupMockStore(t, "postgres")
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(seq), 0) FROM chat_history WHERE session_key = $1")).
			WithArgs("k1").WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(4))
		mock.ExpectExec("INSERT INTO chat_history").
			WithArgs("k1", int64(5), "user", `{"role":"user","content":"hi"}`, fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO chat_history").
			WithArgs("k1", int64(6), "assistant", `{"role":"assistant","content":"hello"}`, fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, s.Append(context.Background(), "k1", user, reply))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on conflict", func(t *testing.T) {
		s, mock := setupMockStore(t, "sqlite")
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT COALESCE").WithArgs("k1").WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
		mock.ExpectExec("INSERT INTO chat_history").WillReturnError(errors.New("UNIQUE constraint failed"))
		mock.ExpectRollback()

		err := s.Append(context.Background(), "k1", user)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to append message")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing to write", func(t *testing.T) {
		s, mock := setupMockStore(t, "sqlite")
		require.NoError(t, s.Append(context.Background(), "k1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("key required", func(t *testing.T) {
		s, _ := setupMockStore(t, "sqlite")
		assert.ErrorIs(t, s.Append(context.Background(), "", user), core.ErrInput)
	})
}
