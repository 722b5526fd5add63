package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinmu/kinmu/internal/database"
	apperrors "github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/model"
)

var nov = model.MonthRef{Year: 2026, Month: time.November}

func newPreferenceRepoMock(t *testing.T) (*PreferenceRepository, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return NewPreferenceRepository(database.Wrap(sqlx.NewDb(raw, "sqlmock"))), mock
}

func TestPreferenceRepositoryUpsert(t *testing.T) {
	repo, mock := newPreferenceRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO preference_marks")).
		WithArgs(nov.Date(3), "A", MarkListed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO preference_marks")).
		WithArgs(nov.Date(10), "A", MarkListed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Upsert(context.Background(), "A", nov, []model.Day{10, 3, 3}, false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepositoryUpsertInverted(t *testing.T) {
	repo, mock := newPreferenceRepoMock(t)

	mock.ExpectBegin()
	for d := 1; d <= 30; d++ {
		mark := MarkListed
		if d == 2 {
			mark = MarkUnlisted
		}
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO preference_marks")).
			WithArgs(nov.Date(d), "B", mark).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.Upsert(context.Background(), "B", nov, []model.Day{2}, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepositoryUpsertRollsBack(t *testing.T) {
	repo, mock := newPreferenceRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO preference_marks")).WillReturnError(errors.New("连接中断"))
	mock.ExpectRollback()

	err := repo.Upsert(context.Background(), "A", nov, []model.Day{1}, false)
	assert.True(t, apperrors.Is(err, apperrors.CodeDatabaseError))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepositoryUpsertValidates(t *testing.T) {
	repo, mock := newPreferenceRepoMock(t)

	err := repo.Upsert(context.Background(), "A", nov, []model.Day{31}, false)
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput), "11 月没有 31 日")

	err = repo.Upsert(context.Background(), "", nov, []model.Day{1}, false)
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepositoryListMonth(t *testing.T) {
	repo, mock := newPreferenceRepoMock(t)

	rows := sqlmock.NewRows([]string{"day", "employee", "mark"}).
		AddRow(nov.Date(3), "A", 1).
		AddRow(nov.Date(3), "B", 0).
		AddRow(nov.Date(10), "A", 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT day, employee, mark FROM preference_marks")).
		WithArgs(nov.Date(1), time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(rows)

	marks, err := repo.ListMonth(context.Background(), nov)
	require.NoError(t, err)
	require.Len(t, marks, 3)
	assert.Equal(t, model.Employee("B"), marks[1].Employee)
	assert.Equal(t, MarkUnlisted, marks[1].Mark)

	entries := Entries(marks)
	require.Len(t, entries, 1, "只有标记为 1 的员工生成条目")
	assert.Equal(t, model.PreferenceEntry{Employee: "A", Dates: []model.Day{3, 10}}, entries[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepositoryDeleteEmployee(t *testing.T) {
	repo, mock := newPreferenceRepoMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM preference_marks WHERE employee = $1")).
		WithArgs("A").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteEmployee(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepositoryPurgeOutside(t *testing.T) {
	repo, mock := newPreferenceRepoMock(t)
	now := time.Date(2026, time.September, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM preference_marks WHERE day < $1 OR day > $2")).
		WithArgs(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), time.Date(2027, time.March, 31, 0, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.PurgeOutside(context.Background(), now, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	_, err = repo.PurgeOutside(context.Background(), now, 0)
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetentionWindowYearRollover(t *testing.T) {
	from, to := RetentionWindow(time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC), 6)
	assert.Equal(t, "2025-08-01", from.Format("2006-01-02"))
	assert.Equal(t, "2026-07-31", to.Format("2006-01-02"))
}
