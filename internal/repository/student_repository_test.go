package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-pickup-api/internal/models"
)

var studentColumns = []string{"id", "full_name", "year", "class_label", "guardian_name", "active", "created_at", "updated_at"}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(studentColumns).
		AddRow("student-1", "Siti Rahma", 1, "Blue", "Ibu Rahma", true, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(1, "Blue", true).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(1, "Blue", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	year := 1
	active := true
	students, total, err := repo.List(context.Background(), models.StudentFilter{
		Year:       &year,
		ClassLabel: "Blue",
		Active:     &active,
	})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Siti Rahma", students[0].FullName)
}

func TestStudentRepositoryListRejectsUnknownSort(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows(studentColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.StudentFilter{SortBy: "active; DROP TABLE students"})
	require.NoError(t, err)
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WithArgs(sqlmock.AnyArg(), "Siti Rahma", 1, "Blue", "Ibu Rahma", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{FullName: "Siti Rahma", Year: 1, ClassLabel: "Blue", GuardianName: "Ibu Rahma", Active: true}
	err := repo.Create(context.Background(), student)
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
}

func TestStudentRepositoryBatchCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	students := []*models.Student{
		{FullName: "Siti Rahma", Year: 1, ClassLabel: "Blue", Active: true},
		{FullName: "Budi Santoso", Year: 1, ClassLabel: "Red", Active: true},
	}
	err := repo.BatchCreate(context.Background(), students)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryBatchCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	students := []*models.Student{
		{FullName: "Siti Rahma", Year: 1, ClassLabel: "Blue", Active: true},
		{FullName: "Budi Santoso", Year: 1, ClassLabel: "Red", Active: true},
	}
	err := repo.BatchCreate(context.Background(), students)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET")).
		WithArgs("Siti Rahma", 2, "Green", "Ibu Rahma", true, sqlmock.AnyArg(), "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	student := &models.Student{ID: "student-1", FullName: "Siti Rahma", Year: 2, ClassLabel: "Green", GuardianName: "Ibu Rahma", Active: true}
	err := repo.Update(context.Background(), student)
	require.NoError(t, err)
	assert.False(t, student.UpdatedAt.IsZero())
}

func TestStudentRepositoryDeactivate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET active = false")).
		WithArgs("student-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Deactivate(context.Background(), "student-1")
	require.NoError(t, err)
}
