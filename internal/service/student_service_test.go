package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-pickup-api/internal/models"
	appErrors "github.com/noah-isme/sma-pickup-api/pkg/errors"
)

type studentRepoStub struct {
	students  map[string]*models.Student
	listItems []models.Student
	listTotal int

	createErr error
	batchErr  error

	created     []models.Student
	batches     [][]*models.Student
	deactivated []string
	updated     []models.Student
}

func (s *studentRepoStub) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return s.listItems, s.listTotal, nil
}

func (s *studentRepoStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := s.students[id]; ok {
		copied := *student
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentRepoStub) Create(ctx context.Context, student *models.Student) error {
	if s.createErr != nil {
		return s.createErr
	}
	student.ID = "student-1"
	s.created = append(s.created, *student)
	return nil
}

func (s *studentRepoStub) BatchCreate(ctx context.Context, students []*models.Student) error {
	if s.batchErr != nil {
		return s.batchErr
	}
	s.batches = append(s.batches, students)
	return nil
}

func (s *studentRepoStub) Update(ctx context.Context, student *models.Student) error {
	s.updated = append(s.updated, *student)
	return nil
}

func (s *studentRepoStub) Deactivate(ctx context.Context, id string) error {
	s.deactivated = append(s.deactivated, id)
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &studentRepoStub{}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Siti Rahma", Year: 1, ClassLabel: "Blue"})
	require.NoError(t, err)

	assert.Equal(t, "student-1", student.ID)
	assert.True(t, student.Active)
	require.Len(t, repo.created, 1)
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := NewStudentService(&studentRepoStub{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Siti Rahma"})
	assertAppErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestStudentServiceBatchCreate(t *testing.T) {
	repo := &studentRepoStub{}
	svc := NewStudentService(repo, nil, nil)

	students, err := svc.BatchCreate(context.Background(), BatchCreateStudentsRequest{Students: []CreateStudentRequest{
		{FullName: "Siti Rahma", Year: 1, ClassLabel: "Blue"},
		{FullName: "Budi Santoso", Year: 1, ClassLabel: "Red"},
	}})
	require.NoError(t, err)

	require.Len(t, students, 2)
	require.Len(t, repo.batches, 1)
	assert.Len(t, repo.batches[0], 2)
	assert.True(t, students[0].Active)
}

func TestStudentServiceBatchCreateEmpty(t *testing.T) {
	svc := NewStudentService(&studentRepoStub{}, nil, nil)

	_, err := svc.BatchCreate(context.Background(), BatchCreateStudentsRequest{})
	assertAppErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestStudentServiceBatchCreateInvalidEntry(t *testing.T) {
	repo := &studentRepoStub{}
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.BatchCreate(context.Background(), BatchCreateStudentsRequest{Students: []CreateStudentRequest{
		{FullName: "Siti Rahma", Year: 1, ClassLabel: "Blue"},
		{FullName: ""},
	}})
	assertAppErrorCode(t, err, appErrors.ErrValidation.Code)
	assert.Empty(t, repo.batches)
}

func TestStudentServiceGetNotFound(t *testing.T) {
	svc := NewStudentService(&studentRepoStub{}, nil, nil)

	_, err := svc.Get(context.Background(), "ghost")
	assertAppErrorCode(t, err, appErrors.ErrNotFound.Code)
}

func TestStudentServiceUpdate(t *testing.T) {
	repo := &studentRepoStub{students: map[string]*models.Student{
		"student-1": {ID: "student-1", FullName: "Siti", Year: 1, ClassLabel: "Blue", Active: true},
	}}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Update(context.Background(), "student-1", UpdateStudentRequest{
		FullName: "Siti Rahma", Year: 2, ClassLabel: "Green", Active: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Siti Rahma", student.FullName)
	assert.Equal(t, 2, student.Year)
	require.Len(t, repo.updated, 1)
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := &studentRepoStub{students: map[string]*models.Student{
		"student-1": {ID: "student-1", Active: true},
	}}
	svc := NewStudentService(repo, nil, nil)

	err := svc.Deactivate(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"student-1"}, repo.deactivated)
}

func TestStudentServiceDeactivateNotFound(t *testing.T) {
	svc := NewStudentService(&studentRepoStub{}, nil, nil)

	err := svc.Deactivate(context.Background(), "ghost")
	assertAppErrorCode(t, err, appErrors.ErrNotFound.Code)
}
