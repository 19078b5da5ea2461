package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/internal/prescription/repository"
	"github.com/medsupply/indent-backend/pkg/database"
	"github.com/medsupply/indent-backend/pkg/errors"
	"github.com/medsupply/indent-backend/pkg/logger"
	"github.com/medsupply/indent-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoDB(t *testing.T) (*testutil.MockDB, *database.DB) {
	t.Helper()
	mock := testutil.NewMockDB(t)
	t.Cleanup(func() { mock.Close() })
	return mock, database.NewFromSqlx(mock.DB, logger.New("test", "test"))
}

func newPrescription() *repository.Prescription {
	return &repository.Prescription{
		PrescriptionID: "rx-1",
		PlantID:        "plant-1",
		PatientName:    "Jane Roe",
		PrescribedBy:   "doc1",
		Lines: []*repository.PrescriptionLine{
			{LineID: "line-1", MedItemID: "med-1", Quantity: 7},
		},
	}
}

func TestPrescriptionRepository_Create(t *testing.T) {
	allocations := []domain.Allocation{
		{BatchID: "b-1", BatchNo: "C-001", Quantity: 4},
		{BatchID: "b-2", BatchNo: "C-002", Quantity: 3},
	}

	t.Run("draw-down and record land together", func(t *testing.T) {
		mock, db := newRepoDB(t)
		repo := repository.NewPrescriptionRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE indent_batches SET available_stock = available_stock - $2`).
			WithArgs("b-1", 4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE indent_batches SET available_stock = available_stock - $2`).
			WithArgs("b-2", 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO prescriptions (prescription_id, plant_id, patient_name, prescribed_by)`).
			WithArgs("rx-1", "plant-1", "Jane Roe", "doc1").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectExec(`INSERT INTO prescription_lines (line_id, prescription_id, med_item_id, quantity)`).
			WithArgs("line-1", "rx-1", "med-1", 7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Create(context.Background(), newPrescription(), allocations))
		mock.ExpectationsWereMet(t)
	})

	t.Run("failed guard rolls everything back", func(t *testing.T) {
		mock, db := newRepoDB(t)
		repo := repository.NewPrescriptionRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE indent_batches SET available_stock = available_stock - $2`).
			WithArgs("b-1", 4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE indent_batches SET available_stock = available_stock - $2`).
			WithArgs("b-2", 3).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.Create(context.Background(), newPrescription(), allocations)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrStockInsufficient))
		mock.ExpectationsWereMet(t)
	})
}
