package feedback

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestSave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO feedback").
		WithArgs("+254722000100", "Amina", 5, "Loved the braids!").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock, nil)
	err = store.Save(context.Background(), "+254722000100", "Amina", 5, "Loved the braids!")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRejectsOutOfRangeRating(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock, nil)
	require.Error(t, store.Save(context.Background(), "+254722000100", "", 0, ""))
	require.Error(t, store.Save(context.Background(), "+254722000100", "", 6, ""))
	require.NoError(t, mock.ExpectationsWereMet())
}
