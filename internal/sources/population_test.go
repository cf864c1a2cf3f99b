package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sidrapanel/internal/config"
	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/shared/testutil"
)

func loaderFor(t *testing.T, path string, skipRows int) *PopulationLoader {
	cfg := config.Default().Sources
	cfg.PopulationFile = path
	cfg.SkipRows = skipRows
	logger, _ := testutil.NewTestLogger(t)
	return NewPopulationLoader(cfg, logger)
}

func TestPopulationLoaderLoad(t *testing.T) {
	path := testutil.WritePopulationWorkbook(t, t.TempDir(), testutil.PopulationWorkbook{
		SkipRows: 5,
		Years:    []int{2010, 2011},
		Rows: []testutil.PopulationRow{
			{Age: "38", Sex: "Ambos", Local: "Acre", Values: map[int]float64{2010: 1200, 2011: 1250.5}},
			{Age: "90+", Sex: "Homens", Local: "Acre", Values: map[int]float64{2010: 10}},
			{Age: "Total", Sex: "Ambos", Local: "Brasil", Values: map[int]float64{2010: 1, 2011: 2}},
		},
	})

	table, err := loaderFor(t, path, 5).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{2010, 2011}, table.YearColumns)
	require.Len(t, table.Records, 3)

	first := table.Records[0]
	assert.Equal(t, "Acre", first.Local)
	assert.Equal(t, 38, first.Age)
	assert.Equal(t, "Ambos", first.Sex)
	assert.Equal(t, 1200.0, first.Values[2010])
	assert.Equal(t, 1250.5, first.Values[2011])

	second := table.Records[1]
	assert.Equal(t, 90, second.Age)
	assert.Equal(t, "90+", second.AgeLabel)
	_, ok := second.Values[2011]
	assert.False(t, ok, "empty cell must be absent")
	assert.True(t, table.IsNull(1, 4))

	assert.Equal(t, -1, table.Records[2].Age)
}

func TestPopulationLoaderErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := loaderFor(t, filepath.Join(t.TempDir(), "none.xlsx"), 5).Load(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceUnavailable))
	})

	t.Run("not a workbook", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plain.xlsx")
		require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0644))
		_, err := loaderFor(t, path, 5).Load(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceUnavailable))
	})

	t.Run("wrong skip rows hides header", func(t *testing.T) {
		path := testutil.WritePopulationWorkbook(t, t.TempDir(), testutil.PopulationWorkbook{
			SkipRows: 5,
			Years:    []int{2010},
			Rows:     []testutil.PopulationRow{{Age: "40", Sex: "Ambos", Local: "Acre", Values: map[int]float64{2010: 1}}},
		})
		_, err := loaderFor(t, path, 2).Load(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	})

	t.Run("missing sheet", func(t *testing.T) {
		path := testutil.WritePopulationWorkbook(t, t.TempDir(), testutil.PopulationWorkbook{SkipRows: 0, Years: []int{2010}})
		cfg := config.Default().Sources
		cfg.PopulationFile = path
		cfg.PopulationSheet = "Projections"
		logger, _ := testutil.NewTestLogger(t)

		_, err := NewPopulationLoader(cfg, logger).Load(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	})

	t.Run("non numeric cell", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.xlsx")
		f := excelize.NewFile()
		require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"IDADE", "SEXO", "LOCAL", 2010}))
		require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"40", "Ambos", "Acre", "n/d"}))
		require.NoError(t, f.SaveAs(path))
		require.NoError(t, f.Close())

		_, err := loaderFor(t, path, 0).Load(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTypeCoercion))
	})
}

func TestParseAge(t *testing.T) {
	assert.Equal(t, 0, parseAge("0"))
	assert.Equal(t, 58, parseAge("58"))
	assert.Equal(t, 90, parseAge("90+"))
	assert.Equal(t, -1, parseAge("Total"))
	assert.Equal(t, -1, parseAge(""))
}
