package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cambo-gazetteer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `[
  {"code":"02020501","name_km":"ក្តុល","name_en":"Kdol","type":"village","type_en":"Phum","parent_code":"020205"},
  {"code":"02","name_km":"បាត់ដំបង","name_en":"Battambang","type":"Province","type_en":"Province","parent_code":null},
  {"code":"020205","name_km":"ក្តុលតាហែន","name_en":"Kdol Ta Haen","type":"commune","type_en":"Khum","parent_code":"0202","reference":"  "},
  {"code":"0202","name_km":"បវេល","name_en":"Bavel","type":"district","type_en":"Srok","parent_code":"02"},
  {"code":"0201","name_km":"មង្គលបូរី","name_en":"Mongkol Borei","type":"district","type_en":"Srok","parent_code":"02"}
]`

func codes(units []domain.Unit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Code
	}
	return out
}

func TestParseOrdersParentsFirst(t *testing.T) {
	units, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"02", "0201", "0202", "020205", "02020501"}, codes(units))

	assert.Equal(t, domain.TypeProvince, units[0].Type)
	assert.Nil(t, units[0].ParentCode)
	assert.Nil(t, units[3].Reference, "blank optional fields become null")
	require.NotNil(t, units[4].TypeEn)
	assert.Equal(t, "Phum", *units[4].TypeEn)
	assert.Empty(t, Orphans(units))
}

func TestParseRejectsBadRecords(t *testing.T) {
	_, err := Parse(strings.NewReader(`[{"code":"01","name_en":"X","name_km":"X","type":"state"}]`))
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = Parse(strings.NewReader(`[{"code":" ","type":"province"}]`))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader(`[{"code":"01","type":"province"},{"code":"01","type":"province"}]`))
	assert.ErrorContains(t, err, "duplicate code 01")

	_, err = Parse(strings.NewReader(`{"code":"01"}`))
	assert.Error(t, err)
}

func TestOrphansAndCounts(t *testing.T) {
	units, err := Parse(strings.NewReader(`[
      {"code":"01","name_en":"A","name_km":"A","type":"province"},
      {"code":"0901","name_en":"B","name_km":"B","type":"district","parent_code":"09"}
    ]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"0901"}, Orphans(units))
	assert.Equal(t, map[domain.UnitType]int{domain.TypeProvince: 1, domain.TypeDistrict: 1}, CountByType(units))
}

type recLoader struct {
	upserted []domain.Unit
	rebuilt  bool
	failIdx  error
}

func (l *recLoader) Upsert(ctx context.Context, units []domain.Unit, progress func(n int)) error {
	l.upserted = append(l.upserted, units...)
	if progress != nil {
		progress(len(units))
	}
	return nil
}

func (l *recLoader) RebuildSearchIndex(ctx context.Context) error {
	if l.failIdx != nil {
		return l.failIdx
	}
	l.rebuilt = true
	return nil
}

func TestLoad(t *testing.T) {
	units, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	l := &recLoader{}
	var n int
	require.NoError(t, Load(context.Background(), l, units, Options{RebuildIndex: true, Progress: func(k int) { n += k }}))
	assert.Len(t, l.upserted, 5)
	assert.Equal(t, 5, n)
	assert.True(t, l.rebuilt)

	l = &recLoader{}
	require.NoError(t, Load(context.Background(), l, units, Options{}))
	assert.False(t, l.rebuilt)

	boom := errors.New("fts5 unavailable")
	l = &recLoader{failIdx: boom}
	err = Load(context.Background(), l, units, Options{RebuildIndex: true})
	assert.ErrorIs(t, err, boom)
}
