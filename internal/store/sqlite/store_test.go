package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cambo-gazetteer/internal/domain"
	"cambo-gazetteer/internal/gazetteer"
	"cambo-gazetteer/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u(code, en, km string, t domain.UnitType, parent, typeEn string) domain.Unit {
	return domain.Unit{Code: code, NameEn: en, NameKm: km, Type: t, ParentCode: domain.StrPtr(parent), TypeEn: domain.StrPtr(typeEn)}
}

func seedUnits() []domain.Unit {
	return []domain.Unit{
		u("02", "Battambang", "បាត់ដំបង", domain.TypeProvince, "", "Province"),
		u("0202", "Bavel", "បវេល", domain.TypeDistrict, "02", "Srok"),
		u("020205", "Kdol Ta Haen", "ក្តុលតាហែន", domain.TypeCommune, "0202", "Khum"),
		u("02020501", "Kdol", "ក្តុល", domain.TypeVillage, "020205", "Phum"),
		u("02020502", "Ta Haen", "តាហែន", domain.TypeVillage, "020205", "Phum"),
		u("12", "Phnom Penh", "ភ្នំពេញ", domain.TypeMunicipality, "", "Capital"),
		u("1201", "Chamkar Mon", "ចំការមន", domain.TypeDistrict, "12", "Khan"),
		u("17", "Siem Reap", "សៀមរាប", domain.TypeProvince, "", "Province"),
		u("1710", "Siem Reap", "សៀមរាប", domain.TypeDistrict, "17", "Krong"),
		u("171001", "Siem Reap", "សៀមរាប", domain.TypeCommune, "1710", "Sangkat"),
		u("171002", "Sla Kram", "ស្លក្រាម", domain.TypeCommune, "1710", "Sangkat"),
		u("20", "Svay Rieng", "ស្វាយរៀង", domain.TypeProvince, "", "Province"),
		u("2001", "Svay Leu", "ស្វាយលើ", domain.TypeDistrict, "20", "Srok"),
	}
}

func openSeeded(t *testing.T, searchIndex bool) *Store {
	t.Helper()
	s, err := Open(Options{
		Path:        filepath.Join(t.TempDir(), "gazetteer.db"),
		SearchIndex: searchIndex,
		Logger:      logger.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Upsert(context.Background(), seedUnits(), nil))
	return s
}

func codesOf(units []domain.Unit) []string {
	out := make([]string, len(units))
	for i, x := range units {
		out[i] = x.Code
	}
	return out
}

func TestGetByCode(t *testing.T) {
	s := openSeeded(t, false)
	ctx := context.Background()

	got, err := s.GetByCode(ctx, "0202")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Bavel", got.NameEn)
	require.NotNil(t, got.ParentCode)
	assert.Equal(t, "02", *got.ParentCode)
	assert.NotNil(t, got.CreatedAt)

	missing, err := s.GetByCode(ctx, "99999999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAncestors(t *testing.T) {
	s := openSeeded(t, false)
	ctx := context.Background()

	anc, err := s.Ancestors(ctx, "02020501")
	require.NoError(t, err)
	assert.Equal(t, []string{"02", "0202", "020205"}, codesOf(anc))

	anc, err = s.Ancestors(ctx, "02")
	require.NoError(t, err)
	assert.Empty(t, anc)

	anc, err = s.Ancestors(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, anc)
}

func TestChildrenSiblingsCounts(t *testing.T) {
	s := openSeeded(t, false)
	ctx := context.Background()

	ch, err := s.Children(ctx, "1710")
	require.NoError(t, err)
	assert.Equal(t, []string{"171001", "171002"}, codesOf(ch))

	cc, err := s.ChildrenCount(ctx, "1710")
	require.NoError(t, err)
	assert.Equal(t, map[domain.UnitType]int64{domain.TypeCommune: 2}, cc)

	sib, err := s.Siblings(ctx, "02020501", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"02020502"}, codesOf(sib))

	sib, err = s.Siblings(ctx, "02", 10)
	require.NoError(t, err)
	assert.Empty(t, sib, "roots have no siblings")
}

func TestListAndCountByType(t *testing.T) {
	s := openSeeded(t, false)
	ctx := context.Background()

	rows, total, err := s.List(ctx, domain.ListFilter{
		Types: []domain.UnitType{domain.TypeProvince, domain.TypeMunicipality},
		Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, []string{"02", "12"}, codesOf(rows))

	rows, total, err = s.List(ctx, domain.ListFilter{
		Types:      []domain.UnitType{domain.TypeVillage},
		ParentCode: domain.StrPtr("020205"),
		Offset:     1,
		Limit:      10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []string{"02020502"}, codesOf(rows))

	counts, err := s.CountByType(ctx)
	require.NoError(t, err)
	var sum int64
	for _, c := range counts {
		sum += c.Count
	}
	assert.Equal(t, int64(len(seedUnits())), sum)
}

func TestUpsertIsIdempotentAndUpdatesIndex(t *testing.T) {
	s := openSeeded(t, true)
	ctx := context.Background()

	var seen int
	units := seedUnits()
	units[1].NameEn = "Bavel Town"
	require.NoError(t, s.Upsert(ctx, units, func(n int) { seen += n }))
	assert.Equal(t, len(units), seen)

	_, total, err := s.List(ctx, domain.ListFilter{Types: domain.AllTypes, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(len(units)), total)

	n, err := s.IndexMatcher().Count(ctx, "Town")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIndexMissingIsClassified(t *testing.T) {
	s := openSeeded(t, false)
	_, err := s.IndexMatcher().Count(context.Background(), "Siem")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)

	_, err = s.IndexMatcher().Prefix(context.Background(), "Sv", 10)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(errors.New(`fts5: syntax error near "AND"`)), domain.ErrIndexUnavailable)
	assert.ErrorIs(t, classify(errors.New("no such table: administrative_units_fts")), domain.ErrIndexUnavailable)
	assert.False(t, errors.Is(classify(errors.New("database is locked")), domain.ErrIndexUnavailable))
	assert.False(t, errors.Is(classify(context.Canceled), domain.ErrIndexUnavailable))
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"Siem" "Reap"`, ftsQuery("Siem Reap", false))
	assert.Equal(t, `"Sv"*`, ftsQuery(" Sv ", true))
	assert.Equal(t, `"a""b" "NEAR(x"`, ftsQuery(`a"b NEAR(x`, false))
	assert.Equal(t, `50\%\_off`, escapeLike("50%_off"))
}

func newService(s *Store) *gazetteer.Service {
	return gazetteer.New(s, gazetteer.WithLogger(logger.Discard()))
}

func TestSearchSameNameAcrossLevels(t *testing.T) {
	for _, indexed := range []bool{true, false} {
		svc := newService(openSeeded(t, indexed))
		res, err := svc.Search(context.Background(), "Siem Reap", 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Pagination.Total, "indexed=%v", indexed)
		require.Len(t, res.Data, 3)
		paths := map[string]bool{}
		for _, r := range res.Data {
			paths[r.Path] = true
			assert.Equal(t, indexed, r.Rank != nil)
		}
		assert.Len(t, paths, 3)
	}
}

func TestSearchFallbackOrdering(t *testing.T) {
	svc := newService(openSeeded(t, false))
	res, err := svc.Search(context.Background(), "02", 1, 20)
	require.NoError(t, err)
	require.NotEmpty(t, res.Data)
	assert.Equal(t, "02", res.Data[0].Code, "exact code first")
	for _, r := range res.Data[1:] {
		assert.True(t, len(r.Code) > 2 && r.Code[:2] == "02")
	}
}

func TestSearchEscapesWildcards(t *testing.T) {
	svc := newService(openSeeded(t, false))
	res, err := svc.Search(context.Background(), "%", 1, 20)
	require.NoError(t, err)
	assert.Zero(t, res.Pagination.Total)
	assert.Empty(t, res.Data)
}

func TestAutocompleteOrdersByLengthOnFallback(t *testing.T) {
	svc := newService(openSeeded(t, false))
	res, err := svc.Autocomplete(context.Background(), "Sv", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"2001", "20"}, codesOf(res.Suggestions))
}

func TestAutocompleteIndexed(t *testing.T) {
	svc := newService(openSeeded(t, true))
	res, err := svc.Autocomplete(context.Background(), "Sv", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2001", "20"}, codesOf(res.Suggestions))
}

func TestSearchPaginationLaw(t *testing.T) {
	for _, indexed := range []bool{true, false} {
		svc := newService(openSeeded(t, indexed))
		ctx := context.Background()
		q := "Siem"
		if !indexed {
			q = "a"
		}
		first, err := svc.Search(ctx, q, 1, 2)
		require.NoError(t, err)
		require.Greater(t, first.Pagination.TotalPages, 1)

		seen := map[string]bool{}
		for p := 1; p <= first.Pagination.TotalPages; p++ {
			res, err := svc.Search(ctx, q, p, 2)
			require.NoError(t, err)
			assert.Equal(t, first.Pagination.Total, res.Pagination.Total)
			for _, r := range res.Data {
				assert.False(t, seen[r.Code], "duplicate %s", r.Code)
				seen[r.Code] = true
			}
		}
		assert.Len(t, seen, int(first.Pagination.Total))
	}
}

func TestLocationByCodeOverStore(t *testing.T) {
	svc := newService(openSeeded(t, false))
	ctx := context.Background()

	detail, err := svc.LocationByCode(ctx, "02020501")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "Battambang > Bavel > Kdol Ta Haen > Kdol", detail.Path)
	assert.Len(t, detail.Breadcrumb, 4)
	assert.Equal(t, []string{"02020502"}, codesOf(detail.Siblings))

	missing, err := svc.LocationByCode(ctx, "99999999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestKhmerPrefixIndexed(t *testing.T) {
	s := openSeeded(t, true)
	units, err := s.IndexMatcher().Prefix(context.Background(), "សៀ", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"17", "1710", "171001"}, codesOf(units))

	svc := newService(s)
	res, err := svc.Autocomplete(context.Background(), "សៀ", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"17", "1710", "171001"}, codesOf(res.Suggestions))
}

func TestKhmerSearchIndexed(t *testing.T) {
	svc := newService(openSeeded(t, true))
	res, err := svc.Search(context.Background(), "សៀមរាប", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Pagination.Total)
	for _, r := range res.Data {
		assert.NotNil(t, r.Rank, "answered by the full-text index")
		assert.Equal(t, "សៀមរាប", r.NameKm)
	}

	res, err = svc.Search(context.Background(), "ស្វាយលើ", 1, 20)
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "2001", res.Data[0].Code)
}

func TestLegacyTokenizerIsRebuilt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	ctx := context.Background()

	s, err := Open(Options{Path: path, Logger: logger.Discard()})
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, seedUnits(), nil))
	require.NoError(t, s.db.Exec(`CREATE VIRTUAL TABLE administrative_units_fts USING fts5(
        code, name_en, name_km, content='administrative_units')`).Error)
	require.NoError(t, s.db.Exec(ftsRebuild).Error)
	require.NoError(t, s.Close())

	s, err = Open(Options{Path: path, SearchIndex: true, Logger: logger.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	units, err := s.IndexMatcher().Prefix(ctx, "សៀ", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"17", "1710", "171001"}, codesOf(units))
}
