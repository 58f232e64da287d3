package gazetteer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cambo-gazetteer/internal/domain"
)

// memRepo 内存版存储端口，按 parent_code 链接组织
type memRepo struct {
	units map[string]domain.Unit
	index *memMatcher
	fall  *memMatcher

	mu    sync.Mutex
	calls map[string]int
}

func unit(code, en, km string, t domain.UnitType, parent, typeEn string) domain.Unit {
	return domain.Unit{Code: code, NameEn: en, NameKm: km, Type: t, ParentCode: domain.StrPtr(parent), TypeEn: domain.StrPtr(typeEn)}
}

func fixture() []domain.Unit {
	return []domain.Unit{
		unit("01", "Banteay Meanchey", "បន្ទាយមានជ័យ", domain.TypeProvince, "", "Province"),
		unit("0102", "Mongkol Borei", "មង្គលបូរី", domain.TypeDistrict, "01", "Srok"),
		unit("0103", "Phnum Srok", "ភ្នំស្រុក", domain.TypeDistrict, "01", "Srok"),
		unit("12", "Phnom Penh", "ភ្នំពេញ", domain.TypeMunicipality, "", "Capital"),
		unit("1201", "Chamkar Mon", "ចំការមន", domain.TypeDistrict, "12", "Khan"),
		unit("1202", "Doun Penh", "ដូនពេញ", domain.TypeDistrict, "12", "Khan"),
		unit("1203", "Prampir Meakkakra", "៧មករា", domain.TypeDistrict, "12", "Khan"),
		unit("120101", "Tonle Basak", "ទន្លេបាសាក់", domain.TypeCommune, "1201", "Sangkat"),
		unit("120102", "Boeng Keng Kang Ti Muoy", "បឹងកេងកងទី១", domain.TypeCommune, "1201", "Sangkat"),
		unit("12010101", "Phum 1", "ភូមិ១", domain.TypeVillage, "120101", "Phum"),
		unit("17", "Siem Reap", "សៀមរាប", domain.TypeProvince, "", "Province"),
		unit("1710", "Siem Reap", "សៀមរាប", domain.TypeDistrict, "17", "Krong"),
		unit("171001", "Sla Kram", "ស្លក្រាម", domain.TypeCommune, "1710", "Sangkat"),
		unit("17100101", "Sala Kamraeuk", "សាលាកំរើក", domain.TypeVillage, "171001", "Phum"),
	}
}

func newMemRepo(units []domain.Unit) *memRepo {
	r := &memRepo{units: map[string]domain.Unit{}, calls: map[string]int{}}
	for _, u := range units {
		r.units[u.Code] = u
	}
	r.index = &memMatcher{repo: r, ranked: true}
	r.fall = &memMatcher{repo: r}
	return r
}

func (r *memRepo) hit(name string) {
	r.mu.Lock()
	r.calls[name]++
	r.mu.Unlock()
}

func (r *memRepo) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *memRepo) GetByCode(ctx context.Context, code string) (*domain.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, ok := r.units[code]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *memRepo) Ancestors(ctx context.Context, code string) ([]domain.Unit, error) {
	r.hit("ancestors")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, ok := r.units[code]
	if !ok {
		return nil, nil
	}
	var chain []domain.Unit
	for i := 0; i < domain.MaxDepth && !u.IsRoot(); i++ {
		p, ok := r.units[*u.ParentCode]
		if !ok {
			break
		}
		chain = append([]domain.Unit{p}, chain...)
		u = p
	}
	return chain, nil
}

func (r *memRepo) sorted(keep func(domain.Unit) bool) []domain.Unit {
	var out []domain.Unit
	for _, u := range r.units {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NameEn != out[j].NameEn {
			return out[i].NameEn < out[j].NameEn
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func (r *memRepo) Children(ctx context.Context, code string) ([]domain.Unit, error) {
	return r.sorted(func(u domain.Unit) bool { return u.ParentCode != nil && *u.ParentCode == code }), ctx.Err()
}

func (r *memRepo) Siblings(ctx context.Context, code string, limit int) ([]domain.Unit, error) {
	self, ok := r.units[code]
	if !ok || self.IsRoot() {
		return nil, ctx.Err()
	}
	out := r.sorted(func(u domain.Unit) bool {
		return u.Code != code && u.ParentCode != nil && *u.ParentCode == *self.ParentCode
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, ctx.Err()
}

func (r *memRepo) ChildrenCount(ctx context.Context, code string) (map[domain.UnitType]int64, error) {
	out := map[domain.UnitType]int64{}
	for _, u := range r.units {
		if u.ParentCode != nil && *u.ParentCode == code {
			out[u.Type]++
		}
	}
	return out, ctx.Err()
}

func (r *memRepo) List(ctx context.Context, f domain.ListFilter) ([]domain.Unit, int64, error) {
	all := r.sorted(func(u domain.Unit) bool {
		typeOK := false
		for _, t := range f.Types {
			if u.Type == t {
				typeOK = true
			}
		}
		return typeOK && (f.ParentCode == nil || (u.ParentCode != nil && *u.ParentCode == *f.ParentCode))
	})
	total := int64(len(all))
	if f.Offset >= len(all) {
		return nil, total, ctx.Err()
	}
	all = all[f.Offset:]
	if len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, ctx.Err()
}

func (r *memRepo) CountByType(ctx context.Context) ([]domain.TypeCount, error) {
	agg := map[[2]string]int64{}
	for _, u := range r.units {
		te := ""
		if u.TypeEn != nil {
			te = *u.TypeEn
		}
		agg[[2]string{string(u.Type), te}]++
	}
	var out []domain.TypeCount
	for k, n := range agg {
		out = append(out, domain.TypeCount{Type: domain.UnitType(k[0]), TypeEn: k[1], Count: n})
	}
	return out, ctx.Err()
}

func (r *memRepo) IndexMatcher() domain.Matcher    { return r.index }
func (r *memRepo) FallbackMatcher() domain.Matcher { return r.fall }

// memMatcher 子串匹配；failMatch/failCount/failPrefix 用于模拟索引故障
type memMatcher struct {
	repo   *memRepo
	ranked bool

	failMatch  error
	failCount  error
	failPrefix error
}

func (m *memMatcher) hits(q string) []domain.Unit {
	q = strings.ToLower(q)
	all := m.repo.sorted(func(u domain.Unit) bool {
		return strings.HasPrefix(u.Code, q) ||
			strings.Contains(strings.ToLower(u.NameEn), q) ||
			strings.Contains(u.NameKm, q)
	})
	sort.SliceStable(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return all
}

func (m *memMatcher) Match(ctx context.Context, q string, offset, limit int) ([]domain.Match, error) {
	if m.failMatch != nil {
		return nil, m.failMatch
	}
	all := m.hits(q)
	var out []domain.Match
	for i, u := range all {
		if i < offset || i >= offset+limit {
			continue
		}
		mt := domain.Match{Unit: u}
		if m.ranked {
			rank := float64(-i)
			mt.Rank = &rank
		}
		out = append(out, mt)
	}
	return out, ctx.Err()
}

func (m *memMatcher) Count(ctx context.Context, q string) (int64, error) {
	if m.failCount != nil {
		return 0, m.failCount
	}
	return int64(len(m.hits(q))), ctx.Err()
}

func (m *memMatcher) Prefix(ctx context.Context, q string, limit int) ([]domain.Unit, error) {
	if m.failPrefix != nil {
		return nil, m.failPrefix
	}
	q = strings.ToLower(q)
	var out []domain.Unit
	for _, u := range m.hits(q) {
		if strings.HasPrefix(strings.ToLower(u.NameEn), q) || strings.HasPrefix(u.Code, q) || strings.HasPrefix(u.NameKm, q) {
			out = append(out, u)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, ctx.Err()
}

func indexDown(what string) error {
	return fmt.Errorf("%w: %s", domain.ErrIndexUnavailable, what)
}
