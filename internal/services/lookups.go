package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/esurat/apiserver/internal/cache"
	"github.com/esurat/apiserver/internal/metrics"
	"github.com/esurat/apiserver/internal/store"
	"github.com/esurat/apiserver/types"
)

const (
	defaultGenericLimit = 10
	defaultUserLimit    = 50
	maxLookupLimit      = 1000

	immediateActionsCacheKey = "dropdown:tindakan-segera:v1"
	immediateActionsCacheTTL = 300 * time.Second

	msgLookupForbidden = "Tidak diizinkan"
)

var (
	ErrTableNameRequired = errors.New("Parameter table_name wajib diisi")
	ErrInvalidTableName  = errors.New("Nama tabel tidak valid")
	ErrTableNotFound     = errors.New("Tabel tidak ditemukan")
	ErrTableIncompatible = errors.New("Struktur tabel tidak kompatibel")
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// genericTables are the reference tables the general dropdown may read.
var genericTables = map[string]bool{
	"m_instansi":          true,
	"m_ruang_rapat":       true,
	"m_tujuan_disposisi":  true,
	"m_tipe_surat":        true,
	"m_tindakan_segera":   true,
	"m_kategori_formulir": true,
}

// leadershipCodes see only the Memo and Koordinasi form categories.
var leadershipCodes = map[string]bool{
	"YS-01-PMP-001": true,
	"YS-01-WPM-001": true,
	"YS-01-KHR-001": true,
}

var leadershipCategories = []string{"Memo", "Koordinasi"}

// userCodePrefixes are the kode_user prefixes the users dropdown filters on.
var userCodePrefixes = map[string]bool{"YS": true, "MN": true, "SK": true}

// LookupRepository defines read operations on reference tables.
type LookupRepository interface {
	TableColumns(ctx context.Context, table string) ([]string, error)
	ListGeneric(ctx context.Context, table, orderBy string, q types.LookupQuery) ([]types.LookupItem, int, error)
	DispositionTargets(ctx context.Context, limit int) ([]types.DispositionTarget, error)
	Institutions(ctx context.Context, limit int) ([]types.Institution, error)
	Rooms(ctx context.Context, search string, limit int) ([]types.Room, error)
	DocumentTypes(ctx context.Context, search string) ([]types.DocumentType, error)
	ImmediateActions(ctx context.Context, search string, limit, offset int) ([]types.ImmediateAction, error)
}

// UserOptionRepository lists users for pickers.
type UserOptionRepository interface {
	ListOptions(ctx context.Context, q store.UserOptionQuery) ([]types.UserOption, error)
}

// Cache stores JSON values with a TTL.
type Cache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// GenericQuery is the query string of GET /general/dropdown.
type GenericQuery struct {
	Table      string
	Search     string
	ActiveOnly bool
	Limit      int
}

// GenericResult is a general dropdown page.
type GenericResult struct {
	Items []types.LookupItem
	Total int
	Limit int
}

// ImmediateActionQuery is the query string of GET /tindakan-segera/dropdown.
type ImmediateActionQuery struct {
	Search  string
	Page    int
	PerPage int
}

// UserOptionsQuery is the query string of GET /users/dropdown.
type UserOptionsQuery struct {
	Search   string
	KodeUser string
	Page     int
	Limit    int
}

// LookupService serves the reference dropdowns.
type LookupService struct {
	repo     LookupRepository
	users    UserOptionRepository
	activity *ActivityService
	cache    Cache
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewLookupService(repo LookupRepository, users UserOptionRepository, activity *ActivityService, logger *zap.Logger) *LookupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupService{repo: repo, users: users, activity: activity, logger: logger}
}

// WithCache enables caching of the default tindakan segera listing.
func (s *LookupService) WithCache(c Cache) *LookupService {
	s.cache = c
	return s
}

func (s *LookupService) WithMetrics(m *metrics.Metrics) *LookupService {
	s.metrics = m
	return s
}

// Generic lists kode, deskripsi and keterangan of an allow-listed table.
func (s *LookupService) Generic(ctx context.Context, actor types.User, q GenericQuery) (GenericResult, error) {
	table := strings.TrimSpace(q.Table)
	if table == "" {
		return GenericResult{}, ErrTableNameRequired
	}
	if !tableNamePattern.MatchString(table) {
		return GenericResult{}, ErrInvalidTableName
	}
	if !genericTables[table] {
		return GenericResult{}, ErrTableNotFound
	}

	cols, err := s.repo.TableColumns(ctx, table)
	if err != nil {
		return GenericResult{}, err
	}
	if len(cols) == 0 {
		return GenericResult{}, ErrTableNotFound
	}
	has := make(map[string]bool, len(cols))
	for _, c := range cols {
		has[c] = true
	}
	for _, c := range []string{"kode", "deskripsi", "keterangan"} {
		if !has[c] {
			return GenericResult{}, ErrTableIncompatible
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultGenericLimit
	}
	if limit > maxLookupLimit {
		limit = maxLookupLimit
	}

	lq := types.LookupQuery{
		Search:     strings.TrimSpace(q.Search),
		ActiveOnly: q.ActiveOnly && has["status"],
		Limit:      limit,
	}
	orderBy := "kode"
	if table == "m_tujuan_disposisi" && has["urut"] {
		orderBy = "urut"
	}
	if table == "m_kategori_formulir" {
		if leadershipCodes[actor.KodeUser] {
			lq.KodeIn = leadershipCategories
		} else {
			lq.KodeNotIn = leadershipCategories
		}
	}

	items, total, err := s.repo.ListGeneric(ctx, table, orderBy, lq)
	if err != nil {
		return GenericResult{}, err
	}
	return GenericResult{Items: items, Total: total, Limit: limit}, nil
}

// DispositionTargets lists active disposition targets in display order.
func (s *LookupService) DispositionTargets(ctx context.Context) ([]types.DispositionTarget, error) {
	return s.repo.DispositionTargets(ctx, maxLookupLimit)
}

func (s *LookupService) Institutions(ctx context.Context) ([]types.Institution, error) {
	return s.repo.Institutions(ctx, maxLookupLimit)
}

// Rooms lists meeting rooms; a non-positive limit returns all of them.
func (s *LookupService) Rooms(ctx context.Context, search string, limit int) ([]types.Room, error) {
	if limit > maxLookupLimit {
		limit = maxLookupLimit
	}
	return s.repo.Rooms(ctx, strings.TrimSpace(search), limit)
}

// DocumentTypes is restricted to admin and pimpinan.
func (s *LookupService) DocumentTypes(ctx context.Context, actor types.User, search string, limit int) ([]types.DocumentType, error) {
	switch actor.Role {
	case types.RoleAdmin, types.RolePimpinan:
	case types.RoleUser:
		return nil, forbidden(msgLookupForbidden)
	default:
		return nil, forbidden(msgLookupForbidden)
	}
	items, err := s.repo.DocumentTypes(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxLookupLimit {
		limit = maxLookupLimit
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ImmediateActions lists tindakan segera options. The unfiltered default
// listing is served from the cache when one is configured.
func (s *LookupService) ImmediateActions(ctx context.Context, q ImmediateActionQuery) ([]types.ImmediateAction, error) {
	perPage := q.PerPage
	if perPage <= 0 || perPage > maxLookupLimit {
		perPage = maxLookupLimit
	}
	search := strings.TrimSpace(q.Search)
	cacheable := s.cache != nil && search == "" && q.Page == 0 && perPage == maxLookupLimit

	if cacheable {
		var cached []types.ImmediateAction
		err := s.cache.Get(ctx, immediateActionsCacheKey, &cached)
		switch {
		case err == nil:
			s.metrics.Cache(true)
			return cached, nil
		case errors.Is(err, cache.ErrMiss):
			s.metrics.Cache(false)
		default:
			s.logger.Warn("read tindakan segera cache failed", zap.Error(err))
		}
	}

	offset := 0
	if q.Page > 0 {
		offset = (q.Page - 1) * perPage
	}
	items, err := s.repo.ImmediateActions(ctx, search, perPage, offset)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, immediateActionsCacheKey, items, immediateActionsCacheTTL); err != nil {
			s.logger.Warn("write tindakan segera cache failed", zap.Error(err))
		}
	}
	return items, nil
}

// UserOptions lists users for pickers and logs the lookup.
func (s *LookupService) UserOptions(ctx context.Context, actor Actor, q UserOptionsQuery) ([]types.UserOption, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultUserLimit
	}
	if limit > maxLookupLimit {
		limit = maxLookupLimit
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	oq := store.UserOptionQuery{
		Search: strings.TrimSpace(q.Search),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	prefix := strings.ToUpper(strings.TrimSpace(q.KodeUser))
	if userCodePrefixes[prefix] {
		oq.CodePrefix = prefix
	}
	oq.OrderByLevel = prefix == "YS"

	items, err := s.users.ListOptions(ctx, oq)
	if err != nil {
		return nil, err
	}
	s.activity.record(ctx, actor, types.ActionUsersDropdown, nil, "Fetch users dropdown",
		map[string]any{"search": q.Search, "limit": limit, "page": page},
	)
	return items, nil
}
