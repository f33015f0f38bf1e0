package service

import (
	"context"
	"fmt"

	"github.com/skylark/aviary/common/config"
	"github.com/skylark/aviary/common/logger"
	"github.com/skylark/aviary/common/models"
	"github.com/skylark/aviary/common/repository"
)

// QueryService answers the three scan-based read queries. All of them walk
// the media table in key order; none promise any other result ordering.
type QueryService struct {
	media *repository.MediaRepository
	cfg   config.QueryConfig
	log   *logger.Logger
}

// NewQueryService creates a new query service
func NewQueryService(media *repository.MediaRepository, cfg config.QueryConfig, log *logger.Logger) *QueryService {
	return &QueryService{
		media: media,
		cfg:   cfg,
		log:   log,
	}
}

// FindBySpecies returns the links of every record tagged with the species,
// matched case-insensitively against either tag shape. The scan drains the
// full table; results are de-duplicated by link.
func (s *QueryService) FindBySpecies(ctx context.Context, species string) ([]string, error) {
	var links []string
	seen := make(map[string]bool)

	err := s.scanAll(ctx, func(rec *models.MediaRecord) {
		if !rec.Tags.Has(species) {
			return
		}
		link := rec.Link()
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	if err != nil {
		return nil, fmt.Errorf("species search: %w", err)
	}

	s.log.Debug("species search complete", "species", species, "matches", len(links))
	return links, nil
}

// FindByMinCounts returns the links of every record whose counts meet every
// required minimum (conjunctive match). Legacy list-shaped rows carry no
// counts and never match. The scan drains the full table.
func (s *QueryService) FindByMinCounts(ctx context.Context, minimums models.TagCounts) ([]string, error) {
	var links []string

	err := s.scanAll(ctx, func(rec *models.MediaRecord) {
		for species, minCount := range minimums {
			if rec.Tags.Count(species) < minCount {
				return
			}
		}
		links = append(links, rec.Link())
	})
	if err != nil {
		return nil, fmt.Errorf("count search: %w", err)
	}

	s.log.Debug("count search complete", "criteria", len(minimums), "matches", len(links))
	return links, nil
}

// FindByOverlap returns the links of records sharing at least one species
// with the probe (disjunctive match, exact tag names, both tag shapes).
// Unlike the other searches this one is bounded to OverlapScanLimit records
// as a latency cap; it promises cheap candidates, not completeness.
func (s *QueryService) FindByOverlap(ctx context.Context, probe models.TagCounts) ([]string, error) {
	if len(probe) == 0 {
		return nil, nil
	}

	page, err := s.media.ScanPage(ctx, "", s.cfg.OverlapScanLimit)
	if err != nil {
		return nil, fmt.Errorf("overlap search: %w", err)
	}

	var links []string
	for i := range page.Records {
		rec := &page.Records[i]
		for species := range probe {
			if rec.Tags.Contains(species) {
				links = append(links, rec.Link())
				break
			}
		}
	}

	s.log.Debug("overlap search complete", "probe_tags", len(probe), "matches", len(links))
	return links, nil
}

// scanAll drains the full media table page by page, invoking visit on every
// record.
func (s *QueryService) scanAll(ctx context.Context, visit func(*models.MediaRecord)) error {
	cursor := ""
	for {
		page, err := s.media.ScanPage(ctx, cursor, s.cfg.ScanPageSize)
		if err != nil {
			return err
		}

		for i := range page.Records {
			visit(&page.Records[i])
		}

		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}
