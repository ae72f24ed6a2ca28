package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tulpar/internal/models"
	"tulpar/internal/repository"
)

// EventService управляет каталогом событий. Postgres остается источником
// истины, Elasticsearch и Redis только ускоряют чтение.
type EventService struct {
	events   repository.EventRepository
	searcher EventSearcher
	cache    PageCache
}

func NewEventService(events repository.EventRepository, searcher EventSearcher, cache PageCache) *EventService {
	return &EventService{
		events:   events,
		searcher: searcher,
		cache:    cache,
	}
}

// Create создает событие и индексирует его для поиска. Ошибка индексации
// не откатывает создание.
func (s *EventService) Create(ctx context.Context, req *models.CreateEventRequest) (*models.CreateEventResponse, error) {
	datetimeStart, err := time.Parse(time.RFC3339, req.DatetimeStart)
	if err != nil {
		return nil, fmt.Errorf("invalid datetime_start: %w", err)
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	event := &models.Event{
		Title:         req.Title,
		Description:   req.Description,
		MaxCapacity:   req.MaxCapacity,
		Price:         req.Price,
		Currency:      currency,
		DatetimeStart: datetimeStart,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}

	if s.searcher != nil {
		if err := s.searcher.IndexEvent(ctx, event); err != nil {
			slog.Error("Failed to index event", "error", err, "event_id", event.ID)
		}
	}

	return &models.CreateEventResponse{ID: event.ID}, nil
}

func (s *EventService) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	return s.events.GetByID(ctx, id)
}

// List ищет события. Порядок: кэш страницы, Elasticsearch, Postgres.
// Падение поисковика деградирует в ILIKE-поиск по базе.
func (s *EventService) List(ctx context.Context, query, date string, page, pageSize int) (models.ListEventsResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	cacheKey := fmt.Sprintf("events:list:%s:%s:%d:%d", query, date, page, pageSize)
	if s.cache != nil {
		if raw, err := s.cache.GetEventsPage(ctx, cacheKey); err != nil {
			slog.Error("Failed to read events page cache", "error", err)
		} else if raw != nil {
			var cached models.ListEventsResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	events, err := s.searchEvents(ctx, query, date, page, pageSize)
	if err != nil {
		return nil, err
	}

	resp := make(models.ListEventsResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, models.ListEventsResponseItem{
			ID:              event.ID,
			Title:           event.Title,
			MaxCapacity:     event.MaxCapacity,
			RegisteredCount: event.RegisteredCount,
			IsClosed:        event.IsClosed,
			Price:           event.Price,
		})
	}

	if s.cache != nil {
		if raw, err := json.Marshal(resp); err == nil {
			if err := s.cache.SetEventsPage(ctx, cacheKey, raw); err != nil {
				slog.Error("Failed to cache events page", "error", err)
			}
		}
	}

	return resp, nil
}

func (s *EventService) searchEvents(ctx context.Context, query, date string, page, pageSize int) ([]models.Event, error) {
	if s.searcher != nil {
		events, err := s.searcher.Search(ctx, query, date, page, pageSize)
		if err == nil {
			return events, nil
		}
		slog.Error("Elasticsearch search failed, falling back to database", "error", err)
	}
	return s.events.List(ctx, query, date, page, pageSize)
}
