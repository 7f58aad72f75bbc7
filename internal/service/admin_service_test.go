package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-widget-go/internal/model"
)

type pagedArchiveRepo struct {
	offset, limit int
	total         int64
}

func (r *pagedArchiveRepo) Create(*model.ArchivedExchange) error { return nil }

func (r *pagedArchiveRepo) FindByTranscript(transcriptID string) ([]model.ArchivedExchange, error) {
	return []model.ArchivedExchange{{TranscriptID: transcriptID}}, nil
}

func (r *pagedArchiveRepo) FindWithPagination(offset, limit int) ([]model.ArchivedExchange, int64, error) {
	r.offset, r.limit = offset, limit
	return []model.ArchivedExchange{}, r.total, nil
}

func TestListExchangesPaging(t *testing.T) {
	tests := []struct {
		name             string
		page, size       int
		wantOffset, want int
		wantPages        int
	}{
		{name: "first page", page: 1, size: 10, wantOffset: 0, want: 10, wantPages: 5},
		{name: "third page", page: 3, size: 10, wantOffset: 20, want: 10, wantPages: 5},
		{name: "page below one", page: 0, size: 10, wantOffset: 0, want: 10, wantPages: 5},
		{name: "size too large", page: 1, size: 500, wantOffset: 0, want: 20, wantPages: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &pagedArchiveRepo{total: 45}
			svc := NewAdminService(repo, nil)

			resp, err := svc.ListExchanges(tt.page, tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOffset, repo.offset)
			assert.Equal(t, tt.want, repo.limit)
			assert.Equal(t, tt.wantPages, resp.TotalPages)
			assert.Equal(t, int64(45), resp.TotalElements)
		})
	}
}

func TestTranscriptExchangesRequiresID(t *testing.T) {
	svc := NewAdminService(&pagedArchiveRepo{}, nil)

	_, err := svc.TranscriptExchanges("  ")
	assert.Error(t, err)

	got, err := svc.TranscriptExchanges("chat-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "chat-1", got[0].TranscriptID)
}

func TestSearchExchangesWithoutIndex(t *testing.T) {
	svc := NewAdminService(&pagedArchiveRepo{}, nil)

	hits, err := svc.SearchExchanges(context.Background(), " ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = svc.SearchExchanges(context.Background(), "leave", 10)
	assert.ErrorIs(t, err, ErrSearchUnavailable)
}
