package dispatch

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
)

// MockEnricher is a mock implementation of Enricher
type MockEnricher struct {
	mock.Mock
}

func (m *MockEnricher) FetchPerson(ctx context.Context, id string) (*candidate.Person, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*candidate.Person), args.Error(1)
}

func (m *MockEnricher) FetchCompany(ctx context.Context, id string) (*candidate.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*candidate.Company), args.Error(1)
}

func (m *MockEnricher) FetchFunding(ctx context.Context, companyID string) (*candidate.Funding, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*candidate.Funding), args.Error(1)
}

// MockFeedbackSink is a mock implementation of FeedbackSink
type MockFeedbackSink struct {
	mock.Mock
}

func (m *MockFeedbackSink) SaveFeedback(ctx context.Context, rec FeedbackRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// MockSearcher is a mock implementation of Searcher
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, q SearchQuery) ([]candidate.Candidate, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]candidate.Candidate), args.Error(1)
}
