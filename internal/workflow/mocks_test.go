package workflow

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cnsr/cta-inspection/internal/models"
	"github.com/cnsr/cta-inspection/internal/recognition"
)

type MockRecognizer struct {
	mock.Mock
}

func (m *MockRecognizer) Recognize(ctx context.Context, photo models.Photo) ([]recognition.Candidate, error) {
	args := m.Called(ctx, photo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]recognition.Candidate), args.Error(1)
}

type MockPhotoSubmitter struct {
	mock.Mock
}

func (m *MockPhotoSubmitter) SubmitPhoto(ctx context.Context, token string, sub models.PhotoSubmission) (*models.InspectionRecord, error) {
	args := m.Called(ctx, token, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InspectionRecord), args.Error(1)
}

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Add(ctx context.Context, rec models.InspectionRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) ListPending(ctx context.Context, token string) ([]models.InspectionRecord, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InspectionRecord), args.Error(1)
}

func (m *MockReviewService) ValidateRecord(ctx context.Context, token, id, comment string) (*models.InspectionRecord, error) {
	args := m.Called(ctx, token, id, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InspectionRecord), args.Error(1)
}

func (m *MockReviewService) RejectRecord(ctx context.Context, token, id, reason string) (*models.InspectionRecord, error) {
	args := m.Called(ctx, token, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InspectionRecord), args.Error(1)
}

type stubConfirmer struct {
	answer bool
	asked  []string
}

func (s *stubConfirmer) Confirm(ctx context.Context, question string) (bool, error) {
	s.asked = append(s.asked, question)
	return s.answer, nil
}

type scriptedPrompter struct {
	answers []string
	calls   int
}

func (p *scriptedPrompter) PromptReason(ctx context.Context, attempt int) (string, error) {
	p.calls++
	if len(p.answers) == 0 {
		return "", ErrCancelled
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

type stubCamera struct {
	photo models.Photo
	err   error
}

func (c stubCamera) Capture(ctx context.Context) (models.Photo, error) {
	return c.photo, c.err
}
