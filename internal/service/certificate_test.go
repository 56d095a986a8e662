package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/soldojo-ledger/internal/model"
	"github.com/dtroode/soldojo-ledger/internal/testutil"
)

// MockStorage mocks the Storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Put(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

func (m *MockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func sampleCompletion() model.CompletionAccount {
	return model.CompletionAccount{
		Address: model.MustParsePubkey("FMomJ5XCWsjPiDd7iszHPvYnBg2xC55kXYFbihhWvJ1f"),
		CourseCompletion: model.CourseCompletion{
			Authority:   learner(),
			CourseSlug:  "rust-101",
			XPEarned:    500,
			CompletedAt: completedAt.Unix(),
			Bump:        255,
		},
	}
}

func TestCertificateKey(t *testing.T) {
	assert.Equal(t,
		"certificates/FMomJ5XCWsjPiDd7iszHPvYnBg2xC55kXYFbihhWvJ1f.json",
		CertificateKey(sampleCompletion().Address))
}

func TestCertificates_Metadata(t *testing.T) {
	c := NewCertificates(nil, "https://soldojo.dev/", "https://soldojo.dev/certificate-badge.png", testutil.MakeNoopLogger())

	md := c.Metadata(sampleCompletion())

	assert.Equal(t, "SolDojo Certificate: rust-101", md.Name)
	assert.Equal(t, "SOLDOJO", md.Symbol)
	assert.Equal(t, "https://soldojo.dev/courses/rust-101", md.ExternalURL)
	assert.Equal(t, "https://soldojo.dev/certificate-badge.png", md.Image)
	assert.Equal(t, "certificate", md.Properties.Category)
	assert.Contains(t, md.Attributes, CertificateAttribute{TraitType: "XP", Value: uint32(500)})
	assert.Contains(t, md.Attributes, CertificateAttribute{TraitType: "Completed At", Value: "2025-01-01T00:00:00Z"})
}

func TestCertificates_Publish(t *testing.T) {
	ctx := context.Background()
	completion := sampleCompletion()

	t.Run("uploads json", func(t *testing.T) {
		storage := new(MockStorage)
		storage.On("Exists", ctx, CertificateKey(completion.Address)).Return(false, nil)
		var body []byte
		storage.On("Put", ctx, CertificateKey(completion.Address), mock.Anything, "application/json").
			Run(func(args mock.Arguments) { body = args.Get(2).([]byte) }).
			Return(nil)

		err := NewCertificates(storage, "https://soldojo.dev", "img", testutil.MakeNoopLogger()).Publish(ctx, completion)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(body, &doc))
		assert.Equal(t, "SOLDOJO", doc["symbol"])
		assert.Equal(t, "https://soldojo.dev/courses/rust-101", doc["external_url"])
		assert.Equal(t, []any{}, doc["properties"].(map[string]any)["files"])
		storage.AssertExpectations(t)
	})

	t.Run("already stored", func(t *testing.T) {
		storage := new(MockStorage)
		storage.On("Exists", ctx, CertificateKey(completion.Address)).Return(true, nil)

		err := NewCertificates(storage, "https://soldojo.dev", "img", testutil.MakeNoopLogger()).Publish(ctx, completion)
		require.NoError(t, err)
		storage.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("exists check error", func(t *testing.T) {
		storage := new(MockStorage)
		storage.On("Exists", ctx, mock.Anything).Return(false, errors.New("timeout"))

		err := NewCertificates(storage, "https://soldojo.dev", "img", testutil.MakeNoopLogger()).Publish(ctx, completion)
		assert.ErrorContains(t, err, "failed to check certificate metadata")
		storage.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("storage error", func(t *testing.T) {
		storage := new(MockStorage)
		storage.On("Exists", ctx, mock.Anything).Return(false, nil)
		storage.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("denied"))

		err := NewCertificates(storage, "https://soldojo.dev", "img", testutil.MakeNoopLogger()).Publish(ctx, completion)
		assert.ErrorContains(t, err, "failed to store certificate metadata")
	})

	t.Run("without storage", func(t *testing.T) {
		err := NewCertificates(nil, "https://soldojo.dev", "img", testutil.MakeNoopLogger()).Publish(ctx, completion)
		assert.NoError(t, err)
	})
}

func TestCertificates_Certificate(t *testing.T) {
	ctx := context.Background()
	completion := sampleCompletion()
	key := CertificateKey(completion.Address)

	t.Run("serves the stored copy", func(t *testing.T) {
		storage := new(MockStorage)
		stored := []byte(`{"name":"stored"}`)
		storage.On("Get", ctx, key).Return(io.NopCloser(bytes.NewReader(stored)), nil)

		body, err := NewCertificates(storage, "https://soldojo.dev", "img", testutil.MakeNoopLogger()).Certificate(ctx, completion)
		require.NoError(t, err)
		assert.JSONEq(t, string(stored), string(body))
		storage.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("renders and caches when missing", func(t *testing.T) {
		storage := new(MockStorage)
		storage.On("Get", ctx, key).Return(nil, model.ErrNotFound)
		storage.On("Put", ctx, key, mock.Anything, "application/json").Return(nil)

		body, err := NewCertificates(storage, "https://soldojo.dev", "img", testutil.MakeNoopLogger()).Certificate(ctx, completion)
		require.NoError(t, err)

		var doc CertificateMetadata
		require.NoError(t, json.Unmarshal(body, &doc))
		assert.Equal(t, "SolDojo Certificate: rust-101", doc.Name)
		storage.AssertCalled(t, "Put", ctx, key, body, "application/json")
	})

	t.Run("storage down still renders", func(t *testing.T) {
		storage := new(MockStorage)
		storage.On("Get", ctx, key).Return(nil, errors.New("connection refused"))
		storage.On("Put", ctx, key, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

		body, err := NewCertificates(storage, "https://soldojo.dev", "img", testutil.MakeNoopLogger()).Certificate(ctx, completion)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"symbol":"SOLDOJO"`)
	})

	t.Run("corrupt stored copy is rendered again", func(t *testing.T) {
		storage := new(MockStorage)
		storage.On("Get", ctx, key).Return(io.NopCloser(bytes.NewReader([]byte("{trunc"))), nil)
		storage.On("Put", ctx, key, mock.Anything, mock.Anything).Return(nil)

		body, err := NewCertificates(storage, "https://soldojo.dev", "img", testutil.MakeNoopLogger()).Certificate(ctx, completion)
		require.NoError(t, err)
		assert.True(t, json.Valid(body))
		storage.AssertCalled(t, "Put", ctx, key, body, "application/json")
	})

	t.Run("without storage", func(t *testing.T) {
		body, err := NewCertificates(nil, "https://soldojo.dev", "img", testutil.MakeNoopLogger()).Certificate(ctx, completion)
		require.NoError(t, err)
		assert.Contains(t, string(body), "rust-101")
	})
}
