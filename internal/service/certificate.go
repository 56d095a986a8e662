package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dtroode/soldojo-ledger/internal/logger"
	"github.com/dtroode/soldojo-ledger/internal/model"
)

const (
	certificateSymbol   = "SOLDOJO"
	certificateCategory = "certificate"
	certificatePrefix   = "certificates/"
	certificateType     = "application/json"
)

// CertificateMetadata is the Metaplex token metadata document for a completion certificate.
type CertificateMetadata struct {
	Name        string                 `json:"name"`
	Symbol      string                 `json:"symbol"`
	Description string                 `json:"description"`
	Image       string                 `json:"image"`
	ExternalURL string                 `json:"external_url"`
	Attributes  []CertificateAttribute `json:"attributes"`
	Properties  CertificateProperties  `json:"properties"`
}

type CertificateAttribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

type CertificateProperties struct {
	Category string   `json:"category"`
	Files    []string `json:"files"`
}

// Certificates renders completion metadata and keeps a copy in object storage.
// The stored object is a cache: a certificate can always be rendered again from its completion.
type Certificates struct {
	storage  model.Storage
	baseURL  string
	imageURL string
	logger   *logger.Logger
}

// NewCertificates creates Certificates. storage may be nil to render without caching.
func NewCertificates(storage model.Storage, baseURL, imageURL string, logger *logger.Logger) *Certificates {
	return &Certificates{
		storage:  storage,
		baseURL:  strings.TrimRight(baseURL, "/"),
		imageURL: imageURL,
		logger:   logger,
	}
}

// CertificateKey is the object key holding the metadata for a completion address.
func CertificateKey(completion model.Pubkey) string {
	return certificatePrefix + completion.String() + ".json"
}

// Metadata builds the certificate document for completion.
func (c *Certificates) Metadata(completion model.CompletionAccount) CertificateMetadata {
	slug := completion.CourseSlug
	return CertificateMetadata{
		Name:        "SolDojo Certificate: " + slug,
		Symbol:      certificateSymbol,
		Description: fmt.Sprintf("Proof of completion for %q on SolDojo.", slug),
		Image:       c.imageURL,
		ExternalURL: c.baseURL + "/courses/" + slug,
		Attributes: []CertificateAttribute{
			{TraitType: "Platform", Value: "SolDojo"},
			{TraitType: "Type", Value: "Course Completion"},
			{TraitType: "Course", Value: slug},
			{TraitType: "XP", Value: completion.XPEarned},
			{TraitType: "Completed At", Value: time.Unix(completion.CompletedAt, 0).UTC().Format(time.RFC3339)},
		},
		Properties: CertificateProperties{
			Category: certificateCategory,
			Files:    []string{},
		},
	}
}

// Publish uploads the metadata document for completion unless it is already stored.
func (c *Certificates) Publish(ctx context.Context, completion model.CompletionAccount) error {
	if c.storage == nil {
		return nil
	}

	key := CertificateKey(completion.Address)
	exists, err := c.storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check certificate metadata: %w", err)
	}
	if exists {
		return nil
	}

	body, err := c.render(completion)
	if err != nil {
		return err
	}
	return c.put(ctx, key, body)
}

// Certificate returns the metadata document for completion as JSON. A stored copy is
// served when present; otherwise the document is rendered and stored for next time.
func (c *Certificates) Certificate(ctx context.Context, completion model.CompletionAccount) ([]byte, error) {
	if c.storage == nil {
		return c.render(completion)
	}

	key := CertificateKey(completion.Address)
	body, err := c.get(ctx, key)
	if err == nil {
		return body, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		c.logger.Warn("failed to read stored certificate, rendering", "key", key, "error", err)
	}

	body, err = c.render(completion)
	if err != nil {
		return nil, err
	}
	if err := c.put(ctx, key, body); err != nil {
		c.logger.Warn("failed to cache certificate", "key", key, "error", err)
	}
	return body, nil
}

func (c *Certificates) render(completion model.CompletionAccount) ([]byte, error) {
	body, err := json.Marshal(c.Metadata(completion))
	if err != nil {
		return nil, fmt.Errorf("failed to encode certificate metadata: %w", err)
	}
	return body, nil
}

func (c *Certificates) get(ctx context.Context, key string) ([]byte, error) {
	rc, err := c.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate metadata: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("stored certificate metadata at %s is not valid json", key)
	}
	return body, nil
}

func (c *Certificates) put(ctx context.Context, key string, body []byte) error {
	if err := c.storage.Put(ctx, key, body, certificateType); err != nil {
		return fmt.Errorf("failed to store certificate metadata: %w", err)
	}
	return nil
}
