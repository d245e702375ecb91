// Package recognition talks to the external license-plate reader and
// applies the confidence policy to what it returns.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cnsr/cta-inspection/internal/models"
)

// DefaultEndpoint is the Plate Recognizer reader URL.
const DefaultEndpoint = "https://api.platerecognizer.com/v1/plate-reader/"

var (
	ErrEmptyPhoto       = errors.New("photo has no image data")
	ErrRecognizerStatus = errors.New("plate recognizer returned an error status")
)

// Recognizer finds license plates in a photo.
type Recognizer interface {
	Recognize(ctx context.Context, photo models.Photo) ([]Candidate, error)
}

// PlateReaderClient calls the Plate Recognizer HTTP API.
type PlateReaderClient struct {
	Endpoint   string
	APIKey     string
	Regions    []string
	HTTPClient *http.Client
}

// NewPlateReaderClient creates a client for endpoint authenticated with apiKey.
func NewPlateReaderClient(endpoint, apiKey string) *PlateReaderClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &PlateReaderClient{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type plateReaderResponse struct {
	Results []Candidate `json:"results"`
}

// Recognize uploads the photo and returns the candidates in the order the
// API ranked them.
func (c *PlateReaderClient) Recognize(ctx context.Context, photo models.Photo) ([]Candidate, error) {
	if photo.IsEmpty() {
		return nil, ErrEmptyPhoto
	}
	data, err := photo.Bytes()
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="upload"; filename="photo.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create upload part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write upload part: %w", err)
	}
	for _, region := range c.Regions {
		if err := mw.WriteField("regions", region); err != nil {
			return nil, fmt.Errorf("write regions field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Token "+c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("plate recognizer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.WithFields(log.Fields{
			"status": resp.StatusCode,
			"body":   string(msg),
		}).Warn("Plate recognizer rejected the upload")
		return nil, fmt.Errorf("%w: %d", ErrRecognizerStatus, resp.StatusCode)
	}

	var out plateReaderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode plate recognizer response: %w", err)
	}

	log.WithFields(log.Fields{
		"candidates": len(out.Results),
		"photo_size": len(photo.Base64),
	}).Debug("Plate recognizer response received")
	return out.Results, nil
}

func (c *PlateReaderClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
