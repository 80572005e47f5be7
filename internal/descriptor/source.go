package descriptor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownActivity is returned when no model is attached to an activity.
var ErrUnknownActivity = errors.New("unknown activity")

// Source looks up the model descriptor attached to a course activity.
type Source interface {
	ModelDescriptor(ctx context.Context, activityID string) (ModelDescriptor, error)
}

// Catalogue is a static set of descriptors loaded from YAML:
//
//	activities:
//	  "42":
//	    kind: static
//	    geometry_url: models/vase/vase.obj
//	    material_url: models/vase/vase.mtl
type Catalogue struct {
	Activities map[string]ModelDescriptor `yaml:"activities"`
}

// LoadCatalogue reads a catalogue file.
func LoadCatalogue(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalogue: %w", err)
	}
	return ParseCatalogue(data)
}

// ParseCatalogue decodes catalogue YAML.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalogue: %w", err)
	}
	if c.Activities == nil {
		c.Activities = make(map[string]ModelDescriptor)
	}
	return &c, nil
}

// ModelDescriptor implements Source.
func (c *Catalogue) ModelDescriptor(_ context.Context, activityID string) (ModelDescriptor, error) {
	d, ok := c.Activities[activityID]
	if !ok {
		return ModelDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownActivity, activityID)
	}
	return d.WithDefaults(), nil
}

// IDs returns the activity ids in sorted order.
func (c *Catalogue) IDs() []string {
	ids := make([]string, 0, len(c.Activities))
	for id := range c.Activities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HTTPSource fetches descriptors from the course server as JSON at
// {BaseURL}/activities/{id}/model.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource creates a source with a bounded request timeout.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// ModelDescriptor implements Source.
func (s *HTTPSource) ModelDescriptor(ctx context.Context, activityID string) (ModelDescriptor, error) {
	u := s.BaseURL + "/activities/" + url.PathEscape(activityID) + "/model"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ModelDescriptor{}, err
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return ModelDescriptor{}, fmt.Errorf("fetching descriptor: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ModelDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownActivity, activityID)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ModelDescriptor{}, fmt.Errorf("fetching descriptor: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var d ModelDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return ModelDescriptor{}, fmt.Errorf("decoding descriptor: %w", err)
	}
	return d.WithDefaults(), nil
}
