package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"discarch/internal/constants"

	"github.com/sirupsen/logrus"
)

// Client is the subset of the store's API the archiver needs.
type Client interface {
	FindPageByMessageID(ctx context.Context, messageID string) (*Page, error)
	CreatePage(ctx context.Context, req *CreatePageRequest) (*Page, error)
	UpdatePageProperties(ctx context.Context, pageID string, properties map[string]interface{}) (*Page, error)
	UploadFile(ctx context.Context, localPath, filename string) (*FileUploadRef, error)
}

// Page is the store's page object, reduced to the fields the archiver uses.
type Page struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Permalink returns the canonical page URL built from the opaque id, per the
// fixed template host/<id-without-dashes>.
func (p *Page) Permalink() string {
	return constants.NotionPageHost + "/" + strings.ReplaceAll(p.ID, "-", "")
}

// CreatePageRequest is the wire shape of a page-create call.
type CreatePageRequest struct {
	Parent     Parent                   `json:"parent"`
	Properties map[string]interface{}   `json:"properties"`
	Children   []map[string]interface{} `json:"children,omitempty"`
}

type Parent struct {
	DatabaseID string `json:"database_id"`
}

type queryRequest struct {
	Filter   map[string]interface{} `json:"filter"`
	PageSize int                    `json:"page_size"`
}

type queryResponse struct {
	Results []Page `json:"results"`
}

// NotionClient talks to the store's HTTP API. Every request carries the
// fixed API version header.
type NotionClient struct {
	baseURL    string
	token      string
	databaseID string
	client     *http.Client
	logger     *logrus.Logger
}

// NewClient creates a store client. A nil httpClient gets a default with the
// standard timeout.
func NewClient(baseURL, token, databaseID string, httpClient *http.Client, logger *logrus.Logger) *NotionClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(constants.DefaultHTTPTimeoutSec) * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	if baseURL == "" {
		baseURL = constants.NotionAPIBaseURL
	}

	return &NotionClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		databaseID: databaseID,
		client:     httpClient,
		logger:     logger,
	}
}

// FindPageByMessageID performs a point lookup for an archived record by its
// message id title property. Returns nil without error when nothing matches.
func (c *NotionClient) FindPageByMessageID(ctx context.Context, messageID string) (*Page, error) {
	payload := queryRequest{
		Filter: map[string]interface{}{
			"property": PropMessageID,
			"title":    map[string]interface{}{"equals": messageID},
		},
		PageSize: 1,
	}

	var result queryResponse
	endpoint := fmt.Sprintf("%s/databases/%s/query", c.baseURL, c.databaseID)
	if err := c.doJSON(ctx, http.MethodPost, endpoint, payload, &result); err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}

	if len(result.Results) == 0 {
		return nil, nil
	}
	return &result.Results[0], nil
}

// CreatePage creates one page under the configured database.
func (c *NotionClient) CreatePage(ctx context.Context, req *CreatePageRequest) (*Page, error) {
	if req.Parent.DatabaseID == "" {
		req.Parent.DatabaseID = c.databaseID
	}

	var page Page
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/pages", req, &page); err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"pageID": page.ID,
	}).Debug("Created store page")

	return &page, nil
}

// UpdatePageProperties patches an existing page's properties. Used by the
// attachment reconcile step.
func (c *NotionClient) UpdatePageProperties(ctx context.Context, pageID string, properties map[string]interface{}) (*Page, error) {
	payload := map[string]interface{}{"properties": properties}

	var page Page
	endpoint := fmt.Sprintf("%s/pages/%s", c.baseURL, pageID)
	if err := c.doJSON(ctx, http.MethodPatch, endpoint, payload, &page); err != nil {
		return nil, fmt.Errorf("failed to update page: %w", err)
	}

	return &page, nil
}

func (c *NotionClient) doJSON(ctx context.Context, method, endpoint string, payload, result interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *NotionClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", constants.NotionAPIVersion)
}

func (c *NotionClient) apiError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(body)
	}
	return apiErr
}
